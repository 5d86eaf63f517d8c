package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/common"
	"rubbergod.cz/discord-bot/internal/config"
)

// Update keys accepted by Service.Update.
const (
	KeyLogin   = "login"
	KeyGroup   = "group"
	KeyStatus  = "status"
	KeyComment = "comment"
)

// codeManual marks rows added by a moderator instead of the verification flow.
const codeManual = "MANUAL"

// Service holds the directory rules on top of the store.
type Service struct {
	store        Store
	session      chat.Session
	guildID      string
	verifyRoleID string
	groups       []string
	domains      map[string]string
	now          func() time.Time
}

// NewService creates the directory service. now gives the current time in
// the guild's zone.
func NewService(store Store, session chat.Session, cfg *config.Config, now func() time.Time) *Service {
	return &Service{
		store:        store,
		session:      session,
		guildID:      cfg.GuildID,
		verifyRoleID: cfg.VerifyRoleID,
		groups:       cfg.DirectoryGroups,
		domains:      cfg.DirectoryEmailDomains,
		now:          now,
	}
}

// Groups returns the configured affiliation groups.
func (s *Service) Groups() []string {
	return s.groups
}

// Email returns the address of u.
func (s *Service) Email(u User) string {
	return Email(u, s.domains)
}

// Get returns the row of a member, or nil when there is none.
func (s *Service) Get(ctx context.Context, discordID string) (*User, error) {
	u, err := s.store.Get(ctx, discordID)
	if errors.Is(err, common.ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *Service) GetByLogin(ctx context.Context, login string) (*User, error) {
	return s.store.GetByLogin(ctx, login)
}

func (s *Service) GetByPrefix(ctx context.Context, prefix string) ([]User, error) {
	return s.store.GetByPrefix(ctx, prefix)
}

func (s *Service) FilterStatus(ctx context.Context, status Status) ([]User, error) {
	return s.store.FilterStatus(ctx, status)
}

func (s *Service) CountStatus(ctx context.Context, status Status) (int, error) {
	return s.store.CountStatus(ctx, status)
}

func (s *Service) CountGroup(ctx context.Context, group string) (int, error) {
	return s.store.CountGroup(ctx, group)
}

// Add writes a verified row for member and grants the verify and group
// roles. Roles are granted only after the write; when a grant fails the
// row is removed again and ErrRoleAssignment is returned.
func (s *Service) Add(ctx context.Context, member *discordgo.Member, login string, group *discordgo.Role) (*User, error) {
	id := member.User.ID
	logger := log.WithFields(log.Fields{"component": "directory", "user_id": id})

	if _, err := s.store.Get(ctx, id); err == nil {
		return nil, fmt.Errorf("%w (discord_id=%s)", common.ErrDuplicateUser, id)
	} else if !errors.Is(err, common.ErrUserNotFound) {
		return nil, err
	}

	u := User{
		DiscordID: id,
		Login:     login,
		Group:     group.Name,
		Status:    StatusVerified,
		Code:      codeManual,
		Changed:   common.DateStamp(s.now()),
	}
	if err := s.store.Add(ctx, u); err != nil {
		if errors.Is(err, common.ErrDuplicateUser) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreWrite, err)
	}

	var granted []string
	for _, roleID := range []string{s.verifyRoleID, group.ID} {
		if roleID == "" || chat.HasRole(member, roleID) {
			continue
		}
		if err := s.session.AddRole(s.guildID, id, roleID); err != nil {
			logger.WithError(err).WithField("role_id", roleID).Warn("Could not grant directory role, rolling back")
			s.rollback(ctx, id, granted, logger)
			return nil, fmt.Errorf("%w: role %s: %v", common.ErrRoleAssignment, roleID, err)
		}
		granted = append(granted, roleID)
	}

	logger.WithField("group", group.Name).Info("User added to directory")
	return &u, nil
}

// rollback undoes a half finished Add.
func (s *Service) rollback(ctx context.Context, id string, granted []string, logger *log.Entry) {
	if _, err := s.store.Delete(ctx, id); err != nil {
		logger.WithError(err).Error("Could not remove directory row after failed role grant")
	}
	for _, roleID := range granted {
		if err := s.session.RemoveRole(s.guildID, id, roleID); err != nil {
			logger.WithError(err).WithField("role_id", roleID).Warn("Could not revoke role during rollback")
		}
	}
}

// Remove deletes the row of a member and returns the number of rows removed.
func (s *Service) Remove(ctx context.Context, discordID string) (int, error) {
	n, err := s.store.Delete(ctx, discordID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreWrite, err)
	}
	return n, nil
}

// Update changes one field of a row and stamps the change date. It returns
// the value that was stored.
func (s *Service) Update(ctx context.Context, discordID, key, value string) (string, error) {
	upd := Update{Changed: common.DateStamp(s.now())}

	switch strings.ToLower(key) {
	case KeyLogin:
		upd.Login = &value
	case KeyGroup:
		value = strings.ToUpper(value)
		if !s.isGroup(value) {
			return "", fmt.Errorf("%w: %q", common.ErrInvalidGroup, value)
		}
		upd.Group = &value
	case KeyStatus:
		st, err := ParseStatus(value)
		if err != nil {
			return "", err
		}
		upd.Status = &st
	case KeyComment:
		upd.Comment = &value
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidKey, key)
	}

	if err := s.store.Update(ctx, discordID, upd); err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", common.ErrStoreWrite, err)
	}
	return value, nil
}

func (s *Service) isGroup(name string) bool {
	for _, g := range s.groups {
		if g == name {
			return true
		}
	}
	return false
}
