// Package roles lets members pick roles by reacting to role messages.
// A role message lives in a role channel or starts with the role marker;
// its bindings come from configuration and from "<emoji> <@&role>" lines.
package roles

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/config"
)

var customEmoji = regexp.MustCompile(`^<a?:(\w+):(\d+)>$`)

// Binding maps one emoji onto the role it grants.
type Binding = config.Binding

// Service is the role-reaction engine.
type Service struct {
	session    chat.Session
	guildID    string
	channels   map[string]bool
	roleString string
	static     []Binding
}

// NewService creates the role-reaction engine.
func NewService(session chat.Session, cfg *config.Config) *Service {
	channels := make(map[string]bool, len(cfg.RoleChannelIDs))
	for _, id := range cfg.RoleChannelIDs {
		channels[id] = true
	}
	return &Service{
		session:    session,
		guildID:    cfg.GuildID,
		channels:   channels,
		roleString: cfg.RoleString,
		static:     cfg.RoleBindings,
	}
}

// IsRoleMessage reports whether m takes part in role reactions. Bot
// messages only do inside role channels.
func (s *Service) IsRoleMessage(m *discordgo.Message) bool {
	if m == nil {
		return false
	}
	inChannel := s.channels[m.ChannelID]
	if m.Author != nil && m.Author.Bot {
		return inChannel
	}
	return inChannel || (s.roleString != "" && strings.HasPrefix(m.Content, s.roleString))
}

// GetJoinRoleData returns the ordered bindings of m, or nil when m is not
// a role message. Configured bindings come first; an emoji bound twice
// keeps its first role.
func (s *Service) GetJoinRoleData(m *discordgo.Message) []Binding {
	if !s.IsRoleMessage(m) {
		return nil
	}
	seen := make(map[string]bool)
	var out []Binding
	add := func(b Binding) {
		if seen[b.Emoji] {
			return
		}
		seen[b.Emoji] = true
		out = append(out, b)
	}
	for _, b := range s.static {
		add(b)
	}
	for _, b := range ParseBindings(m.Content) {
		add(b)
	}
	return out
}

// ParseBindings reads "<emoji> <@&roleID>" lines from a message body.
// Anything after the role mention is ignored, other lines are skipped.
func ParseBindings(content string) []Binding {
	var out []Binding
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		roleID, ok := chat.ParseRoleID(fields[1])
		if !ok || !strings.HasPrefix(fields[1], "<@&") {
			continue
		}
		emoji := fields[0]
		if m := customEmoji.FindStringSubmatch(emoji); m != nil {
			emoji = m[1] + ":" + m[2]
		} else if strings.HasPrefix(emoji, "<") {
			continue
		}
		out = append(out, Binding{Emoji: emoji, RoleID: roleID})
	}
	return out
}

// MessageRoleReactions adds the emoji of every binding the bot has not
// reacted with yet. Platform errors are logged and skipped.
func (s *Service) MessageRoleReactions(m *discordgo.Message, bindings []Binding) {
	present := make(map[string]bool)
	for _, r := range m.Reactions {
		if r.Me && r.Emoji != nil {
			present[r.Emoji.APIName()] = true
		}
	}
	for _, b := range bindings {
		if present[b.Emoji] {
			continue
		}
		present[b.Emoji] = true
		if err := s.session.AddReaction(m.ChannelID, m.ID, b.Emoji); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"message_id": m.ID,
				"emoji":      b.Emoji,
			}).Debug("Could not add role reaction")
		}
	}
}

// HandleMessage seeds a freshly created role message with its reactions.
func (s *Service) HandleMessage(ctx context.Context, m *discordgo.Message) {
	bindings := s.GetJoinRoleData(m)
	if len(bindings) == 0 {
		return
	}
	s.MessageRoleReactions(m, bindings)
}

// resolve finds the role bound to the reacted emoji and the reacting member.
func (s *Service) resolve(r chat.Reaction) (string, *discordgo.Member, bool) {
	if r.UserID == s.session.BotID() {
		return "", nil, false
	}
	logger := log.WithFields(log.Fields{
		"component":  "roles",
		"message_id": r.MessageID,
		"user_id":    r.UserID,
	})

	m, err := s.session.Message(r.ChannelID, r.MessageID)
	if err != nil {
		logger.WithError(err).Debug("Message of reaction not available")
		return "", nil, false
	}
	if m.ChannelID == "" {
		m.ChannelID = r.ChannelID
	}

	var roleID string
	for _, b := range s.GetJoinRoleData(m) {
		if b.Emoji == r.Emoji {
			roleID = b.RoleID
			break
		}
	}
	if roleID == "" {
		return "", nil, false
	}

	member := r.Member
	if member == nil {
		guildID := r.GuildID
		if guildID == "" {
			guildID = s.guildID
		}
		if member, err = s.session.Member(guildID, r.UserID); err != nil {
			logger.WithError(err).Debug("Reacting member not available")
			return "", nil, false
		}
	}
	return roleID, member, true
}

// Add grants the role bound to the reaction. Holding the role already,
// unbound emojis and platform errors all end as no-ops.
func (s *Service) Add(ctx context.Context, r chat.Reaction) {
	roleID, member, ok := s.resolve(r)
	if !ok || chat.HasRole(member, roleID) {
		return
	}
	logger := log.WithFields(log.Fields{"user_id": r.UserID, "role_id": roleID})
	if err := s.session.AddRole(s.guild(r), r.UserID, roleID); err != nil {
		logger.WithError(err).Warn("Could not grant role")
		return
	}
	logger.Info("Role granted")
}

// Remove revokes the role bound to the reaction, if the member holds it.
func (s *Service) Remove(ctx context.Context, r chat.Reaction) {
	roleID, member, ok := s.resolve(r)
	if !ok || !chat.HasRole(member, roleID) {
		return
	}
	logger := log.WithFields(log.Fields{"user_id": r.UserID, "role_id": roleID})
	if err := s.session.RemoveRole(s.guild(r), r.UserID, roleID); err != nil {
		logger.WithError(err).Warn("Could not revoke role")
		return
	}
	logger.Info("Role revoked")
}

func (s *Service) guild(r chat.Reaction) string {
	if r.GuildID != "" {
		return r.GuildID
	}
	return s.guildID
}
