// Package chattest provides an in-memory chat.Session for tests.
package chattest

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"rubbergod.cz/discord-bot/internal/chat"
)

// ErrForbidden mimics a Discord 403 response.
var ErrForbidden = errors.New("HTTP 403 Forbidden, Missing Permissions")

// Reaction is one reaction added by the bot.
type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// Session records everything the bot does and serves messages, members,
// guilds and channels that the test put in.
type Session struct {
	mu sync.Mutex

	ID       string
	Messages map[string]*discordgo.Message
	Members  map[string]*discordgo.Member
	Guilds   map[string]*discordgo.Guild
	Channels map[string]*discordgo.Channel
	Hooks    map[string][]*discordgo.Webhook

	Sent      []*discordgo.Message
	Deleted   []string
	Reactions []Reaction
	Cleared   []string
	Granted   []string
	Revoked   []string

	// Optional failures, returned by the matching calls.
	DeleteErr   error
	ReactionErr error
	RoleErr     error
	SendErr     error

	nextID int
}

var _ chat.Session = (*Session)(nil)

func NewSession(botID string) *Session {
	return &Session{
		ID:       botID,
		Messages: make(map[string]*discordgo.Message),
		Members:  make(map[string]*discordgo.Member),
		Guilds:   make(map[string]*discordgo.Guild),
		Channels: make(map[string]*discordgo.Channel),
		Hooks:    make(map[string][]*discordgo.Webhook),
		nextID:   9000,
	}
}

// AddMessage stores m so Message can find it.
func (s *Session) AddMessage(m *discordgo.Message) *discordgo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages[m.ID] = m
	return m
}

// AddMember stores a member with the given roles.
func (s *Session) AddMember(guildID, userID string, roles ...string) *discordgo.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &discordgo.Member{
		GuildID: guildID,
		User:    &discordgo.User{ID: userID, Username: "user" + userID},
		Roles:   append([]string(nil), roles...),
	}
	s.Members[userID] = m
	return m
}

func (s *Session) BotID() string { return s.ID }

func (s *Session) Message(channelID, messageID string) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Messages[messageID]
	if !ok {
		return nil, fmt.Errorf("HTTP 404 Not Found, Unknown Message %s", messageID)
	}
	return m, nil
}

func (s *Session) SendMessage(channelID, content string) (*discordgo.Message, error) {
	return s.send(&discordgo.Message{ChannelID: channelID, Content: content})
}

func (s *Session) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return s.send(&discordgo.Message{ChannelID: channelID, Embeds: []*discordgo.MessageEmbed{embed}})
}

func (s *Session) send(m *discordgo.Message) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return nil, s.SendErr
	}
	s.nextID++
	m.ID = strconv.Itoa(s.nextID)
	m.Author = &discordgo.User{ID: s.ID, Bot: true}
	s.Sent = append(s.Sent, m)
	return m, nil
}

func (s *Session) DeleteMessage(channelID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.Deleted = append(s.Deleted, messageID)
	return nil
}

func (s *Session) AddReaction(channelID, messageID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReactionErr != nil {
		return s.ReactionErr
	}
	s.Reactions = append(s.Reactions, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (s *Session) RemoveAllReactions(channelID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReactionErr != nil {
		return s.ReactionErr
	}
	s.Cleared = append(s.Cleared, messageID)
	if m, ok := s.Messages[messageID]; ok {
		m.Reactions = nil
	}
	return nil
}

func (s *Session) Member(guildID, userID string) (*discordgo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Members[userID]
	if !ok {
		return nil, fmt.Errorf("HTTP 404 Not Found, Unknown Member %s", userID)
	}
	return m, nil
}

func (s *Session) AddRole(guildID, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RoleErr != nil {
		return s.RoleErr
	}
	s.Granted = append(s.Granted, userID+":"+roleID)
	if m, ok := s.Members[userID]; ok {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (s *Session) RemoveRole(guildID, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RoleErr != nil {
		return s.RoleErr
	}
	s.Revoked = append(s.Revoked, userID+":"+roleID)
	if m, ok := s.Members[userID]; ok {
		kept := m.Roles[:0]
		for _, r := range m.Roles {
			if r != roleID {
				kept = append(kept, r)
			}
		}
		m.Roles = kept
	}
	return nil
}

func (s *Session) Guild(guildID string) (*discordgo.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.Guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("HTTP 404 Not Found, Unknown Guild %s", guildID)
	}
	return g, nil
}

func (s *Session) Channel(channelID string) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Channels[channelID]
	if !ok {
		return nil, fmt.Errorf("HTTP 404 Not Found, Unknown Channel %s", channelID)
	}
	return c, nil
}

func (s *Session) Webhooks(channelID string) ([]*discordgo.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Hooks[channelID], nil
}

// LastText returns the content of the last plain text message sent.
func (s *Session) LastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Sent) - 1; i >= 0; i-- {
		if len(s.Sent[i].Embeds) == 0 {
			return s.Sent[i].Content
		}
	}
	return ""
}

// LastEmbed returns the last embed sent, or nil.
func (s *Session) LastEmbed() *discordgo.MessageEmbed {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Sent) - 1; i >= 0; i-- {
		if len(s.Sent[i].Embeds) > 0 {
			return s.Sent[i].Embeds[0]
		}
	}
	return nil
}

// ReactionsOn lists the emojis the bot added to messageID, in order.
func (s *Session) ReactionsOn(messageID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.Reactions {
		if r.MessageID == messageID {
			out = append(out, r.Emoji)
		}
	}
	return out
}
