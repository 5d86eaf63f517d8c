// Package chat is the thin layer between feature code and Discord.
// session.go declares the subset of the platform API the features use,
// and the adapter that serves it from a live discordgo session.
package chat

import (
	"github.com/bwmarrin/discordgo"
)

// Session is everything a feature may ask the chat platform for.
// Features depend on this interface so tests can use chattest.Session.
type Session interface {
	BotID() string

	Message(channelID, messageID string) (*discordgo.Message, error)
	SendMessage(channelID, content string) (*discordgo.Message, error)
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	DeleteMessage(channelID, messageID string) error

	AddReaction(channelID, messageID, emoji string) error
	RemoveAllReactions(channelID, messageID string) error

	Member(guildID, userID string) (*discordgo.Member, error)
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error

	Guild(guildID string) (*discordgo.Guild, error)
	Channel(channelID string) (*discordgo.Channel, error)
	Webhooks(channelID string) ([]*discordgo.Webhook, error)
}

// Discord serves Session from a discordgo session, preferring the state
// cache and falling back to REST calls.
type Discord struct {
	s *discordgo.Session
}

var _ Session = (*Discord)(nil)

func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{s: s}
}

func (d *Discord) BotID() string {
	if d.s.State == nil || d.s.State.User == nil {
		return ""
	}
	return d.s.State.User.ID
}

func (d *Discord) Message(channelID, messageID string) (*discordgo.Message, error) {
	if m, err := d.s.State.Message(channelID, messageID); err == nil {
		return m, nil
	}
	return d.s.ChannelMessage(channelID, messageID)
}

func (d *Discord) SendMessage(channelID, content string) (*discordgo.Message, error) {
	return d.s.ChannelMessageSend(channelID, content)
}

func (d *Discord) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return d.s.ChannelMessageSendEmbed(channelID, embed)
}

func (d *Discord) DeleteMessage(channelID, messageID string) error {
	return d.s.ChannelMessageDelete(channelID, messageID)
}

func (d *Discord) AddReaction(channelID, messageID, emoji string) error {
	return d.s.MessageReactionAdd(channelID, messageID, emoji)
}

func (d *Discord) RemoveAllReactions(channelID, messageID string) error {
	return d.s.MessageReactionsRemoveAll(channelID, messageID)
}

func (d *Discord) Member(guildID, userID string) (*discordgo.Member, error) {
	if m, err := d.s.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return d.s.GuildMember(guildID, userID)
}

func (d *Discord) AddRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *Discord) RemoveRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleRemove(guildID, userID, roleID)
}

// Guild returns the guild with roles and channels filled in.
func (d *Discord) Guild(guildID string) (*discordgo.Guild, error) {
	if g, err := d.s.State.Guild(guildID); err == nil {
		return g, nil
	}
	g, err := d.s.Guild(guildID)
	if err != nil {
		return nil, err
	}
	if len(g.Channels) == 0 {
		if channels, err := d.s.GuildChannels(guildID); err == nil {
			g.Channels = channels
		}
	}
	return g, nil
}

func (d *Discord) Channel(channelID string) (*discordgo.Channel, error) {
	if c, err := d.s.State.Channel(channelID); err == nil {
		return c, nil
	}
	return d.s.Channel(channelID)
}

func (d *Discord) Webhooks(channelID string) ([]*discordgo.Webhook, error) {
	return d.s.ChannelWebhooks(channelID)
}

// HasRole reports whether member holds roleID.
func HasRole(member *discordgo.Member, roleID string) bool {
	if member == nil {
		return false
	}
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Reaction is a reaction event reduced to what the features need.
type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	// Emoji is the API name: the character, or "name:id" for custom emojis.
	Emoji string
	// Member is filled for additions in a guild.
	Member *discordgo.Member
}
