// Package filters decides which events the bot serves at all.
package filters

import (
	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/chat"
)

// GuildFilter lets through the configured guild and direct messages of
// its members. Everything else is ignored.
type GuildFilter struct {
	guildID string
	session chat.Session
}

func NewGuildFilter(guildID string, session chat.Session) *GuildFilter {
	return &GuildFilter{guildID: guildID, session: session}
}

// AllowGuild reports whether events from guildID are served. Reactions in
// direct messages carry no guild and are allowed.
func (f *GuildFilter) AllowGuild(guildID string) bool {
	return guildID == "" || guildID == f.guildID
}

// CheckAccess reports whether a message may be handled.
func (f *GuildFilter) CheckAccess(m *discordgo.Message) bool {
	if m == nil || m.Author == nil {
		log.WithField("component", "GuildFilter").Warn("nil message/author")
		return false
	}
	if f.guildID == "" {
		log.WithField("component", "GuildFilter").Error("guildID is empty (config bug)")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component":  "GuildFilter",
		"guild_id":   m.GuildID,
		"channel_id": m.ChannelID,
		"user_id":    m.Author.ID,
	})

	// 1) The configured guild
	if m.GuildID == f.guildID {
		return true
	}

	// 2) Direct message: only members of the guild
	if m.GuildID == "" {
		if _, err := f.session.Member(f.guildID, m.Author.ID); err != nil {
			logger.WithError(err).Info("deny: direct message from a non-member")
			return false
		}
		logger.Debug("allow: direct message from a member")
		return true
	}

	// 3) Other guilds are ignored
	logger.Info("deny: foreign guild")
	return false
}
