// Package middleware contains the helpers every event passes through:
// event logging, panic recovery and cooldowns.
package middleware

import (
	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxLoggedText = 50

// EventLogger returns a log entry tagged with a fresh event id.
func EventLogger(event string, fields log.Fields) *log.Entry {
	return log.WithFields(fields).WithFields(log.Fields{
		"event":    event,
		"event_id": uuid.NewString(),
	})
}

// LogMessage logs an incoming message with the first 50 characters of text.
func LogMessage(entry *log.Entry, m *discordgo.Message) {
	if m == nil {
		return
	}

	text := []rune(m.Content)
	if len(text) > maxLoggedText {
		text = append(text[:maxLoggedText], []rune("...")...)
	}

	fields := log.Fields{
		"message_id": m.ID,
		"channel_id": m.ChannelID,
		"guild_id":   m.GuildID,
		"text":       string(text),
	}
	if m.Author != nil {
		fields["user_id"] = m.Author.ID
		fields["username"] = m.Author.Username
	}
	entry.WithFields(fields).Debug("Incoming message")
}
