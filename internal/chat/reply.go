package chat

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Embed field limits enforced by Discord.
const (
	maxFieldName  = 256
	maxFieldValue = 1024
	maxFields     = 25
)

// Card is a titled, colored reply with named fields.
type Card struct {
	discordgo.MessageEmbed
}

// Field appends a field. Empty values are replaced by a placeholder because
// Discord rejects them.
func (c *Card) Field(name, value string, inline bool) *Card {
	if len(c.Fields) >= maxFields {
		return c
	}
	if name == "" {
		name = "\u200b"
	}
	if value == "" {
		value = "\u200b"
	}
	c.Fields = append(c.Fields, &discordgo.MessageEmbedField{
		Name:   truncate(name, maxFieldName),
		Value:  truncate(value, maxFieldValue),
		Inline: inline,
	})
	return c
}

// Thumbnail sets the small image in the top right corner.
func (c *Card) Thumbnail(url string) *Card {
	c.MessageEmbed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: url}
	return c
}

// Card starts a card titled with the command path and signed by the author.
func (c *Context) Card(color int) *Card {
	if color == 0 {
		color = c.Settings.ColorBase
	}
	card := &Card{discordgo.MessageEmbed{
		Title: c.Command(),
		Color: color,
	}}
	if c.Author != nil {
		card.Footer = &discordgo.MessageEmbedFooter{
			Text:    c.Author.Username,
			IconURL: c.Author.AvatarURL(""),
		}
	}
	return card
}

// Send posts plain text to the invocation channel.
func (c *Context) Send(format string, args ...any) *discordgo.Message {
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	m, err := c.Session.SendMessage(c.ChannelID, text)
	if err != nil {
		c.Log.WithError(err).Warn("Could not send reply")
		return nil
	}
	return m
}

// SendCard posts a card. With expire set it is removed after the
// configured delay.
func (c *Context) SendCard(card *Card, expire bool) *discordgo.Message {
	m, err := c.Session.SendEmbed(c.ChannelID, &card.MessageEmbed)
	if err != nil {
		c.Log.WithError(err).Warn("Could not send embed")
		return nil
	}
	if expire {
		c.DeleteLater(m.ChannelID, m.ID, c.Settings.Delay)
	}
	return m
}

// Error reports a failed command and removes the command message.
func (c *Context) Error(text string) {
	card := c.Card(c.Settings.ColorError)
	card.Field("Error", text, false)
	card.Field("Command", c.messageContent(), false)
	c.SendCard(card, true)
	c.DeleteCommand()
}

// Notify shows a short-lived notice and removes the command message.
func (c *Context) Notify(text string) {
	card := c.Card(c.Settings.ColorNotify)
	card.Field("Notice", text, false)
	card.Field("Command", c.messageContent(), false)
	c.SendCard(card, true)
	c.DeleteCommand()
}

// DeleteCommand removes the invoking message. Missing permissions are ignored.
func (c *Context) DeleteCommand() {
	if c.Message == nil {
		return
	}
	if err := c.Session.DeleteMessage(c.ChannelID, c.Message.ID); err != nil {
		c.Log.WithError(err).Debug("Could not delete command message")
	}
}

// DeleteLater removes a message after d. Zero d keeps the message.
func (c *Context) DeleteLater(channelID, messageID string, d time.Duration) {
	if d <= 0 {
		return
	}
	entry := c.Log
	session := c.Session
	time.AfterFunc(d, func() {
		if err := session.DeleteMessage(channelID, messageID); err != nil {
			entry.WithError(err).Debug("Could not delete expired message")
		}
	})
}

// RoomCheck points the author to the bot room when the command ran elsewhere.
func (c *Context) RoomCheck() {
	if c.InBotRoom() {
		return
	}
	m := c.Send("<@%s> Please use <#%s> for bot commands.", c.AuthorID(), c.Settings.BotRooms[0])
	if m != nil {
		c.DeleteLater(m.ChannelID, m.ID, c.Settings.Delay)
	}
}

func (c *Context) messageContent() string {
	if c.Message == nil || c.Message.Content == "" {
		return c.Command()
	}
	return truncate(c.Message.Content, maxFieldValue)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
