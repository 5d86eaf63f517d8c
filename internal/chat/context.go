package chat

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Settings are the presentation settings shared by every invocation.
type Settings struct {
	Prefix      string
	Delay       time.Duration
	ColorBase   int
	ColorError  int
	ColorNotify int
	// Channels where bot commands belong. Empty disables the room check.
	BotRooms []string
}

// Context is one command invocation: who ran what, where.
type Context struct {
	Ctx      context.Context
	Session  Session
	Settings *Settings
	Log      *log.Entry

	GuildID   string
	ChannelID string
	Message   *discordgo.Message
	Author    *discordgo.User
	Member    *discordgo.Member

	// Path is the resolved command path, e.g. ["karma", "get"].
	Path []string
	// Args are the words after the command path.
	Args []string
}

// NewContext builds an invocation context from a created message.
func NewContext(ctx context.Context, s Session, settings *Settings, entry *log.Entry, m *discordgo.Message) *Context {
	return &Context{
		Ctx:       ctx,
		Session:   s,
		Settings:  settings,
		Log:       entry,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Message:   m,
		Author:    m.Author,
		Member:    m.Member,
	}
}

// AuthorID returns the invoking user id or "".
func (c *Context) AuthorID() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.ID
}

// Rest joins the arguments from index i on.
func (c *Context) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// Arg returns argument i or "".
func (c *Context) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Command is the invocation as typed, prefix included.
func (c *Context) Command() string {
	return c.Settings.Prefix + strings.Join(c.Path, " ")
}

// InBotRoom reports whether the invocation happened where bot commands belong.
func (c *Context) InBotRoom() bool {
	if len(c.Settings.BotRooms) == 0 {
		return true
	}
	for _, id := range c.Settings.BotRooms {
		if id == c.ChannelID {
			return true
		}
	}
	return false
}
