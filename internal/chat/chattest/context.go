package chattest

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/chat"
)

// GuildID is the guild every test invocation runs in.
const GuildID = "100"

// Settings are presentation settings without auto-delete, so tests do not
// leave timers behind.
func Settings() *chat.Settings {
	return &chat.Settings{
		Prefix:      "!",
		ColorBase:   0x1a93a1,
		ColorError:  0xff0000,
		ColorNotify: 0xff9900,
	}
}

// Invoke builds an invocation of command path by authorID in channelID.
// The command message is stored in the session.
func Invoke(s *Session, authorID, channelID, path string, args ...string) *chat.Context {
	s.mu.Lock()
	s.nextID++
	id := "777" + strconv.Itoa(s.nextID)
	s.mu.Unlock()

	m := &discordgo.Message{
		ID:        id,
		GuildID:   GuildID,
		ChannelID: channelID,
		Author:    &discordgo.User{ID: authorID, Username: "user" + authorID},
		Content:   "!" + strings.TrimSpace(path+" "+strings.Join(args, " ")),
	}
	s.AddMessage(m)

	c := chat.NewContext(context.Background(), s, Settings(), log.WithField("test", true), m)
	c.Path = strings.Fields(path)
	c.Args = args
	return c
}
