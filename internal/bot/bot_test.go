package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubbergod.cz/discord-bot/internal/bot/filters"
	"rubbergod.cz/discord-bot/internal/bot/middleware"
	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/chat/chattest"
	"rubbergod.cz/discord-bot/internal/config"
)

const (
	botID     = "1"
	adminID   = "2"
	modRole   = "60"
	userID    = "7"
	channelID = "300"
)

type fakeFeature struct {
	calls []string
	args  [][]string
}

func (f *fakeFeature) record(name string) func(c *chat.Context) error {
	return func(c *chat.Context) error {
		f.calls = append(f.calls, name)
		f.args = append(f.args, c.Args)
		return nil
	}
}

func (f *fakeFeature) Commands() []*chat.Command {
	return []*chat.Command{
		{Name: "ping", Aliases: []string{"p"}, Run: f.record("ping")},
		{Name: "boom", Run: func(c *chat.Context) error { panic("boom") }},
		{Name: "fail", Run: func(c *chat.Context) error { return errors.New("db down") }},
		{
			Name:     "group",
			Help:     "A group.",
			Cooldown: "tight",
			Subcommands: []*chat.Command{
				{Name: "sub", Help: "A sub.", Run: f.record("group sub")},
			},
		},
		{Name: "secret", Privileged: true, Run: f.record("secret")},
		{Name: "local", GuildOnly: true, Run: f.record("local")},
	}
}

func newTestBot(t *testing.T) (*Bot, *chattest.Session, *fakeFeature) {
	t.Helper()
	session := chattest.NewSession(botID)
	cfg := &config.Config{
		GuildID:        chattest.GuildID,
		AdminID:        adminID,
		ModRoleIDs:     []string{modRole},
		CommandPrefix:  "!",
		BotMaxInflight: 4,
	}
	limiter := middleware.NewRateLimiter(
		map[string]middleware.Limit{"tight": {Requests: 1, Window: time.Minute}},
		middleware.Limit{Requests: 100, Window: time.Minute},
	)
	feature := &fakeFeature{}
	b := New(nil, session, cfg, nil, nil, filters.NewGuildFilter(chattest.GuildID, session), limiter, feature)
	return b, session, feature
}

func message(guildID, author, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "900",
		GuildID:   guildID,
		ChannelID: channelID,
		Author:    &discordgo.User{ID: author, Username: "user" + author},
		Content:   content,
	}
}

func TestDispatchCaseInsensitiveWithAlias(t *testing.T) {
	b, _, feature := newTestBot(t)

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!PING a b"))
	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!p"))

	assert.Equal(t, []string{"ping", "ping"}, feature.calls)
	assert.Equal(t, []string{"a", "b"}, feature.args[0])
}

func TestDispatchSubcommandAndGroupHelp(t *testing.T) {
	b, session, feature := newTestBot(t)

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!group Sub x"))
	assert.Equal(t, []string{"group sub"}, feature.calls)
	assert.Equal(t, []string{"x"}, feature.args[0])

	b.HandleMessage(context.Background(), message(chattest.GuildID, adminID, "!group"))
	embed := session.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, "A group.", embed.Description)
	assert.Equal(t, "sub", embed.Fields[0].Name)
}

func TestDispatchCooldownPerBucket(t *testing.T) {
	b, session, feature := newTestBot(t)

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!group sub"))
	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!group sub"))

	assert.Len(t, feature.calls, 1)
	assert.Contains(t, session.LastText(), "Slow down")

	b.HandleMessage(context.Background(), message(chattest.GuildID, adminID, "!group sub"))
	assert.Len(t, feature.calls, 2, "cooldowns are per user")
}

func TestDispatchPrivileged(t *testing.T) {
	b, session, feature := newTestBot(t)
	session.AddMember(chattest.GuildID, "8", modRole)
	session.AddMember(chattest.GuildID, userID)

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!secret"))
	assert.Empty(t, feature.calls)
	assert.Equal(t, "<@7> You do not have the rights for this command.", session.LastText())

	b.HandleMessage(context.Background(), message(chattest.GuildID, "8", "!secret"))
	b.HandleMessage(context.Background(), message(chattest.GuildID, adminID, "!secret"))
	assert.Equal(t, []string{"secret", "secret"}, feature.calls)
}

func TestDispatchDirectMessages(t *testing.T) {
	b, session, feature := newTestBot(t)
	session.AddMember(chattest.GuildID, userID)

	b.HandleMessage(context.Background(), message("", userID, "!ping"))
	assert.Equal(t, []string{"ping"}, feature.calls)

	b.HandleMessage(context.Background(), message("", userID, "!local"))
	assert.Equal(t, "<@7> This command only works on the server.", session.LastText())

	b.HandleMessage(context.Background(), message("", "99", "!ping"))
	assert.Len(t, feature.calls, 1, "strangers are ignored in DMs")
}

func TestDispatchIgnoresForeignGuildsAndBots(t *testing.T) {
	b, session, feature := newTestBot(t)

	b.HandleMessage(context.Background(), message("555", userID, "!ping"))
	m := message(chattest.GuildID, "9", "!ping")
	m.Author.Bot = true
	b.HandleMessage(context.Background(), m)
	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "ping"))

	assert.Empty(t, feature.calls)
	assert.Empty(t, session.Sent)
}

func TestDispatchUnknownCommand(t *testing.T) {
	b, session, _ := newTestBot(t)

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!nope"))
	assert.Equal(t, "<@7> Unknown command. Type `!help` for the list of commands.", session.LastText())
}

func TestDispatchSurvivesPanicsAndErrors(t *testing.T) {
	b, session, feature := newTestBot(t)

	assert.NotPanics(t, func() {
		b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!boom"))
	})

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!fail"))
	embed := session.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, msgFailed, embed.Fields[0].Value)

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!ping"))
	assert.Equal(t, []string{"ping"}, feature.calls)
}

func TestHelpHidesPrivilegedCommands(t *testing.T) {
	b, session, _ := newTestBot(t)

	b.HandleMessage(context.Background(), message(chattest.GuildID, userID, "!help"))
	embed := session.LastEmbed()
	require.NotNil(t, embed)
	for _, f := range embed.Fields {
		assert.NotEqual(t, "!secret", f.Name)
	}
}
