package chat_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/chat/chattest"
	"rubbergod.cz/discord-bot/internal/common"
)

func TestParseUserID(t *testing.T) {
	for _, arg := range []string{"<@123>", "<@!123>", "123", " 123 "} {
		id, err := chat.ParseUserID(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, "123", id)
	}

	for _, arg := range []string{"", "abc", "<@&123>", "0", "@someone"} {
		_, err := chat.ParseUserID(arg)
		assert.ErrorIs(t, err, common.ErrInvalidMember, arg)
	}
}

func TestParseRoleAndChannelID(t *testing.T) {
	id, ok := chat.ParseRoleID("<@&55>")
	assert.True(t, ok)
	assert.Equal(t, "55", id)

	_, ok = chat.ParseRoleID("FEKT")
	assert.False(t, ok)

	id, ok = chat.ParseChannelID("<#77>")
	assert.True(t, ok)
	assert.Equal(t, "77", id)
}

func TestParseMessageRef(t *testing.T) {
	tests := []struct {
		arg  string
		want chat.MessageRef
	}{
		{"https://discord.com/channels/1/2/3", chat.MessageRef{ChannelID: "2", MessageID: "3"}},
		{"https://discordapp.com/channels/1/2/3", chat.MessageRef{ChannelID: "2", MessageID: "3"}},
		{"https://ptb.discord.com/channels/1/2/3/", chat.MessageRef{ChannelID: "2", MessageID: "3"}},
		{"20-30", chat.MessageRef{ChannelID: "20", MessageID: "30"}},
		{"30", chat.MessageRef{ChannelID: "here", MessageID: "30"}},
	}
	for _, tt := range tests {
		got, err := chat.ParseMessageRef(tt.arg, "here")
		require.NoError(t, err, tt.arg)
		assert.Equal(t, tt.want, got, tt.arg)
	}

	_, err := chat.ParseMessageRef("https://example.com/channels/1/2/3", "here")
	assert.ErrorIs(t, err, common.ErrInvalidMessageRef)
	_, err = chat.ParseMessageRef("hello", "here")
	assert.ErrorIs(t, err, common.ErrInvalidMessageRef)
}

func TestResolveMessage(t *testing.T) {
	s := chattest.NewSession("1")
	s.AddMessage(&discordgo.Message{ID: "30", ChannelID: "20", Content: "target"})

	c := chattest.Invoke(s, "5", "20", "karma message")
	m, err := c.ResolveMessage("30")
	require.NoError(t, err)
	assert.Equal(t, "target", m.Content)

	_, err = c.ResolveMessage("31")
	assert.ErrorIs(t, err, common.ErrInvalidMessageRef)

	_, err = c.ResolveMessage("")
	assert.ErrorIs(t, err, common.ErrInvalidMessageRef)

	c.Message.MessageReference = &discordgo.MessageReference{MessageID: "30"}
	m, err = c.ResolveMessage("")
	require.NoError(t, err)
	assert.Equal(t, "30", m.ID)
}

func TestResolveMember(t *testing.T) {
	s := chattest.NewSession("1")
	s.AddMember(chattest.GuildID, "42")

	c := chattest.Invoke(s, "5", "20", "karma stalk")
	m, err := c.ResolveMember("<@42>")
	require.NoError(t, err)
	assert.Equal(t, "42", m.User.ID)

	_, err = c.ResolveMember("<@43>")
	assert.ErrorIs(t, err, common.ErrInvalidMember)
}

func TestErrorCard(t *testing.T) {
	s := chattest.NewSession("1")
	c := chattest.Invoke(s, "5", "20", "karma give", "x")

	c.Error("bad amount")

	embed := s.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, "!karma give", embed.Title)
	assert.Equal(t, c.Settings.ColorError, embed.Color)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "bad amount", embed.Fields[0].Value)
	assert.Equal(t, "!karma give x", embed.Fields[1].Value)
	assert.Contains(t, s.Deleted, c.Message.ID)
}

func TestRoomCheck(t *testing.T) {
	s := chattest.NewSession("1")
	c := chattest.Invoke(s, "5", "20", "karma")

	c.RoomCheck()
	assert.Empty(t, s.Sent)

	c.Settings.BotRooms = []string{"99"}
	c.RoomCheck()
	assert.Contains(t, s.LastText(), "<#99>")

	c.ChannelID = "99"
	before := len(s.Sent)
	c.RoomCheck()
	assert.Len(t, s.Sent, before)
}
