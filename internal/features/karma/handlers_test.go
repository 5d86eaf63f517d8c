package karma

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubbergod.cz/discord-bot/internal/chat/chattest"
)

func TestHandleKarmaShowsOwnTotals(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service, testConfig())
	require.NoError(t, f.store.Give(context.Background(), "42", 3))

	require.NoError(t, h.HandleKarma(chattest.Invoke(f.session, "42", karmaChan, "karma")))
	assert.Contains(t, f.session.LastText(), "karma **3** (#1)")

	require.NoError(t, h.HandleKarma(chattest.Invoke(f.session, "42", karmaChan, "karma", "bogus")))
	assert.Equal(t, fmt.Sprintf(msgInvalidCommand, "42"), f.session.LastText())
}

func TestHandleStalk(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service, testConfig())
	f.session.AddMember(chattest.GuildID, "77")

	require.NoError(t, h.HandleStalk(chattest.Invoke(f.session, "42", karmaChan, "karma stalk", "<@77>")))
	assert.Contains(t, f.session.LastText(), "no karma yet")

	require.NoError(t, h.HandleStalk(chattest.Invoke(f.session, "42", karmaChan, "karma stalk", "<@78>")))
	assert.Equal(t, fmt.Sprintf(msgMemberNotFound, "42"), f.session.LastText())
}

func TestHandleVoteOutsideVoteRoom(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service, testConfig())
	f.message("m1", otherChan, authorUser)

	c := chattest.Invoke(f.session, "42", otherChan, "karma vote", "m1")
	require.NoError(t, h.HandleVote(c))

	assert.Equal(t, fmt.Sprintf(msgVoteRoomOnly, "42", voteChanID), f.session.LastText())
	open, err := f.store.IsOpen(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestHandleVoteByAdmin(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service, testConfig())
	f.message("801", otherChan, authorUser)

	c := chattest.Invoke(f.session, adminID, otherChan, "karma vote", fmt.Sprintf("%s-%s", otherChan, "801"))
	require.NoError(t, h.HandleVote(c))

	assert.Contains(t, f.session.Deleted, c.Message.ID, "command message is removed")
	open, err := f.store.IsOpen(context.Background(), "801")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestHandleGive(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service, testConfig())
	f.session.AddMember(chattest.GuildID, "77")

	require.NoError(t, h.HandleGive(chattest.Invoke(f.session, "42", karmaChan, "karma give", "5", "<@77>")))
	assert.Equal(t, fmt.Sprintf(msgInsufficientRights, "42"), f.session.LastText())

	require.NoError(t, h.HandleGive(chattest.Invoke(f.session, adminID, karmaChan, "karma give", "x", "<@77>")))
	assert.Equal(t, fmt.Sprintf(msgGiveFormat, adminID), f.session.LastText())

	require.NoError(t, h.HandleGive(chattest.Invoke(f.session, adminID, karmaChan, "karma give", "5", "<@77>")))
	assert.Equal(t, 5, f.received(t, "77"))
}

func TestHandleGiveReportsStoreFailure(t *testing.T) {
	f := newFixture(t)
	service := NewService(failingGiveStore{f.store}, f.session, testConfig())
	h := NewHandler(service, testConfig())
	f.session.AddMember(chattest.GuildID, "77")

	c := chattest.Invoke(f.session, adminID, karmaChan, "karma give", "5", "<@77>")
	require.NoError(t, h.HandleGive(c))

	embed := f.session.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, c.Settings.ColorError, embed.Color)
	assert.Equal(t, fmt.Sprintf(msgGiveFailed, 0, 1), embed.Fields[0].Value)
}

func TestHandleLeaderboard(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service, testConfig())
	require.NoError(t, f.store.Give(context.Background(), "42", 3))

	require.NoError(t, h.HandleLeaderboard(chattest.Invoke(f.session, "42", karmaChan, "leaderboard"), boards[0]))
	embed := f.session.LastEmbed()
	require.NotNil(t, embed)
	assert.Contains(t, embed.Fields[0].Value, "1 – <@42>: **3**")

	for _, arg := range []string{"0", "100000000", "abc"} {
		require.NoError(t, h.HandleLeaderboard(chattest.Invoke(f.session, "42", karmaChan, "leaderboard", arg), boards[0]))
		assert.Equal(t, fmt.Sprintf(msgOffsetError, "42"), f.session.LastText(), arg)
	}
}

func TestCommandsTable(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service, testConfig())

	cmds := h.Commands()
	require.Len(t, cmds, 5)
	assert.NotNil(t, cmds[0].Sub("REVOTE"))
	assert.Nil(t, cmds[0].Sub("nope"))
	assert.Equal(t, "leaderboard", cmds[1].Cooldown)
}
