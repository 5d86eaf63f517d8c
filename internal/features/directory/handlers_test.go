package directory

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubbergod.cz/discord-bot/internal/chat/chattest"
)

func fieldValue(embed *discordgo.MessageEmbed, name string) string {
	for _, f := range embed.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func TestCommandsArePrivileged(t *testing.T) {
	h := NewHandler(newFixture(t).service)

	for _, cmd := range h.Commands() {
		assert.True(t, cmd.Privileged, cmd.Name)
		assert.True(t, cmd.GuildOnly, cmd.Name)
	}
}

func TestHandleAddByRoleName(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	f.session.AddMember(chattest.GuildID, "10")

	c := chattest.Invoke(f.session, modID, stalkChan, "database add", "<@10>", "xnovak00", "fekt")
	require.NoError(t, h.HandleAdd(c))

	embed := f.session.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, "Whois", embed.Title)
	assert.Equal(t, "xnovak00@stud.feec.vutbr.cz", fieldValue(embed, "E-mail"))
	assert.Equal(t, "MANUAL", fieldValue(embed, "Code"))
	assert.Equal(t, "2024-03-09", fieldValue(embed, "Changed"))
	assert.Contains(t, f.session.Granted, "10:"+fektRoleID)
}

func TestHandleAddReportsRollback(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	f.session.AddMember(chattest.GuildID, "10")
	f.session.RoleErr = chattest.ErrForbidden

	c := chattest.Invoke(f.session, modID, stalkChan, "database add", "10", "xnovak00", "<@&"+fektRoleID+">")
	require.NoError(t, h.HandleAdd(c))

	assert.Equal(t, msgRoleError, fieldValue(f.session.LastEmbed(), "Error"))
}

func TestHandleAddUsage(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)

	c := chattest.Invoke(f.session, modID, stalkChan, "database add", "10")
	require.NoError(t, h.HandleAdd(c))

	assert.Equal(t, usageAdd, fieldValue(f.session.LastEmbed(), "Error"))
}

func TestHandleUpdate(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	seed(t, f.store, User{DiscordID: "10", Login: "xnovak00", Group: "FEKT", Status: StatusPending})

	c := chattest.Invoke(f.session, modID, stalkChan, "database update", "<@10>", "comment", "second", "year")
	require.NoError(t, h.HandleUpdate(c))
	assert.Equal(t, msgUpdateSuccess, f.session.LastText())

	u, err := f.store.Get(c.Ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, "second year", u.Comment)

	c = chattest.Invoke(f.session, modID, stalkChan, "database update", "<@10>", "status", "gone")
	require.NoError(t, h.HandleUpdate(c))
	assert.Equal(t, msgInvalidValue, fieldValue(f.session.LastEmbed(), "Error"))

	c = chattest.Invoke(f.session, modID, stalkChan, "database update", "<@10>", "code", "X")
	require.NoError(t, h.HandleUpdate(c))
	assert.Equal(t, msgInvalidKey, fieldValue(f.session.LastEmbed(), "Error"))
}

func TestHandleRemove(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	seed(t, f.store, User{DiscordID: "10", Login: "xnovak00"})

	c := chattest.Invoke(f.session, modID, stalkChan, "database remove", "<@10>")
	require.NoError(t, h.HandleRemove(c))
	assert.Equal(t, "1 user removed from the database.", f.session.LastText())

	c = chattest.Invoke(f.session, modID, stalkChan, "database remove", "<@10>")
	require.NoError(t, h.HandleRemove(c))
	assert.Equal(t, msgDeleteError, fieldValue(f.session.LastEmbed(), "Error"))
}

func TestHandleShowAcceptsUnverified(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	seed(t, f.store,
		User{DiscordID: "10", Login: "xnovak00", Group: "FEKT", Status: StatusUnknown, Changed: "20240101"},
		User{DiscordID: "11", Login: "xdvora00", Group: "FEKT", Status: StatusVerified},
	)
	f.session.AddMember(chattest.GuildID, "10")

	c := chattest.Invoke(f.session, modID, stalkChan, "database show", "unverified")
	require.NoError(t, h.HandleShow(c))

	embed := f.session.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, "1 user found", fieldValue(embed, "Result"))
	assert.Equal(t, "xnovak00@stud.feec.vutbr.cz\nLast action on 2024-01-01", fieldValue(embed, "**user10**, 10"))
	assert.Contains(t, f.session.Deleted, c.Message.ID)
}

func TestHandleShowRejectsUnknownState(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)

	c := chattest.Invoke(f.session, modID, stalkChan, "database show", "expelled")
	require.NoError(t, h.HandleShow(c))

	assert.Contains(t, fieldValue(f.session.LastEmbed(), "Error"), "`unverified`")
}

func TestHandleWhoisEmail(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	seed(t, f.store,
		User{DiscordID: "10", Login: "xnovak00", Group: "FEKT", Status: StatusVerified},
		User{DiscordID: "11", Login: "xgone00", Group: "FEKT", Status: StatusVerified},
	)
	f.session.AddMember(chattest.GuildID, "10", fektRoleID)

	c := chattest.Invoke(f.session, modID, stalkChan, "whois email", "nobody")
	require.NoError(t, h.HandleWhoisEmail(c))
	assert.Equal(t, msgNotFound, fieldValue(f.session.LastEmbed(), "Notice"))

	c = chattest.Invoke(f.session, modID, stalkChan, "whois email", "xgone00")
	require.NoError(t, h.HandleWhoisEmail(c))
	assert.Equal(t, msgNotInGuild, fieldValue(f.session.LastEmbed(), "Notice"))

	c = chattest.Invoke(f.session, modID, stalkChan, "whois email", "xnovak00")
	require.NoError(t, h.HandleWhoisEmail(c))
	embed := f.session.LastEmbed()
	assert.Equal(t, "<@10>", embed.Description)
	assert.Equal(t, "<@&"+fektRoleID+">", fieldValue(embed, "Roles"))
}

func TestHandleWhoisMemberWithoutRow(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	f.session.AddMember(chattest.GuildID, "10")

	c := chattest.Invoke(f.session, modID, stalkChan, "whois member", "<@10>")
	require.NoError(t, h.HandleWhoisMember(c))

	embed := f.session.LastEmbed()
	assert.Empty(t, fieldValue(embed, "E-mail"))
	assert.Equal(t, msgMissing, fieldValue(embed, "Roles"))
}

func TestHandleWhoisLogins(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	seed(t, f.store,
		User{DiscordID: "10", Login: "xnovak00", Group: "FEKT"},
		User{DiscordID: "11", Login: "xnovot01", Group: "VUT"},
		User{DiscordID: "12", Login: "xdvora00", Group: "VUT"},
	)

	c := chattest.Invoke(f.session, modID, stalkChan, "whois logins", "xnov")
	require.NoError(t, h.HandleWhoisLogins(c))

	embed := f.session.LastEmbed()
	assert.Equal(t, "2 results found.", embed.Description)
	require.Len(t, embed.Fields, 1)
	assert.Contains(t, embed.Fields[0].Value, "xnovak00@stud.feec.vutbr.cz")
	assert.Contains(t, embed.Fields[0].Value, "xnovot01@vutbr.cz")
}

func TestHandleGuild(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	seed(t, f.store,
		User{DiscordID: "10", Login: "a", Group: "FEKT", Status: StatusVerified},
		User{DiscordID: "11", Login: "b", Group: "VUT", Status: StatusBanned},
	)

	c := chattest.Invoke(f.session, modID, stalkChan, "guild")
	require.NoError(t, h.HandleGuild(c))

	embed := f.session.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, "**0** unknown, **0** pending, **1** verified, **0** kicked, **1** banned",
		fieldValue(embed, "Verification states"))
	assert.Equal(t, "Total count 3\n**FEKT** 1, **VUT** 1", fieldValue(embed, "Roles"))
	assert.Equal(t, "1 text channels, 1 voice channels", fieldValue(embed, "1 categories"))
	assert.Equal(t, "Total count **42**, 0 boosters", fieldValue(embed, "Users"))
}

func TestHandleChannelInfo(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)
	f.session.Channels["400"] = &discordgo.Channel{
		ID:    "400",
		Name:  "general",
		Topic: "talk",
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: fektRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: 1024},
			{ID: "10", Type: discordgo.PermissionOverwriteTypeMember, Allow: 2048},
		},
	}
	f.session.Hooks["400"] = []*discordgo.Webhook{{ID: "1"}, {ID: "2"}}

	c := chattest.Invoke(f.session, modID, stalkChan, "channelinfo", "<#400>")
	require.NoError(t, h.HandleChannelInfo(c))

	embed := f.session.LastEmbed()
	require.NotNil(t, embed)
	assert.Equal(t, "Information about `#general`", embed.Title)
	assert.Equal(t, "2", fieldValue(embed, "Webhooks"))
	assert.True(t, strings.Contains(embed.Description, "1) <@&"+fektRoleID+"> (Permissions value: 1024)"))
	assert.True(t, strings.Contains(embed.Description, "1) <@10> (Permissions value: 2048)"))
}
