package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 123, 456 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"123", "456"}, ids)

	ids, err = ParseIDList("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseIDList("123,abc")
	assert.Error(t, err)
}

func TestParseEmojiTable(t *testing.T) {
	table, err := ParseEmojiTable("👍=1, 👎=-1, pepe:123456=2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 1, "👎": -1, "pepe:123456": 2}, table)

	_, err = ParseEmojiTable("👍=0")
	assert.Error(t, err, "zero weight")

	_, err = ParseEmojiTable("👍=x")
	assert.Error(t, err)

	_, err = ParseEmojiTable("👍")
	assert.Error(t, err)
}

func TestParseBindings(t *testing.T) {
	bindings, err := ParseBindings("🐍=11,🦀=22")
	require.NoError(t, err)
	assert.Equal(t, []Binding{{Emoji: "🐍", RoleID: "11"}, {Emoji: "🦀", RoleID: "22"}}, bindings)

	_, err = ParseBindings("🐍=11,🐍=22")
	assert.Error(t, err, "emoji bound twice")

	_, err = ParseBindings("🐍=python")
	assert.Error(t, err)
}

func TestSortedEmojis(t *testing.T) {
	keys := SortedEmojis(map[string]int{"b": 1, "a": 1, "c": 2, "d": -1})
	assert.Equal(t, []string{"c", "a", "b", "d"}, keys)
}

func TestLoad(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GUILD_ID", "100")
	t.Setenv("ADMIN_ID", "2")
	t.Setenv("MOD_ROLE_IDS", "60,61")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DIRECTORY_GROUPS", "fekt, vut")
	t.Setenv("DIRECTORY_EMAIL_DOMAINS", "fekt=stud.feec.vutbr.cz")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"60", "61"}, cfg.ModRoleIDs)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, []string{"FEKT", "VUT"}, cfg.DirectoryGroups)
	assert.Equal(t, map[string]string{"FEKT": "stud.feec.vutbr.cz"}, cfg.DirectoryEmailDomains)
	assert.Equal(t, map[string]int{"👍": 1, "👎": -1}, cfg.KarmaEmojis)
}

func TestLoadRejectsBadLists(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GUILD_ID", "100")
	t.Setenv("ADMIN_ID", "2")
	t.Setenv("ROLE_BINDINGS", "🐍=python")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			GuildID:             "100",
			AdminID:             "2",
			BotMaxInflight:      4,
			DBDriver:            "postgres",
			DBMaxConns:          5,
			DBMinConns:          1,
			KarmaEmojis:         map[string]int{"👍": 1},
			LeaderboardPageSize: 10,
			HTTPTimeout:         1,
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"guild":      func(c *Config) { c.GuildID = "0" },
		"admin":      func(c *Config) { c.AdminID = "" },
		"inflight":   func(c *Config) { c.BotMaxInflight = 0 },
		"conns":      func(c *Config) { c.DBMinConns = 10 },
		"driver":     func(c *Config) { c.DBDriver = "mysql" },
		"sqlitePath": func(c *Config) { c.DBDriver = "sqlite" },
		"emojis":     func(c *Config) { c.KarmaEmojis = nil },
		"pageSize":   func(c *Config) { c.LeaderboardPageSize = 0 },
		"timeout":    func(c *Config) { c.HTTPTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
