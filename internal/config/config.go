// Package config loads the bot configuration from environment variables.
// envconfig maps variables onto struct fields; lists and emoji tables are
// parsed by hand after that.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds ALL settings of the application.
type Config struct {
	// --- Discord ---
	DiscordToken  string   `envconfig:"DISCORD_TOKEN" required:"true"`
	GuildID       string   `envconfig:"GUILD_ID" required:"true"`
	AdminID       string   `envconfig:"ADMIN_ID" required:"true"`
	ModRoleIDsRaw string   `envconfig:"MOD_ROLE_IDS"`
	ModRoleIDs    []string `envconfig:"-"`
	CommandPrefix string   `envconfig:"COMMAND_PREFIX" default:"!"`
	BotRoomIDsRaw string   `envconfig:"BOT_ROOM_IDS"`
	BotRoomIDs    []string `envconfig:"-"`
	// How many events are handled in parallel.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`

	// --- Database ---
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"discord_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"bot.db"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Prague"`

	// --- Presentation ---
	EmbedDelay  time.Duration `envconfig:"EMBED_DELAY" default:"60s"`
	ColorBase   int           `envconfig:"COLOR_BASE" default:"1741985"`
	ColorError  int           `envconfig:"COLOR_ERROR" default:"16711680"`
	ColorNotify int           `envconfig:"COLOR_NOTIFY" default:"16750848"`

	// --- Karma ---
	KarmaEmojisRaw      string         `envconfig:"KARMA_EMOJIS" default:"👍=1,👎=-1"`
	KarmaEmojis         map[string]int `envconfig:"-"`
	KarmaChannelIDsRaw  string         `envconfig:"KARMA_CHANNEL_IDS"`
	KarmaChannelIDs     []string       `envconfig:"-"`
	VoteChannelID       string         `envconfig:"VOTE_CHANNEL_ID"`
	LeaderboardPageSize int            `envconfig:"LEADERBOARD_PAGE_SIZE" default:"10"`

	// --- Roles ---
	RoleChannelIDsRaw string    `envconfig:"ROLE_CHANNEL_IDS"`
	RoleChannelIDs    []string  `envconfig:"-"`
	RoleString        string    `envconfig:"ROLE_STRING" default:"Role"`
	RoleBindingsRaw   string    `envconfig:"ROLE_BINDINGS"`
	RoleBindings      []Binding `envconfig:"-"`

	// --- Directory ---
	VerifyRoleID          string            `envconfig:"VERIFY_ROLE_ID"`
	DirectoryGroupsRaw    string            `envconfig:"DIRECTORY_GROUPS" default:"FEKT,VUT"`
	DirectoryGroups       []string          `envconfig:"-"`
	DirectoryDomainsRaw   string            `envconfig:"DIRECTORY_EMAIL_DOMAINS" default:"FEKT=stud.feec.vutbr.cz,VUT=vutbr.cz"`
	DirectoryEmailDomains map[string]string `envconfig:"-"`

	// --- Librarian ---
	WeatherToken     string        `envconfig:"WEATHER_TOKEN"`
	WeatherURL       string        `envconfig:"WEATHER_URL" default:"https://api.openweathermap.org/data/2.5/weather"`
	WeatherPlace     string        `envconfig:"WEATHER_PLACE" default:"Brno"`
	NamedayURL       string        `envconfig:"NAMEDAY_URL" default:"http://svatky.adresa.info/json"`
	StartingWeek     int           `envconfig:"STARTING_WEEK" default:"38"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	NamedayChannelID string        `envconfig:"NAMEDAY_CHANNEL_ID"`
	NamedayCron      string        `envconfig:"NAMEDAY_CRON" default:"0 7 * * *"`

	// --- Cooldowns (requests per window, per user and command) ---
	CooldownKarmaRequests       int           `envconfig:"COOLDOWN_KARMA_REQUESTS" default:"5"`
	CooldownKarmaWindow         time.Duration `envconfig:"COOLDOWN_KARMA_WINDOW" default:"30s"`
	CooldownLeaderboardRequests int           `envconfig:"COOLDOWN_LEADERBOARD_REQUESTS" default:"2"`
	CooldownLeaderboardWindow   time.Duration `envconfig:"COOLDOWN_LEADERBOARD_WINDOW" default:"30s"`
	CooldownDefaultRequests     int           `envconfig:"COOLDOWN_DEFAULT_REQUESTS" default:"10"`
	CooldownDefaultWindow       time.Duration `envconfig:"COOLDOWN_DEFAULT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureKarmaEnabled bool `envconfig:"FEATURE_KARMA_ENABLED" default:"true"`
	FeatureRolesEnabled bool `envconfig:"FEATURE_ROLES_ENABLED" default:"true"`
}

// Binding maps one reaction emoji onto the role it grants.
type Binding struct {
	Emoji  string
	RoleID string
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.GuildID == "" || c.GuildID == "0" {
		return fmt.Errorf("GUILD_ID is empty or 0")
	}
	if c.AdminID == "" || c.AdminID == "0" {
		return fmt.Errorf("ADMIN_ID is empty or 0")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT must be > 0")
	}
	switch c.DBDriver {
	case "postgres":
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is empty")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if len(c.KarmaEmojis) == 0 {
		return fmt.Errorf("KARMA_EMOJIS is empty")
	}
	if c.LeaderboardPageSize <= 0 {
		return fmt.Errorf("LEADERBOARD_PAGE_SIZE must be > 0")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}
	return nil
}

// Load reads environment variables and fills the Config structure.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}
	if err := cfg.parse(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parse fills the fields that envconfig leaves alone.
func (c *Config) parse() error {
	var err error
	if c.ModRoleIDs, err = ParseIDList(c.ModRoleIDsRaw); err != nil {
		return fmt.Errorf("MOD_ROLE_IDS parse: %w", err)
	}
	if c.BotRoomIDs, err = ParseIDList(c.BotRoomIDsRaw); err != nil {
		return fmt.Errorf("BOT_ROOM_IDS parse: %w", err)
	}
	if c.KarmaChannelIDs, err = ParseIDList(c.KarmaChannelIDsRaw); err != nil {
		return fmt.Errorf("KARMA_CHANNEL_IDS parse: %w", err)
	}
	if c.RoleChannelIDs, err = ParseIDList(c.RoleChannelIDsRaw); err != nil {
		return fmt.Errorf("ROLE_CHANNEL_IDS parse: %w", err)
	}
	if c.KarmaEmojis, err = ParseEmojiTable(c.KarmaEmojisRaw); err != nil {
		return fmt.Errorf("KARMA_EMOJIS parse: %w", err)
	}
	if c.RoleBindings, err = ParseBindings(c.RoleBindingsRaw); err != nil {
		return fmt.Errorf("ROLE_BINDINGS parse: %w", err)
	}
	c.DirectoryGroups = parseUpperList(c.DirectoryGroupsRaw)
	pairs, err := parsePairs(c.DirectoryDomainsRaw)
	if err != nil {
		return fmt.Errorf("DIRECTORY_EMAIL_DOMAINS parse: %w", err)
	}
	c.DirectoryEmailDomains = make(map[string]string, len(pairs))
	for _, p := range pairs {
		c.DirectoryEmailDomains[strings.ToUpper(p[0])] = p[1]
	}
	return nil
}

// ParseIDList parses a comma separated list of Discord snowflakes.
func ParseIDList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			return nil, fmt.Errorf("bad snowflake %q: %w", p, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseEmojiTable parses "emoji=weight,emoji=weight" into a lookup table.
// Weights must be non-zero; custom emojis use the "name:id" form.
func ParseEmojiTable(s string) (map[string]int, error) {
	pairs, err := parsePairs(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(pairs))
	for _, p := range pairs {
		v, err := strconv.Atoi(p[1])
		if err != nil {
			return nil, fmt.Errorf("bad weight %q: %w", p[1], err)
		}
		if v == 0 {
			return nil, fmt.Errorf("emoji %q has zero weight", p[0])
		}
		out[p[0]] = v
	}
	return out, nil
}

// ParseBindings parses "emoji=roleID,emoji=roleID" keeping the given order.
func ParseBindings(s string) ([]Binding, error) {
	pairs, err := parsePairs(s)
	if err != nil {
		return nil, err
	}
	out := make([]Binding, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if _, err := strconv.ParseUint(p[1], 10, 64); err != nil {
			return nil, fmt.Errorf("bad role id %q: %w", p[1], err)
		}
		if seen[p[0]] {
			return nil, fmt.Errorf("emoji %q bound twice", p[0])
		}
		seen[p[0]] = true
		out = append(out, Binding{Emoji: p[0], RoleID: p[1]})
	}
	return out, nil
}

// SortedEmojis returns the table keys ordered by weight desc, then name.
func SortedEmojis(table map[string]int) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if table[keys[i]] != table[keys[j]] {
			return table[keys[i]] > table[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func parsePairs(s string) ([][2]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out [][2]string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		idx := strings.LastIndex(item, "=")
		if idx <= 0 || idx == len(item)-1 {
			return nil, fmt.Errorf("bad pair %q, expected key=value", item)
		}
		out = append(out, [2]string{strings.TrimSpace(item[:idx]), strings.TrimSpace(item[idx+1:])})
	}
	return out, nil
}

func parseUpperList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
