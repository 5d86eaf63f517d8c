// Package common contains utilities shared by the whole project:
// time in the guild's zone, directory date stamps, snowflake dates.
package common

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// StampLayout is the layout of the directory "changed" column.
const StampLayout = "20060102"

// LoadLocation returns the zone the guild lives in.
// Falls back to CET (UTC+1) when the tz database is missing in the container.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CET", 1*60*60)
	}
	return loc
}

// Clock returns a function giving the current time in loc.
// Services take it as a dependency so tests can freeze time.
func Clock(loc *time.Location) func() time.Time {
	return func() time.Time {
		return time.Now().In(loc)
	}
}

// DateStamp formats t as YYYYMMDD for the directory "changed" column.
func DateStamp(t time.Time) string {
	return t.Format(StampLayout)
}

// FormatStamp turns a YYYYMMDD stamp into YYYY-MM-DD.
// Returns an empty string for anything that is not an 8 character stamp.
func FormatStamp(stamp string) string {
	if len(stamp) != 8 {
		return ""
	}
	return stamp[:4] + "-" + stamp[4:6] + "-" + stamp[6:]
}

// SnowflakeDate returns the creation date of a Discord id as YYYY-MM-DD.
func SnowflakeDate(id string) string {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Truncate cuts s to at most n runes, adding an ellipsis when something was cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
