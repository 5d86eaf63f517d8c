// Package common: pluralize.go holds small number formatting helpers
// used by leaderboards and directory listings.
package common

import "fmt"

// Plural picks the singular or plural noun for n.
//
// Examples:
//
//	Plural(1, "user", "users")  → "1 user"
//	Plural(0, "user", "users")  → "0 users"
//	Plural(-1, "vote", "votes") → "-1 vote"
func Plural(n int, singular, plural string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// FormatSigned prints n with an explicit sign: "+3", "-2", "0".
func FormatSigned(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
