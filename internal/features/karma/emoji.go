// Package karma: emoji.go maps reaction emojis onto vote values.
package karma

import (
	"strings"

	"rubbergod.cz/discord-bot/internal/config"
)

// EmojiValue is one vote emoji with its weight.
type EmojiValue struct {
	Emoji string
	Value int
}

// EmojiTable maps the API name of an emoji ("👍" or "name:id") onto the
// value of a vote cast with it.
type EmojiTable map[string]int

// Value returns the weight of emoji and whether it counts as a vote.
func (t EmojiTable) Value(emoji string) (int, bool) {
	v, ok := t[emoji]
	return v, ok
}

// Sorted lists the table by weight, highest first.
func (t EmojiTable) Sorted() []EmojiValue {
	keys := config.SortedEmojis(t)
	out := make([]EmojiValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, EmojiValue{Emoji: k, Value: t[k]})
	}
	return out
}

// Mention renders an emoji key the way it is written in a message.
func Mention(emoji string) string {
	if name, id, ok := strings.Cut(emoji, ":"); ok && id != "" {
		return "<:" + name + ":" + id + ">"
	}
	return emoji
}
