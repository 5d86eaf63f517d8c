package chat

import "strings"

// Command is one entry of the command table. Groups carry Subcommands;
// a group without Run answers with its help.
type Command struct {
	Name    string
	Aliases []string
	Help    string

	// Privileged commands are limited to the admin and moderator roles.
	Privileged bool
	// GuildOnly commands are refused in direct messages.
	GuildOnly bool
	// Cooldown names the rate limit bucket; subcommands share the bucket
	// of their root command.
	Cooldown string

	Run         func(c *Context) error
	Subcommands []*Command
}

// Matches reports whether word names the command, ignoring case.
func (cmd *Command) Matches(word string) bool {
	if strings.EqualFold(cmd.Name, word) {
		return true
	}
	for _, a := range cmd.Aliases {
		if strings.EqualFold(a, word) {
			return true
		}
	}
	return false
}

// Sub returns the subcommand named word, or nil.
func (cmd *Command) Sub(word string) *Command {
	for _, s := range cmd.Subcommands {
		if s.Matches(word) {
			return s
		}
	}
	return nil
}

// Usage lists the subcommands with their help lines.
func (cmd *Command) Usage(c *Context) *Card {
	card := c.Card(0)
	if cmd.Help != "" {
		card.Description = cmd.Help
	}
	for _, s := range cmd.Subcommands {
		card.Field(s.Name, s.Help, false)
	}
	return card
}
