package bot

import (
	"strings"

	"rubbergod.cz/discord-bot/internal/chat"
)

// CommandParser splits "<prefix>command args" messages.
type CommandParser struct {
	prefix string
}

// NewCommandParser creates a parser for the given command prefix.
func NewCommandParser(prefix string) *CommandParser {
	return &CommandParser{prefix: prefix}
}

// ParseCommand returns the words after the prefix. ok is false for
// messages that are not commands.
func (p *CommandParser) ParseCommand(text string) ([]string, bool) {
	text = strings.TrimSpace(text)
	if p.prefix == "" || !strings.HasPrefix(text, p.prefix) {
		return nil, false
	}

	words := strings.Fields(strings.TrimPrefix(text, p.prefix))
	if len(words) == 0 {
		return nil, false
	}
	return words, true
}

// Registry is the command table of every feature.
type Registry struct {
	commands []*chat.Command
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds commands. A later command never shadows an earlier one.
func (r *Registry) Register(cmds ...*chat.Command) {
	r.commands = append(r.commands, cmds...)
}

// Commands lists every registered root command.
func (r *Registry) Commands() []*chat.Command {
	return r.commands
}

// Match is a resolved command invocation.
type Match struct {
	Root    *chat.Command
	Command *chat.Command
	// Path are the canonical command names, e.g. ["karma", "get"].
	Path []string
	Args []string
}

// Resolve finds the command named by words, descending into subcommands
// as long as the next word names one. Matching ignores case.
func (r *Registry) Resolve(words []string) (Match, bool) {
	if len(words) == 0 {
		return Match{}, false
	}
	var root *chat.Command
	for _, cmd := range r.commands {
		if cmd.Matches(words[0]) {
			root = cmd
			break
		}
	}
	if root == nil {
		return Match{}, false
	}

	m := Match{Root: root, Command: root, Path: []string{root.Name}}
	i := 1
	for i < len(words) {
		sub := m.Command.Sub(words[i])
		if sub == nil {
			break
		}
		m.Command = sub
		m.Path = append(m.Path, sub.Name)
		i++
	}
	m.Args = words[i:]
	return m, true
}
