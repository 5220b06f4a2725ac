package bot

import "strings"

// Command is a special message handled before rule matching.
type Command int

const (
	// CommandNone means the message is matched against the point rules.
	CommandNone Command = iota
	CommandHelp
	CommandPoints
	CommandHistory
)

var commandAliases = map[Command][]string{
	CommandHelp:    {"#help", "#ヘルプ", "help", "ヘルプ"},
	CommandPoints:  {"#ポイント", "#point", "ポイント", "point"},
	CommandHistory: {"#履歴", "#history", "履歴", "history"},
}

var commandLookup = func() map[string]Command {
	m := make(map[string]Command)
	for cmd, aliases := range commandAliases {
		for _, a := range aliases {
			m[a] = cmd
		}
	}
	return m
}()

// ParseCommand resolves text to a Command. Only the whole message counts,
// compared case-insensitively.
func ParseCommand(text string) Command {
	return commandLookup[strings.ToLower(strings.TrimSpace(text))]
}

func (c Command) String() string {
	switch c {
	case CommandHelp:
		return "help"
	case CommandPoints:
		return "points"
	case CommandHistory:
		return "history"
	default:
		return "none"
	}
}
