// Package bot turns chat messages addressed to paperbot into actions.
package bot

import (
	"regexp"
	"strings"
)

// Command is a chat command addressed to the bot.
type Command struct {
	Name string
	Args string
	User string
}

// The mention must lead the message: "<@BOT> cmd args" is a command while
// "hello <@BOT> cmd" is not.
var mentionRegex = regexp.MustCompile(`(?s)^<@(\w*)>\s+(\w+)\s*(.*)$`)

// ParseCommand extracts a command from a chat message. When botID is set
// the leading mention must name it. The second result is false when the
// message is not addressed to the bot.
func ParseCommand(text, botID string) (Command, bool) {
	m := mentionRegex.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Command{}, false
	}
	if botID != "" && m[1] != botID {
		return Command{}, false
	}
	return Command{Name: m[2], Args: strings.TrimSpace(m[3])}, true
}
