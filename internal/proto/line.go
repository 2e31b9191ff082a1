// Package proto defines the line-oriented wire protocol: how an input line
// becomes a core.Command and how core events are rendered back to text.
package proto

import (
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/vovakirdan/linechat-server/internal/core"
)

const (
	// LineTerminator ends every line written to a stream connection.
	LineTerminator = "\r\n"
	// DefaultMaxLineLength bounds a single input line in bytes.
	DefaultMaxLineLength = 8192

	CommandLogin       = "login"
	CommandJoin        = "join"
	CommandLeave       = "leave"
	CommandSavePlace   = "saveplace"
	CommandUsers       = "users"
	CommandActiveUsers = "activeusers"
	CommandBye         = "bye"

	// SavePlaceOff is the only saveplace argument that disables reservation.
	SavePlaceOff = "0"
)

// ParseLine classifies one decoded input line.
func ParseLine(line string) core.Command {
	if line == "" {
		return core.Command{Kind: core.CommandEmpty}
	}

	trimmed := strings.TrimSpace(line)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return core.Command{Kind: core.CommandSend, Text: line}
	}
	switch strings.ToLower(fields[0]) {
	case CommandBye:
		if len(fields) == 1 {
			return core.Command{Kind: core.CommandBye}
		}
	case CommandUsers:
		if len(fields) == 1 {
			return core.Command{Kind: core.CommandUsers}
		}
	case CommandActiveUsers:
		if len(fields) == 1 {
			return core.Command{Kind: core.CommandActiveUsers}
		}
	case CommandLeave:
		if len(fields) == 1 {
			return core.Command{Kind: core.CommandLeave}
		}
	case CommandLogin:
		// Credentials are taken verbatim, never unquoted or unescaped.
		if len(fields) != 3 {
			return invalid("Wrong login/password pair.")
		}
		return core.Command{Kind: core.CommandLogin, Login: fields[1], Password: fields[2]}
	case CommandJoin:
		args, ok := splitArgs(trimmed, 1)
		if !ok {
			return invalid("Usage: join <channel>")
		}
		return core.Command{Kind: core.CommandJoin, Channel: args[0]}
	case CommandSavePlace:
		args, ok := splitArgs(trimmed, 1)
		if !ok {
			return invalid("Usage: saveplace <0|1>")
		}
		return core.Command{Kind: core.CommandSavePlace, Reserve: args[0] != SavePlaceOff}
	}

	return core.Command{Kind: core.CommandSend, Text: line}
}

// splitArgs returns the arguments after the command word when there are
// exactly n of them. Lines without quotes split on whitespace; quoted lines
// use shell-word rules so a channel name may contain spaces.
func splitArgs(line string, n int) ([]string, bool) {
	if !strings.ContainsAny(line, `"'`) {
		words := strings.Fields(line)
		return words[1:], len(words) == n+1
	}

	parser := shellwords.NewParser()
	words, err := parser.Parse(line)
	// Position is set when parsing stopped early at an unquoted operator.
	if err != nil || parser.Position != -1 || len(words) != n+1 {
		return nil, false
	}
	for _, w := range words[1:] {
		if w == "" {
			return nil, false
		}
	}
	return words[1:], true
}

func invalid(msg string) core.Command {
	return core.Command{
		Kind: core.CommandInvalid,
		Err:  core.NewError(core.ErrCodeMalformedCommand, msg),
	}
}

// Render turns an event into the text lines shown to the recipient.
func Render(ev *core.Event) []string {
	if ev == nil {
		return nil
	}

	switch ev.Kind {
	case core.EventChatMessage:
		if ev.Message.Own {
			return []string{"[you] " + ev.Message.Text}
		}
		return []string{"[" + ev.Message.From + "] " + ev.Message.Text}

	case core.EventUserJoined:
		return []string{"User " + ev.User + " joined to " + ev.Channel + " channel."}

	case core.EventUserLeft:
		return []string{"User " + ev.User + " left " + ev.Channel + " channel."}

	case core.EventHistory:
		lines := make([]string, 0, len(ev.History))
		for i, entry := range ev.History {
			lines = append(lines, strconv.Itoa(i+1)+") ["+entry.Author+"]"+entry.Text)
		}
		return lines

	case core.EventMembers:
		lines := make([]string, 0, len(ev.Names)+1)
		lines = append(lines, "Users of channel - "+ev.Channel+":")
		return append(lines, ev.Names...)

	case core.EventActiveSessions:
		return append([]string(nil), ev.Names...)

	case core.EventNotice:
		return []string{ev.Text}

	case core.EventError:
		if ev.Error == nil {
			return nil
		}
		return []string{ev.Error.Message}
	}
	return nil
}

// Greeting is written to a connection right after it is accepted.
func Greeting(host string, now time.Time) []string {
	return []string{
		"Welcome to " + host + "!",
		"It is " + now.Format(time.RFC1123) + " now.",
	}
}
