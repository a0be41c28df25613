// Package protocol implements the text protocol spoken over the muse control socket.
//
// A client connects, writes one line of the form "action[ arg...]", and closes its
// write side. The daemon answers with a status line "<code> <text>" followed by
// optional body lines, then closes the connection.
package protocol

import (
	"errors"
	"strings"
)

// Actions understood by the daemon
const (
	ActionPlay    = "play"
	ActionPause   = "pause"
	ActionEnqueue = "enqueue"
	ActionClear   = "clear"
	ActionQueue   = "queue"
	ActionHistory = "history"
	ActionStop    = "stop"
	ActionPing    = "ping"
)

// ErrNoCommand is returned by Parse for empty or whitespace-only input
var ErrNoCommand = errors.New("no command provided")

// Command is one parsed client request
type Command struct {
	Action string   // First token
	Args   []string // Remaining whitespace-separated tokens
	Raw    string   // Input with surrounding whitespace trimmed
}

// Parse splits line on whitespace. The first token is the action, the rest are arguments.
func Parse(line string) (Command, error) {
	raw := strings.TrimSpace(line)
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{}, ErrNoCommand
	}

	return Command{
		Action: fields[0],
		Args:   fields[1:],
		Raw:    raw,
	}, nil
}

// Arg returns the i-th argument, if present
func (c Command) Arg(i int) (string, bool) {
	if i < 0 || i >= len(c.Args) {
		return "", false
	}
	return c.Args[i], true
}

// Tail returns everything after the action with inner spacing preserved,
// so file names containing spaces survive.
func (c Command) Tail() string {
	return strings.TrimSpace(strings.TrimPrefix(c.Raw, c.Action))
}

// Format builds a request line from an action and its arguments
func Format(action string, args ...string) string {
	if len(args) == 0 {
		return action
	}
	return action + " " + strings.Join(args, " ")
}
