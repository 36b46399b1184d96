package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"snapkeep/internal/sk"

	"github.com/fatih/color"
)

// ConsoleNotifier prints one colored line per notification.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

func (n *ConsoleNotifier) Notify(level sk.Level, subject, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var tag string
	switch level {
	case sk.LevelWarn:
		tag = color.YellowString("%-8s", "warning")
	case sk.LevelError:
		tag = color.RedString("%-8s", "error")
	default:
		tag = color.GreenString("%-8s", "ok")
	}
	fmt.Fprintf(n.w, "%s %s: %s\n", tag, subject, message)
}

// CommandNotifier hands every notification to an operator-supplied shell
// command as $1 (level), $2 (subject) and $3 (message).
type CommandNotifier struct {
	runner  sk.CommandRunner
	command string
	logger  sk.Logger
}

func NewCommandNotifier(runner sk.CommandRunner, command string, logger sk.Logger) *CommandNotifier {
	return &CommandNotifier{runner: runner, command: command, logger: logger}
}

func (n *CommandNotifier) Notify(level sk.Level, subject, message string) {
	argv := []string{"sh", "-c", n.command, "snapkeep", level.String(), subject, message}
	code, err := n.runner.Run(context.Background(), argv, io.Discard)
	if err != nil {
		n.logger.Warn("notify command failed", "error", err)
		return
	}
	if code != 0 {
		n.logger.Warn("notify command failed", "status", code)
	}
}

// multiNotifier fans a notification out to every notifier in order.
type multiNotifier []sk.Notifier

func (m multiNotifier) Notify(level sk.Level, subject, message string) {
	for _, n := range m {
		n.Notify(level, subject, message)
	}
}
