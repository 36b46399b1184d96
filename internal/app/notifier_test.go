package app

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"snapkeep/internal/sk"
	"snapkeep/internal/testutil"

	"github.com/fatih/color"
)

func TestConsoleNotifier(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		level sk.Level
		want  string
	}{
		{level: sk.LevelInfo, want: "ok       home: completed (1s)\n"},
		{level: sk.LevelWarn, want: "warning  home: completed (1s)\n"},
		{level: sk.LevelError, want: "error    home: completed (1s)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			NewConsoleNotifier(&buf).Notify(tt.level, "home", "completed (1s)")

			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandNotifier(t *testing.T) {
	runner := testutil.NewRecordingRunner(nil)
	n := NewCommandNotifier(runner, `logger -t snapkeep "$1 $2: $3"`, sk.NewNopLogger())

	n.Notify(sk.LevelError, "home", "error (rsync exited with status 23)")

	want := [][]string{{
		"sh", "-c", `logger -t snapkeep "$1 $2: $3"`, "snapkeep",
		"error", "home", "error (rsync exited with status 23)",
	}}
	if got := runner.Commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

type recordingLogger struct {
	sk.NopLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, args ...any) { l.warnings = append(l.warnings, msg) }

func TestCommandNotifier_FailureIsLogged(t *testing.T) {
	tests := []struct {
		name   string
		runner *testutil.RecordingRunner
	}{
		{name: "non-zero exit", runner: &testutil.RecordingRunner{ExitCode: func([]string) int { return 2 }}},
		{name: "start failure", runner: &testutil.RecordingRunner{Err: errors.New("no shell")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			NewCommandNotifier(tt.runner, "false", logger).Notify(sk.LevelInfo, "home", "done")

			if len(logger.warnings) != 1 || !strings.Contains(logger.warnings[0], "notify command") {
				t.Errorf("warnings = %v, want one notify failure", logger.warnings)
			}
		})
	}
}

func TestMultiNotifier(t *testing.T) {
	a, b := &testutil.RecordingNotifier{}, &testutil.RecordingNotifier{}
	multiNotifier{a, b}.Notify(sk.LevelWarn, "home", "invalid interval")

	if len(a.Sent()) != 1 || len(b.Sent()) != 1 {
		t.Errorf("sent = %d, %d; want 1 each", len(a.Sent()), len(b.Sent()))
	}
}
