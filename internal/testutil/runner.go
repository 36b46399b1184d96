package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"snapkeep/internal/sk"
)

// RecordingRunner is an sk.CommandRunner that records every command instead
// of running it. When Backend is set, commands that succeed are applied to it.
type RecordingRunner struct {
	mu       sync.Mutex
	commands [][]string

	Backend *MemoryBackend
	// ExitCode decides the exit status of argv. Nil means every command succeeds.
	ExitCode func(argv []string) int
	// Err, when set, is returned for every command as a start failure.
	Err error
}

var _ sk.CommandRunner = (*RecordingRunner)(nil)

// NewRecordingRunner returns a runner applying successful commands to b.
func NewRecordingRunner(b *MemoryBackend) *RecordingRunner {
	return &RecordingRunner{Backend: b}
}

func (r *RecordingRunner) Run(_ context.Context, argv []string, out io.Writer) (int, error) {
	r.mu.Lock()
	r.commands = append(r.commands, append([]string(nil), argv...))
	r.mu.Unlock()

	if r.Err != nil {
		return -1, r.Err
	}

	code := 0
	if r.ExitCode != nil {
		code = r.ExitCode(argv)
	}
	fmt.Fprintf(out, "%s: exit %d\n", argv[0], code)

	// rsync status 24 still leaves a complete working copy behind.
	if r.Backend != nil && (code == 0 || (argv[0] == "rsync" && code == 24)) {
		r.Backend.Apply(argv)
	}
	return code, nil
}

// Commands returns every recorded argv in order.
func (r *RecordingRunner) Commands() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.commands...)
}

// CommandsNamed returns the recorded argvs whose program is name.
func (r *RecordingRunner) CommandsNamed(name string) [][]string {
	var out [][]string
	for _, c := range r.Commands() {
		if c[0] == name {
			out = append(out, c)
		}
	}
	return out
}

// ExitWhen returns an ExitCode func failing with code for commands named
// name, optionally only when some argument contains substr.
func ExitWhen(name, substr string, code int) func([]string) int {
	return func(argv []string) int {
		if argv[0] != name {
			return 0
		}
		if substr == "" {
			return code
		}
		for _, a := range argv[1:] {
			if strings.Contains(a, substr) {
				return code
			}
		}
		return 0
	}
}
