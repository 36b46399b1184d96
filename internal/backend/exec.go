package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"snapkeep/internal/sk"
)

// ExecRunner runs commands as child processes of snapkeep.
type ExecRunner struct{}

var _ sk.CommandRunner = ExecRunner{}

// Run starts argv and waits for it. A non-zero exit is reported through the
// exit code, not the error.
func (ExecRunner) Run(ctx context.Context, argv []string, out io.Writer) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
