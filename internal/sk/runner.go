package sk

import (
	"context"
	"io"
)

// CommandRunner executes external commands. Run blocks until the command exits
// and returns its exit status; err is reserved for commands that could not be
// started or waited on. Combined stdout and stderr are written to out.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, out io.Writer) (exitCode int, err error)
}
