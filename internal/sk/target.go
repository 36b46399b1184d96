package sk

import (
	"fmt"
	"time"
)

// Target is one source tree rotated into its own backup directory.
// Targets are built from configuration with global defaults already applied.
type Target struct {
	Name         string
	Source       string
	BackupDir    string
	Interval     string
	FilterRules  []string
	PreCheck     string
	MinSnapshots int
	Policy       Policy
}

// RunOptions controls one invocation across all targets.
type RunOptions struct {
	// RunID identifies the invocation in the run history. Zero skips recording.
	RunID int64
	// Now is the run's logical timestamp. It names the new snapshot and is
	// written to the last-success marker.
	Now    time.Time
	DryRun bool
	Force  bool
}

// Status is the result class of one target's run.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Outcome reports how one target's run ended.
type Outcome struct {
	Target   string
	Status   Status
	Snapshot string
	Elapsed  time.Duration
	Err      error
	// Detail is a short human-readable summary, e.g. "3 expired".
	Detail string
}

// Message renders the outcome for the operator.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusSkipped:
		if o.Detail != "" {
			return fmt.Sprintf("skipped (%s)", o.Detail)
		}
		return "skipped"
	case StatusError:
		return fmt.Sprintf("error (%v)", o.Err)
	default:
		msg := fmt.Sprintf("completed (%s)", o.Elapsed.Truncate(time.Millisecond))
		if o.Detail != "" {
			msg += ": " + o.Detail
		}
		return msg
	}
}

func skipped(target, detail string) Outcome {
	return Outcome{Target: target, Status: StatusSkipped, Detail: detail}
}

func failed(target string, err error) Outcome {
	return Outcome{Target: target, Status: StatusError, Err: err}
}
