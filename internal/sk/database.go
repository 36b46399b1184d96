package sk

import "time"

// Run is one recorded invocation of a mutating mode (backup or expire).
type Run struct {
	ID         int64
	RunID      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
	Status     string
}

// HistoryEntry is one target result joined with the run it belongs to.
type HistoryEntry struct {
	RunID      string
	Mode       string
	Target     string
	Status     Status
	Snapshot   string
	Message    string
	Elapsed    time.Duration
	RecordedAt time.Time
}

// Database stores the run history.
type Database interface {
	// CreateRun records the start of an invocation.
	CreateRun(runID string, mode string, startedAt time.Time) (*Run, error)

	// FinishRun stamps the run's end time and overall status.
	FinishRun(id int64, status string, finishedAt time.Time) error

	// RecordResult stores one target's outcome for a run.
	RecordResult(runID int64, o Outcome, recordedAt time.Time) error

	// ListResults returns the most recent target results, newest first.
	ListResults(limit int) ([]*HistoryEntry, error)

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
