package sk

import (
	"path"
	"time"
)

// Well-known names inside a target's backup directory.
const (
	// CurrentName is the mutable working copy that rsync writes into.
	CurrentName = "current"
	// LastMarkerName is a zero-byte file whose mtime records the last successful run.
	LastMarkerName = "last"
	// LogDirName holds one log file per run.
	LogDirName = "log"
	// ExpiredSuffix marks a snapshot directory as scheduled for purge.
	ExpiredSuffix = ".expired"
)

// Snapshot is one timestamp-named point-in-time copy of a source tree.
// Its identity is its timestamp.
type Snapshot struct {
	Timestamp time.Time
	Path      string
	Expired   bool
}

// Name returns the snapshot's directory name without any expired suffix.
func (s Snapshot) Name() string {
	return FormatTimestamp(s.Timestamp)
}

// Dir returns the directory containing the snapshot.
func (s Snapshot) Dir() string {
	return path.Dir(s.Path)
}
