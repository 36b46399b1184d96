package sk

import (
	"fmt"
	"io"
	"os"
	"path"
)

// runLog captures external command output for one target's run. It is
// written to a local temporary file and uploaded into the target's log
// directory when the run ends, which works the same for local and remote
// storage.
type runLog struct {
	file *os.File
	dest string
}

func (l *runLog) Write(p []byte) (int, error) {
	if l.file == nil {
		return len(p), nil
	}
	return l.file.Write(p)
}

var _ io.Writer = (*runLog)(nil)

// openRunLog starts the run log for snapshot name. Under dry-run nothing is
// written.
func (s *SKService) openRunLog(t Target, name string, dryRun bool) (*runLog, error) {
	if dryRun {
		return &runLog{}, nil
	}
	f, err := os.CreateTemp("", "snapkeep-*.log")
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	fmt.Fprintf(f, "target %s, snapshot %s\n", t.Name, name)
	return &runLog{
		file: f,
		dest: path.Join(t.BackupDir, LogDirName, name+".log"),
	}, nil
}

// closeRunLog uploads the run log. A failed upload is a warning; the
// target's outcome stands.
func (s *SKService) closeRunLog(t Target, l *runLog) {
	if l.file == nil {
		return
	}
	tmp := l.file.Name()
	defer os.Remove(tmp)

	if err := l.file.Close(); err != nil {
		s.warn(t.Name, fmt.Errorf("closing run log: %w", err))
		return
	}
	if err := s.backend.MkdirAll(path.Dir(l.dest)); err != nil {
		s.warn(t.Name, fmt.Errorf("creating log directory: %w", err))
		return
	}
	if err := s.backend.UploadFile(tmp, l.dest); err != nil {
		s.warn(t.Name, fmt.Errorf("storing run log: %w", err))
	}
}
