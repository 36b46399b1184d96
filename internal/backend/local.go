// Package backend implements sk.Backend for local and remote (SSH) storage.
package backend

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"snapkeep/internal/sk"
)

// Local keeps backup directories on a filesystem mounted on this host.
type Local struct{}

var _ sk.Backend = (*Local)(nil)

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Stat(path string) (sk.FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sk.FileStat{}, nil
		}
		return sk.FileStat{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return sk.FileStat{Exists: true, IsDir: info.IsDir(), ModTime: info.ModTime()}, nil
}

func (l *Local) List(path string) ([]sk.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", path, err)
	}
	out := make([]sk.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = sk.DirEntry{Name: e.Name(), IsDir: e.IsDir()}
	}
	return out, nil
}

func (l *Local) MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

func (l *Local) Touch(path string, t time.Time) error {
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("touching %s: %w", path, err)
	}
	return nil
}

func (l *Local) WriteEmptyFile(path string) error {
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (l *Local) UploadFile(localPath, path string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copying to %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// Command returns argv unchanged: commands already run where the data lives.
func (l *Local) Command(argv []string) []string {
	return argv
}

func (l *Local) SyncDestination(path string) string {
	return path
}

func (l *Local) SyncTransport() []string {
	return nil
}

func (l *Local) Close() error {
	return nil
}
