package sk

import "time"

// FileStat is the subset of file metadata snapshot management needs.
// A missing path is reported as Exists=false with a nil error.
type FileStat struct {
	Exists  bool
	IsDir   bool
	ModTime time.Time
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Backend abstracts the storage holding a target's backup directory.
// Metadata calls act on the storage directly; bulk and destructive work is
// done by external commands shaped through Command, SyncDestination and
// SyncTransport so that the same argv works for local and remote storage.
type Backend interface {
	// Stat returns metadata for path. A missing path is not an error.
	Stat(path string) (FileStat, error)

	// List returns the entries of the directory at path.
	List(path string) ([]DirEntry, error)

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error

	// Touch sets the access and modification times of an existing path.
	Touch(path string, t time.Time) error

	// WriteEmptyFile creates (or truncates) a zero-byte file at path.
	WriteEmptyFile(path string) error

	// UploadFile copies a local file to path on the backend.
	UploadFile(localPath, path string) error

	// Command wraps argv so it executes where the backup directory lives.
	Command(argv []string) []string

	// SyncDestination returns the rsync destination operand for path.
	SyncDestination(path string) string

	// SyncTransport returns extra rsync arguments selecting the transport.
	SyncTransport() []string

	// Close releases any session held by the backend.
	Close() error
}
