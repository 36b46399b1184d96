package sk

import "io"

// Vault stores off-site copies of run history. Items are addressed by name.
type Vault interface {
	// Put stores size bytes read from r under name, replacing any previous copy.
	Put(name string, r io.Reader, size int64) error

	// Get writes the item stored under name to w.
	Get(name string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
