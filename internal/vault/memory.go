package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"snapkeep/internal/sk"
)

// MemoryVault keeps items in memory. It is safe for concurrent use.
type MemoryVault struct {
	name  string
	items map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:  name,
		items: make(map[string][]byte),
	}
}

func (m *MemoryVault) Put(name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read item: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[name] = data
	return nil
}

func (m *MemoryVault) Get(name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.items[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("item not found in vault %s: %s", m.name, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write item: %w", err)
	}
	return nil
}

// Names returns the stored item names.
func (m *MemoryVault) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.items))
	for n := range m.items {
		names = append(names, n)
	}
	return names
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

var _ sk.Vault = (*MemoryVault)(nil)
