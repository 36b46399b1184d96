package testutil

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"snapkeep/internal/sk"
)

type memNode struct {
	dir     bool
	modTime time.Time
	data    []byte
}

// MemoryBackend is an in-memory sk.Backend. Apply simulates the effect of
// the external commands snapkeep runs, so pipeline tests can observe the
// resulting directory layout.
type MemoryBackend struct {
	mu    sync.Mutex
	nodes map[string]*memNode

	// StatErrors makes Stat fail for the listed paths.
	StatErrors map[string]error
	// ListErrors makes List fail for the listed paths.
	ListErrors map[string]error
	// UploadError makes every UploadFile call fail.
	UploadError error
}

var _ sk.Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns a backend holding only the root directory.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		nodes:      map[string]*memNode{"/": {dir: true}},
		StatErrors: map[string]error{},
		ListErrors: map[string]error{},
	}
}

// AddDir creates p and its parents.
func (b *MemoryBackend) AddDir(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mkdirAll(p)
}

// AddFile creates a file at p with the given modification time.
func (b *MemoryBackend) AddFile(p string, modTime time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean(p)
	b.mkdirAll(path.Dir(p))
	b.nodes[p] = &memNode{modTime: modTime}
}

// Exists reports whether p exists.
func (b *MemoryBackend) Exists(p string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.nodes[path.Clean(p)]
	return ok
}

// ReadFile returns the content stored at p.
func (b *MemoryBackend) ReadFile(p string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.nodes[path.Clean(p)]; ok {
		return n.data
	}
	return nil
}

// Children returns the sorted names of the direct children of dir.
func (b *MemoryBackend) Children(dir string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.children(path.Clean(dir))
}

func (b *MemoryBackend) Stat(p string) (sk.FileStat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean(p)
	if err, ok := b.StatErrors[p]; ok {
		return sk.FileStat{}, err
	}
	n, ok := b.nodes[p]
	if !ok {
		return sk.FileStat{}, nil
	}
	return sk.FileStat{Exists: true, IsDir: n.dir, ModTime: n.modTime}, nil
}

func (b *MemoryBackend) List(p string) ([]sk.DirEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean(p)
	if err, ok := b.ListErrors[p]; ok {
		return nil, err
	}
	n, ok := b.nodes[p]
	if !ok || !n.dir {
		return nil, fmt.Errorf("not a directory: %s", p)
	}

	var entries []sk.DirEntry
	for _, name := range b.children(p) {
		entries = append(entries, sk.DirEntry{Name: name, IsDir: b.nodes[path.Join(p, name)].dir})
	}
	return entries, nil
}

func (b *MemoryBackend) MkdirAll(p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mkdirAll(p)
	return nil
}

func (b *MemoryBackend) Touch(p string, t time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes[path.Clean(p)]
	if !ok {
		return fmt.Errorf("no such file: %s", p)
	}
	n.modTime = t
	return nil
}

func (b *MemoryBackend) WriteEmptyFile(p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean(p)
	if _, ok := b.nodes[path.Dir(p)]; !ok {
		return fmt.Errorf("no such directory: %s", path.Dir(p))
	}
	b.nodes[p] = &memNode{}
	return nil
}

func (b *MemoryBackend) UploadFile(localPath, p string) error {
	if b.UploadError != nil {
		return b.UploadError
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	p = path.Clean(p)
	if _, ok := b.nodes[path.Dir(p)]; !ok {
		return fmt.Errorf("no such directory: %s", path.Dir(p))
	}
	b.nodes[p] = &memNode{data: data}
	return nil
}

func (b *MemoryBackend) Command(argv []string) []string  { return argv }
func (b *MemoryBackend) SyncDestination(p string) string { return p }
func (b *MemoryBackend) SyncTransport() []string         { return nil }
func (b *MemoryBackend) Close() error                    { return nil }

// Apply simulates a successful external command on the stored tree.
func (b *MemoryBackend) Apply(argv []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case len(argv) == 3 && argv[0] == "mv":
		b.move(path.Clean(argv[1]), path.Clean(argv[2]))
	case len(argv) == 3 && argv[0] == "rm" && argv[1] == "-rf":
		b.remove(path.Clean(argv[2]))
	case argv[0] == "rsync":
		dest := argv[len(argv)-1]
		if i := strings.Index(dest, ":"); i >= 0 {
			dest = dest[i+1:]
		}
		b.mkdirAll(dest)
	case len(argv) == 4 && argv[0] == "btrfs" && argv[1] == "subvolume" && argv[2] == "create":
		b.mkdirAll(argv[3])
	case len(argv) == 6 && argv[0] == "btrfs" && argv[1] == "subvolume" && argv[2] == "snapshot":
		b.copyTree(path.Clean(argv[4]), path.Clean(argv[5]))
	case len(argv) == 4 && argv[0] == "btrfs" && argv[1] == "subvolume" && argv[2] == "delete":
		b.remove(path.Clean(argv[3]))
	}
}

func (b *MemoryBackend) mkdirAll(p string) {
	p = path.Clean(p)
	for {
		if _, ok := b.nodes[p]; !ok {
			b.nodes[p] = &memNode{dir: true}
		}
		if p == "/" || p == "." {
			return
		}
		p = path.Dir(p)
	}
}

func (b *MemoryBackend) children(dir string) []string {
	var names []string
	for k := range b.nodes {
		if k != dir && path.Dir(k) == dir {
			names = append(names, path.Base(k))
		}
	}
	sort.Strings(names)
	return names
}

// subtree returns p and every path below it.
func (b *MemoryBackend) subtree(p string) []string {
	var keys []string
	for k := range b.nodes {
		if k == p || strings.HasPrefix(k, p+"/") {
			keys = append(keys, k)
		}
	}
	return keys
}

func (b *MemoryBackend) move(src, dst string) {
	for _, k := range b.subtree(src) {
		n := b.nodes[k]
		delete(b.nodes, k)
		b.nodes[dst+k[len(src):]] = n
	}
}

func (b *MemoryBackend) copyTree(src, dst string) {
	for _, k := range b.subtree(src) {
		n := *b.nodes[k]
		b.nodes[dst+k[len(src):]] = &n
	}
}

func (b *MemoryBackend) remove(p string) {
	for _, k := range b.subtree(p) {
		delete(b.nodes, k)
	}
}
