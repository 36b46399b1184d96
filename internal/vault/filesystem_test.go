package vault

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")

	if _, err := NewFileSystemVault("test", root); err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("vault root not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("vault root is not a directory")
	}
}

func TestFileSystemVault_PutGet(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	tests := []struct {
		name    string
		item    string
		content string
	}{
		{name: "history archive", item: "history.db", content: "sqlite bytes"},
		{name: "empty item", item: "empty.db", content: ""},
		{name: "large item", item: "large.db.age", content: strings.Repeat("x", 100000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Put(tt.item, strings.NewReader(tt.content), int64(len(tt.content))); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			var buf bytes.Buffer
			if err := v.Get(tt.item, &buf); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if buf.String() != tt.content {
				t.Errorf("Get() returned %d bytes, want %d", buf.Len(), len(tt.content))
			}
		})
	}
}

func TestFileSystemVault_PutOverwrites(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, content := range []string{"first version", "second"} {
		if err := v.Put("history.db", strings.NewReader(content), int64(len(content))); err != nil {
			t.Fatalf("Put(%q) error = %v", content, err)
		}
	}

	var buf bytes.Buffer
	if err := v.Get("history.db", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "second" {
		t.Errorf("Get() = %q, want %q", buf.String(), "second")
	}
}

func TestFileSystemVault_Errors(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	t.Run("size mismatch", func(t *testing.T) {
		if err := v.Put("bad.db", strings.NewReader("abc"), 10); err == nil {
			t.Error("Put() expected size mismatch error")
		}
		var buf bytes.Buffer
		if err := v.Get("bad.db", &buf); err == nil {
			t.Error("Get() should not find an item whose Put failed")
		}
	})

	t.Run("missing item", func(t *testing.T) {
		var buf bytes.Buffer
		err := v.Get("missing.db", &buf)
		if err == nil {
			t.Fatal("Get() expected error for missing item")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("Get() error = %q, want not found", err)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		for _, name := range []string{"../escape", "a/b", "", ".."} {
			if err := v.Put(name, strings.NewReader("x"), 1); err == nil {
				t.Errorf("Put(%q) expected error", name)
			}
		}
	})
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	t.Run("valid setup", func(t *testing.T) {
		v, err := NewFileSystemVault("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if err := v.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("missing root directory", func(t *testing.T) {
		v := &FileSystemVault{name: "test", root: "/nonexistent/path"}
		if err := v.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}

func TestFileSystemVault_AtomicWrite(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := "hello world"
	if err := v.Put("history.db", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := v.Put("broken.db", strings.NewReader(data), 1); err == nil {
		t.Fatal("Put() expected size mismatch error")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("failed to read vault root: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}
