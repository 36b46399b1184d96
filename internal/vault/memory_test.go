package vault

import (
	"bytes"
	"strings"
	"testing"
)

func TestMemoryVault_PutAndGet(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name    string
		item    string
		content string
		size    int64
		wantErr bool
	}{
		{name: "store and retrieve", item: "history.db", content: "hello world", size: 11},
		{name: "store empty", item: "empty.db", content: "", size: 0},
		{name: "size mismatch", item: "bad.db", content: "abc", size: 5, wantErr: true},
		{name: "invalid name", item: "../x", content: "abc", size: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vault.Put(tt.item, strings.NewReader(tt.content), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			var buf bytes.Buffer
			if err := vault.Get(tt.item, &buf); err != nil {
				t.Fatalf("Get() unexpected error: %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("Get() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_GetMissing(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	if err := vault.Get("missing.db", &buf); err == nil {
		t.Error("Get() expected error for missing item")
	}
}

func TestMemoryVault_Names(t *testing.T) {
	vault := NewMemoryVault("test-vault")
	if err := vault.Put("history.db", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	names := vault.Names()
	if len(names) != 1 || names[0] != "history.db" {
		t.Errorf("Names() = %v, want [history.db]", names)
	}
}
