package app

import "testing"

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		runID string
	}{
		{name: "backup", mode: "backup", runID: "run-1"},
		{name: "expire", mode: "expire", runID: "run-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.mode, tt.runID)

			if op.Mode != tt.mode {
				t.Errorf("Mode = %q, want %q", op.Mode, tt.mode)
			}
			if op.RunID != tt.runID {
				t.Errorf("RunID = %q, want %q", op.RunID, tt.runID)
			}
			if op.Status != RunSuccess {
				t.Errorf("Status = %q, want %q", op.Status, RunSuccess)
			}
			if op.Persisted() {
				t.Error("new operation reports persisted")
			}
		})
	}
}

func TestOperation_Persisted(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "not persisted when ID is 0", id: 0, want: false},
		{name: "persisted when ID is positive", id: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &Operation{ID: tt.id}
			if got := op.Persisted(); got != tt.want {
				t.Errorf("Persisted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("backup", "run-1")
	op.Fail()
	op.Fail()

	if op.Status != RunError {
		t.Errorf("Status = %q, want %q", op.Status, RunError)
	}
}
