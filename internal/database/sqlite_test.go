package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"snapkeep/internal/sk"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestSQLiteDatabase_CreateRun(t *testing.T) {
	t.Run("creates running run", func(t *testing.T) {
		db := newTestDB(t)

		run, err := db.CreateRun("run-1", "backup", testTime)
		if err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if run.ID == 0 {
			t.Error("ID is zero")
		}
		if run.RunID != "run-1" {
			t.Errorf("RunID = %q, want %q", run.RunID, "run-1")
		}
		if run.Status != "running" {
			t.Errorf("Status = %q, want %q", run.Status, "running")
		}
		if !run.StartedAt.Equal(testTime) {
			t.Errorf("StartedAt = %v, want %v", run.StartedAt, testTime)
		}
		if !run.FinishedAt.IsZero() {
			t.Errorf("FinishedAt = %v, want zero", run.FinishedAt)
		}
	})

	t.Run("fails on duplicate run id", func(t *testing.T) {
		db := newTestDB(t)

		if _, err := db.CreateRun("run-1", "backup", testTime); err != nil {
			t.Fatalf("first CreateRun() error = %v", err)
		}
		if _, err := db.CreateRun("run-1", "expire", testTime); err == nil {
			t.Error("second CreateRun() expected error for duplicate run id")
		}
	})
}

func TestSQLiteDatabase_FinishRun(t *testing.T) {
	t.Run("stamps status and finish time", func(t *testing.T) {
		db := newTestDB(t)

		run, err := db.CreateRun("run-1", "expire", testTime)
		if err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}

		finished := testTime.Add(time.Minute)
		if err := db.FinishRun(run.ID, "success", finished); err != nil {
			t.Fatalf("FinishRun() error = %v", err)
		}

		got, err := db.FindRun(run.ID)
		if err != nil {
			t.Fatalf("FindRun() error = %v", err)
		}
		if got.Status != "success" {
			t.Errorf("Status = %q, want %q", got.Status, "success")
		}
		if !got.FinishedAt.Equal(finished) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.FinishRun(42, "success", testTime); err == nil {
			t.Error("FinishRun() expected error for unknown run")
		}
	})

	t.Run("FindRun returns nil when missing", func(t *testing.T) {
		db := newTestDB(t)

		got, err := db.FindRun(42)
		if err != nil {
			t.Fatalf("FindRun() error = %v", err)
		}
		if got != nil {
			t.Errorf("FindRun() = %v, want nil", got)
		}
	})
}

func TestSQLiteDatabase_RecordAndListResults(t *testing.T) {
	db := newTestDB(t)

	run, err := db.CreateRun("run-1", "backup", testTime)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	outcomes := []sk.Outcome{
		{Target: "home", Status: sk.StatusCompleted, Snapshot: "20240115-103000-000", Elapsed: 1500 * time.Millisecond},
		{Target: "etc", Status: sk.StatusSkipped, Detail: "recent"},
		{Target: "srv", Status: sk.StatusError, Err: errors.New("pre-check exited with status 1")},
	}
	for i, o := range outcomes {
		if err := db.RecordResult(run.ID, o, testTime.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordResult(%s) error = %v", o.Target, err)
		}
	}

	entries, err := db.ListResults(10)
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	// Newest first.
	if entries[0].Target != "srv" || entries[2].Target != "home" {
		t.Errorf("order = %s, %s, %s; want srv, etc, home", entries[0].Target, entries[1].Target, entries[2].Target)
	}
	if entries[0].Status != sk.StatusError {
		t.Errorf("entries[0].Status = %q, want %q", entries[0].Status, sk.StatusError)
	}
	if entries[0].Message != "error (pre-check exited with status 1)" {
		t.Errorf("entries[0].Message = %q", entries[0].Message)
	}
	if entries[1].Message != "skipped (recent)" {
		t.Errorf("entries[1].Message = %q, want %q", entries[1].Message, "skipped (recent)")
	}
	home := entries[2]
	if home.Snapshot != "20240115-103000-000" {
		t.Errorf("Snapshot = %q, want %q", home.Snapshot, "20240115-103000-000")
	}
	if home.Elapsed != 1500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 1.5s", home.Elapsed)
	}
	if home.RunID != "run-1" || home.Mode != "backup" {
		t.Errorf("run = %q/%q, want run-1/backup", home.RunID, home.Mode)
	}

	limited, err := db.ListResults(1)
	if err != nil {
		t.Fatalf("ListResults(1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(ListResults(1)) = %d, want 1", len(limited))
	}
}

func TestSQLiteDatabase_RecordResultUnknownRun(t *testing.T) {
	db := newTestDB(t)

	o := sk.Outcome{Target: "home", Status: sk.StatusCompleted}
	if err := db.RecordResult(999, o, testTime); err == nil {
		t.Error("RecordResult() expected foreign key error for unknown run")
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)

	run, err := db.CreateRun("run-1", "backup", testTime)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := db.RecordResult(run.ID, sk.Outcome{Target: "home", Status: sk.StatusCompleted}, testTime); err != nil {
		t.Fatalf("RecordResult() error = %v", err)
	}

	dest := filepath.Join(t.TempDir(), "copy.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	copied, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer copied.Close()

	if err := copied.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() on backup error = %v", err)
	}
	entries, err := copied.ListResults(10)
	if err != nil {
		t.Fatalf("ListResults() on backup error = %v", err)
	}
	if len(entries) != 1 || entries[0].Target != "home" {
		t.Errorf("backup entries = %v, want one entry for home", entries)
	}
}
