package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"snapkeep/internal/database/migrations"
	"snapkeep/internal/sk"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *Queries
	path    string
}

// NewSQLiteDatabase opens the database at path and applies any pending
// migrations. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	return &SQLiteDatabase{
		db:      db,
		queries: newQueries(db),
		path:    path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: newQueries(db),
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	db.SetMaxOpenConns(1)

	// SQLite leaves foreign keys off unless asked.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteDatabase) CreateRun(runID string, mode string, startedAt time.Time) (*sk.Run, error) {
	ctx := context.Background()
	id, err := s.queries.InsertRun(ctx, runID, mode, startedAt)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	row, err := s.queries.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading created run: %w", err)
	}
	return toRun(row), nil
}

// FindRun returns the run with the given row ID, or nil if there is none.
func (s *SQLiteDatabase) FindRun(id int64) (*sk.Run, error) {
	row, err := s.queries.GetRun(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding run: %w", err)
	}
	return toRun(row), nil
}

func (s *SQLiteDatabase) FinishRun(id int64, status string, finishedAt time.Time) error {
	n, err := s.queries.UpdateRunFinished(context.Background(), id, status, finishedAt)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run: no run with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) RecordResult(runID int64, o sk.Outcome, recordedAt time.Time) error {
	err := s.queries.InsertResult(context.Background(), insertResultParams{
		RunID:      runID,
		Target:     o.Target,
		Status:     string(o.Status),
		Snapshot:   o.Snapshot,
		Message:    o.Message(),
		ElapsedMs:  o.Elapsed.Milliseconds(),
		RecordedAt: recordedAt,
	})
	if err != nil {
		return fmt.Errorf("recording result for %s: %w", o.Target, err)
	}
	return nil
}

func (s *SQLiteDatabase) ListResults(limit int) ([]*sk.HistoryEntry, error) {
	rows, err := s.queries.ListResults(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	entries := make([]*sk.HistoryEntry, len(rows))
	for i, r := range rows {
		entries[i] = &sk.HistoryEntry{
			RunID:      r.RunID,
			Mode:       r.Mode,
			Target:     r.Target,
			Status:     sk.Status(r.Status),
			Snapshot:   r.Snapshot,
			Message:    r.Message,
			Elapsed:    time.Duration(r.ElapsedMs) * time.Millisecond,
			RecordedAt: r.RecordedAt,
		}
	}
	return entries, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toRun(r runRow) *sk.Run {
	run := &sk.Run{
		ID:        r.ID,
		RunID:     r.RunID,
		Mode:      r.Mode,
		StartedAt: r.StartedAt,
		Status:    r.Status,
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = r.FinishedAt.Time
	}
	return run
}

// Compile-time check that SQLiteDatabase implements sk.Database interface
var _ sk.Database = (*SQLiteDatabase)(nil)
