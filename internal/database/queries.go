package database

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements for the run history schema.
type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type runRow struct {
	ID         int64
	RunID      string
	Mode       string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
}

const insertRun = `INSERT INTO runs (run_id, mode, started_at, status) VALUES (?, ?, ?, 'running')`

// InsertRun returns the row ID of the new run.
func (q *Queries) InsertRun(ctx context.Context, runID, mode string, startedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertRun, runID, mode, startedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getRun = `SELECT id, run_id, mode, started_at, finished_at, status FROM runs WHERE id = ?`

func (q *Queries) GetRun(ctx context.Context, id int64) (runRow, error) {
	var r runRow
	err := q.db.QueryRowContext(ctx, getRun, id).Scan(
		&r.ID, &r.RunID, &r.Mode, &r.StartedAt, &r.FinishedAt, &r.Status,
	)
	return r, err
}

const updateRunFinished = `UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`

func (q *Queries) UpdateRunFinished(ctx context.Context, id int64, status string, finishedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRunFinished, finishedAt, status, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type insertResultParams struct {
	RunID      int64
	Target     string
	Status     string
	Snapshot   string
	Message    string
	ElapsedMs  int64
	RecordedAt time.Time
}

const insertResult = `INSERT INTO target_results (run_id, target, status, snapshot, message, elapsed_ms, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertResult(ctx context.Context, p insertResultParams) error {
	_, err := q.db.ExecContext(ctx, insertResult,
		p.RunID, p.Target, p.Status, p.Snapshot, p.Message, p.ElapsedMs, p.RecordedAt,
	)
	return err
}

type resultRow struct {
	RunID      string
	Mode       string
	Target     string
	Status     string
	Snapshot   string
	Message    string
	ElapsedMs  int64
	RecordedAt time.Time
}

const listResults = `SELECT r.run_id, r.mode, t.target, t.status, t.snapshot, t.message, t.elapsed_ms, t.recorded_at
FROM target_results t
JOIN runs r ON r.id = t.run_id
ORDER BY t.recorded_at DESC, t.id DESC
LIMIT ?`

func (q *Queries) ListResults(ctx context.Context, limit int64) ([]resultRow, error) {
	rows, err := q.db.QueryContext(ctx, listResults, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []resultRow
	for rows.Next() {
		var r resultRow
		if err := rows.Scan(
			&r.RunID, &r.Mode, &r.Target, &r.Status, &r.Snapshot, &r.Message, &r.ElapsedMs, &r.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
