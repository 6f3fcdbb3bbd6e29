package ledger

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger is the local SQLite record of batch runs. It is advisory: the
// JSON artifacts remain the contract, and ledger failures never fail a run.
type Ledger struct {
	db *sql.DB
}

func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			total INTEGER,
			processed INTEGER,
			failed INTEGER,
			skipped INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS run_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER,
			row_number INTEGER,
			artifact TEXT,
			error TEXT,
			recording_link TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_calls_run ON run_calls(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Run is one batch run's summary row.
type Run struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// CallOutcome is one record's result within a run. Exactly one of
// Artifact and Error is set.
type CallOutcome struct {
	RowNumber     int    `json:"rowNumber"`
	Artifact      string `json:"artifact,omitempty"`
	Error         string `json:"error,omitempty"`
	RecordingLink string `json:"recordingLink,omitempty"`
}

// RecordRun persists one run and its per-call outcomes.
func (l *Ledger) RecordRun(ctx context.Context, run Run, calls []CallOutcome) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs(started_at, finished_at, total, processed, failed, skipped) VALUES(?,?,?,?,?,?)`,
		run.StartedAt, run.FinishedAt, run.Total, run.Processed, run.Failed, run.Skipped)
	if err != nil {
		return 0, err
	}
	runID, _ := res.LastInsertId()

	for _, c := range calls {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_calls(run_id, row_number, artifact, error, recording_link) VALUES(?,?,?,?,?)`,
			runID, c.RowNumber, c.Artifact, c.Error, c.RecordingLink); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// RecentRuns returns the newest limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total, processed, failed, skipped
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Processed, &r.Failed, &r.Skipped); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CallsForRun returns the per-record outcomes of one run.
func (l *Ledger) CallsForRun(ctx context.Context, runID int64) ([]CallOutcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT row_number, artifact, error, recording_link FROM run_calls WHERE run_id = ? ORDER BY row_number`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallOutcome
	for rows.Next() {
		var c CallOutcome
		if err := rows.Scan(&c.RowNumber, &c.Artifact, &c.Error, &c.RecordingLink); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
