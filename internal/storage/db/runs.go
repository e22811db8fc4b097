package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded upgrade
type Run struct {
	ID         int64
	Profile    string
	Status     string
	Resolved   int
	Failed     int
	Downloaded int
	Installed  int
	Archived   int
	Deleted    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordRun stores a finished upgrade and sets run.ID
func (d *DB) RecordRun(run *Run) error {
	res, err := d.Exec(`
		INSERT INTO upgrade_runs
			(profile, status, resolved, failed, downloaded, installed, archived, deleted, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Profile, run.Status, run.Resolved, run.Failed, run.Downloaded, run.Installed,
		run.Archived, run.Deleted, sql.NullString{String: run.Error, Valid: run.Error != ""},
		run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns the most recent runs first. An empty profile lists every
// profile; limit <= 0 means no limit.
func (d *DB) ListRuns(profile string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.Query(`
		SELECT id, profile, status, resolved, failed, downloaded, installed, archived, deleted,
			COALESCE(error, ''), started_at, finished_at
		FROM upgrade_runs
		WHERE ? = '' OR profile = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, profile, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Profile, &r.Status, &r.Resolved, &r.Failed, &r.Downloaded,
			&r.Installed, &r.Archived, &r.Deleted, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneRuns keeps the newest keep runs of a profile and deletes the rest
func (d *DB) PruneRuns(profile string, keep int) error {
	_, err := d.Exec(`
		DELETE FROM upgrade_runs
		WHERE profile = ? AND id NOT IN (
			SELECT id FROM upgrade_runs WHERE profile = ? ORDER BY started_at DESC, id DESC LIMIT ?
		)
	`, profile, profile, keep)
	if err != nil {
		return fmt.Errorf("pruning runs: %w", err)
	}
	return nil
}
