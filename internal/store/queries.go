package store

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StartRun records a session entering the running state and returns the
// row id used by AddRunTask and FinishRun.
func (s *Store) StartRun(runID, pkg string, version int, startedAt time.Time) (int64, error) {
	query := `
		INSERT INTO install_runs (run_id, package, version, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query, runID, pkg, version, StatusRunning, startedAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, wrapErr(err, "failed to insert run for %s", pkg)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

// AddRunTask records that a task started.
func (s *Store) AddRunTask(installID int64, task, manager string, startedAt time.Time) error {
	query := `
		INSERT INTO install_tasks (install_id, task, manager, started_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, installID, task, manager, startedAt.UTC().Format(timeLayout)); err != nil {
		return wrapErr(err, "failed to insert task %s", task)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (s *Store) FinishRun(installID int64, status, errMsg string, stoppedAt time.Time) error {
	query := `
		UPDATE install_runs SET status = ?, error = ?, stopped_at = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query, status, nullString(errMsg), stoppedAt.UTC().Format(timeLayout), installID)
	if err != nil {
		return wrapErr(err, "failed to finish run %d", installID)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", installID)
	}
	return nil
}

const runColumns = `id, run_id, package, version, status, error, started_at, stopped_at`

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM install_runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// LastRun returns the most recent run of pkg, or nil if it never ran.
func (s *Store) LastRun(pkg string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM install_runs WHERE package = ? ORDER BY started_at DESC, id DESC LIMIT 1`
	run, err := scanRun(s.db.QueryRow(query, pkg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRunTasks returns the tasks started during a run, in order.
func (s *Store) GetRunTasks(installID int64) ([]*RunTask, error) {
	query := `
		SELECT install_id, task, manager, started_at
		FROM install_tasks
		WHERE install_id = ?
		ORDER BY id
	`
	rows, err := s.db.Query(query, installID)
	if err != nil {
		return nil, wrapErr(err, "failed to get tasks for run %d", installID)
	}
	defer rows.Close()

	var tasks []*RunTask
	for rows.Next() {
		var t RunTask
		var manager sql.NullString
		var startedAt string
		if err := rows.Scan(&t.InstallID, &t.Task, &manager, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Manager = manager.String
		if t.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// PruneRuns deletes runs that stopped before cutoff and returns how many
// were removed.
func (s *Store) PruneRuns(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM install_runs WHERE stopped_at IS NOT NULL AND stopped_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, wrapErr(err, "failed to prune runs")
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var errMsg, stoppedAt sql.NullString
	var startedAt string

	err := row.Scan(&run.ID, &run.RunID, &run.Package, &run.Version, &run.Status, &errMsg, &startedAt, &stoppedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, wrapErr(err, "failed to scan run")
	}

	run.Error = errMsg.String
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if stoppedAt.Valid {
		if run.StoppedAt, err = time.Parse(timeLayout, stoppedAt.String); err != nil {
			return nil, fmt.Errorf("failed to parse stopped_at: %w", err)
		}
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
