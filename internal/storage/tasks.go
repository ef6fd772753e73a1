package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateTask validates the input and inserts a new queued task.
func (db *DB) CreateTask(repo string, prNumber int, depth string) (*Task, error) {
	if err := ValidateTaskInput(repo, prNumber); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)
	task := &Task{
		ID:        newTaskID(),
		Repo:      repo,
		PRNumber:  prNumber,
		Depth:     depth,
		Status:    TaskStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(`INSERT INTO tasks (id, repo, pr_number, depth, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		task.ID, repo, prNumber, depth, nowStr, nowStr)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// GetTask returns the task by ID
func (db *DB) GetTask(id string) (*Task, error) {
	row := db.QueryRow(`
		SELECT id, repo, pr_number, depth, status, progress, message,
		       worker_id, error_kind, error, redeliveries,
		       created_at, updated_at, claimed_at, completed_at
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*Task, error) {
	var task Task
	var workerID, errorKind, errorMsg, claimedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&task.ID, &task.Repo, &task.PRNumber, &task.Depth,
		&task.Status, &task.Progress, &task.Message,
		&workerID, &errorKind, &errorMsg, &task.Redeliveries,
		&createdAt, &updatedAt, &claimedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	task.WorkerID = workerID.String
	task.ErrorKind = errorKind.String
	task.Error = errorMsg.String
	task.CreatedAt = parseSQLiteTime(createdAt)
	task.UpdatedAt = parseSQLiteTime(updatedAt)
	if claimedAt.Valid {
		t := parseSQLiteTime(claimedAt.String)
		task.ClaimedAt = &t
	}
	if completedAt.Valid {
		t := parseSQLiteTime(completedAt.String)
		task.CompletedAt = &t
	}
	return &task, nil
}

// ClaimTask atomically claims a queued task for a worker.
// A single conditional UPDATE prevents two workers from claiming the
// same task: exactly one update matches status='queued'.
func (db *DB) ClaimTask(id, workerID string) (*Task, error) {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	result, err := db.Exec(`
		UPDATE tasks
		SET status = 'in_progress', worker_id = ?, claimed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'queued'
	`, workerID, nowStr, nowStr, id)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Either the task doesn't exist or someone else holds it.
		if _, err := db.GetTask(id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyClaimed
	}

	return db.GetTask(id)
}

// SetProgress records progress for an in_progress task. The update
// is guarded so progress never moves backward, terminal tasks are
// never touched, and only the owning worker can write: a worker whose
// claim was reaped and redelivered gets ErrAlreadyClaimed instead of
// racing the new owner.
func (db *DB) SetProgress(id, workerID string, progress float64, message string) error {
	if progress < 0 || progress > 1 {
		return fmt.Errorf("%w: progress %v out of range [0,1]", ErrInvalidInput, progress)
	}

	nowStr := time.Now().UTC().Format(time.RFC3339)
	result, err := db.Exec(`
		UPDATE tasks
		SET progress = ?, message = ?, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND worker_id = ? AND progress <= ?
	`, progress, message, nowStr, id, workerID, progress)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		task, err := db.GetTask(id)
		if err != nil {
			return err
		}
		if task.Status != TaskStatusInProgress {
			return fmt.Errorf("%w: cannot report progress on %s task", ErrInvalidTransition, task.Status)
		}
		if task.WorkerID != workerID {
			return fmt.Errorf("%w: task %s is owned by %q", ErrAlreadyClaimed, id, task.WorkerID)
		}
		// Stale (regressing) write, drop silently.
	}
	return nil
}

// CompleteTask marks a task completed with progress 1.0 and stores the
// result payload. Only the owning worker of an in_progress task can
// complete it.
func (db *DB) CompleteTask(id, workerID string, resultJSON []byte) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowStr := time.Now().UTC().Format(time.RFC3339)
	result, err := tx.Exec(`
		UPDATE tasks
		SET status = 'completed', progress = 1.0, message = 'PR analysis completed successfully',
		    completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND worker_id = ?
	`, nowStr, nowStr, id, workerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return db.explainFencedWrite(id, workerID)
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO results (task_id, payload, created_at) VALUES (?, ?, ?)`,
		id, string(resultJSON), nowStr)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FailTask marks a task failed. Subject to the same ownership fence
// as CompleteTask.
func (db *DB) FailTask(id, workerID, errorKind, errorMsg string) error {
	nowStr := time.Now().UTC().Format(time.RFC3339)
	result, err := db.Exec(`
		UPDATE tasks
		SET status = 'failed', error_kind = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND worker_id = ?
	`, errorKind, errorMsg, nowStr, nowStr, id, workerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return db.explainFencedWrite(id, workerID)
	}
	return nil
}

// explainFencedWrite classifies a terminal update that matched no row:
// missing task, wrong status, or a stale owner whose claim was
// redelivered to another worker.
func (db *DB) explainFencedWrite(id, workerID string) error {
	task, err := db.GetTask(id)
	if err != nil {
		return err
	}
	if task.Status != TaskStatusInProgress {
		return fmt.Errorf("%w: task %s is not in_progress", ErrInvalidTransition, id)
	}
	if task.WorkerID != workerID {
		return fmt.Errorf("%w: task %s is owned by %q", ErrAlreadyClaimed, id, task.WorkerID)
	}
	return fmt.Errorf("%w: task %s changed concurrently", ErrInvalidTransition, id)
}

// GetResult returns the stored result payload for a task.
func (db *DB) GetResult(id string) ([]byte, error) {
	var payload string
	err := db.QueryRow(`SELECT payload FROM results WHERE task_id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// TaskCounts returns per-status totals.
func (db *DB) TaskCounts() (*TaskCounts, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts TaskCounts
	for rows.Next() {
		var status TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		switch status {
		case TaskStatusQueued:
			counts.Queued = n
		case TaskStatusInProgress:
			counts.InProgress = n
		case TaskStatusCompleted:
			counts.Completed = n
		case TaskStatusFailed:
			counts.Failed = n
		}
	}
	return &counts, rows.Err()
}

// ListQueuedIDs returns queued task IDs in creation order.
func (db *DB) ListQueuedIDs() ([]string, error) {
	rows, err := db.Query(`SELECT id FROM tasks WHERE status = 'queued' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResetStaleClaims recovers tasks whose worker disappeared. A task
// claimed longer than timeout ago gets exactly one redelivery: the
// first expiry requeues it with progress reset, the second fails it
// permanently.
func (db *DB) ResetStaleClaims(timeout time.Duration) ([]string, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-timeout).Format(time.RFC3339)
	nowStr := now.Format(time.RFC3339)

	rows, err := db.Query(`
		SELECT id, redeliveries FROM tasks
		WHERE status = 'in_progress' AND claimed_at < ?
	`, cutoff)
	if err != nil {
		return nil, err
	}

	type stale struct {
		id           string
		redeliveries int
	}
	var expired []stale
	for rows.Next() {
		var s stale
		if err := rows.Scan(&s.id, &s.redeliveries); err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var requeued []string
	for _, s := range expired {
		if s.redeliveries == 0 {
			// Guard on status and claimed_at so a worker finishing
			// between the SELECT and here wins the race.
			result, err := db.Exec(`
				UPDATE tasks
				SET status = 'queued', progress = 0, message = '', worker_id = NULL,
				    claimed_at = NULL, redeliveries = redeliveries + 1, updated_at = ?
				WHERE id = ? AND status = 'in_progress' AND claimed_at < ?
			`, nowStr, s.id, cutoff)
			if err != nil {
				return requeued, err
			}
			if n, _ := result.RowsAffected(); n > 0 {
				requeued = append(requeued, s.id)
			}
		} else {
			_, err := db.Exec(`
				UPDATE tasks
				SET status = 'failed', error_kind = 'transient_error',
				    error = 'claim timeout: worker did not complete after redelivery',
				    completed_at = ?, updated_at = ?
				WHERE id = ? AND status = 'in_progress' AND claimed_at < ?
			`, nowStr, nowStr, s.id, cutoff)
			if err != nil {
				return requeued, err
			}
		}
	}
	return requeued, nil
}
