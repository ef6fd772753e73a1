package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

var (
	// ErrNotFound is returned when a task ID does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrAlreadyClaimed is returned when a claim races and loses: the
	// task is no longer queued.
	ErrAlreadyClaimed = errors.New("task already claimed")
	// ErrInvalidTransition is returned when an update targets a task
	// whose current status does not permit it.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidInput is returned for malformed task parameters.
	ErrInvalidInput = errors.New("invalid input")
)

type Task struct {
	ID           string     `json:"task_id"`
	Repo         string     `json:"repo"`
	PRNumber     int        `json:"pr_number"`
	Depth        string     `json:"depth"`
	Status       TaskStatus `json:"status"`
	Progress     float64    `json:"progress"`
	Message      string     `json:"message,omitempty"`
	WorkerID     string     `json:"worker_id,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	Error        string     `json:"error,omitempty"`
	Redeliveries int        `json:"redeliveries"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ValidateTaskInput checks submission parameters before a task is
// created. Repo must be "owner/name" and the PR number positive.
func ValidateTaskInput(repo string, prNumber int) error {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: repo must be owner/name, got %q", ErrInvalidInput, repo)
	}
	if prNumber <= 0 {
		return fmt.Errorf("%w: pr_number must be positive, got %d", ErrInvalidInput, prNumber)
	}
	return nil
}

// TaskCounts summarizes tasks by status for the daemon status endpoint.
type TaskCounts struct {
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// TaskStore is the persistence contract the daemon runs against.
// Implemented by the SQLite DB and the Postgres store.
type TaskStore interface {
	// CreateTask persists a new queued task and returns it.
	CreateTask(repo string, prNumber int, depth string) (*Task, error)
	// GetTask returns the task by ID, or ErrNotFound.
	GetTask(id string) (*Task, error)
	// ClaimTask atomically moves a queued task to in_progress for
	// workerID. Returns ErrAlreadyClaimed if the task is not queued.
	ClaimTask(id, workerID string) (*Task, error)
	// SetProgress records progress for an in_progress task owned by
	// workerID. Values outside [0,1] are ErrInvalidInput; regressions
	// are dropped without error so stale writers cannot move progress
	// backward. Writes from a worker that lost its claim return
	// ErrAlreadyClaimed.
	SetProgress(id, workerID string, progress float64, message string) error
	// CompleteTask moves an in_progress task to completed with
	// progress 1.0 and stores the result payload. Only the owning
	// worker may complete; a stale owner gets ErrAlreadyClaimed.
	CompleteTask(id, workerID string, resultJSON []byte) error
	// FailTask moves an in_progress task to failed, subject to the
	// same ownership fence as CompleteTask.
	FailTask(id, workerID, errorKind, errorMsg string) error
	// GetResult returns the stored result payload for a completed
	// task, or ErrNotFound if the task has no result yet.
	GetResult(id string) ([]byte, error)
	// TaskCounts returns per-status totals.
	TaskCounts() (*TaskCounts, error)
	// ListQueuedIDs returns the IDs of all queued tasks in creation
	// order, for refilling the broker after a restart.
	ListQueuedIDs() ([]string, error)
	// ResetStaleClaims handles tasks whose claim outlived timeout:
	// first expiry requeues the task, second fails it permanently.
	// Returns the IDs that were requeued.
	ResetStaleClaims(timeout time.Duration) ([]string, error)
	Close() error
}
