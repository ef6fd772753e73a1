package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/config"
	"github.com/akhil1parekh/github-pr-review-agent/internal/github"
	"github.com/akhil1parekh/github-pr-review-agent/internal/llm"
	"github.com/akhil1parekh/github-pr-review-agent/internal/queue"
	"github.com/akhil1parekh/github-pr-review-agent/internal/review"
	"github.com/akhil1parekh/github-pr-review-agent/internal/storage"
)

// RunnerFactory builds a pipeline runner from a config snapshot.
// Called once per task so credential changes apply to new tasks
// without restarting the pool.
type RunnerFactory func(cfg *config.Config) *review.Runner

// DefaultRunnerFactory wires the GitHub and LLM clients from config.
func DefaultRunnerFactory(cfg *config.Config) *review.Runner {
	retry := review.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.MaxStageAttempts
	retry.BaseDelay = cfg.RetryBaseDelay()
	return &review.Runner{
		Fetcher:      github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken),
		Analyzer:     llm.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel),
		Retry:        retry,
		StageTimeout: cfg.StageTimeout(),
	}
}

// WorkerPool manages a pool of analysis workers consuming from the broker
type WorkerPool struct {
	store       storage.TaskStore
	broker      queue.Broker
	cfgGetter   ConfigGetter
	broadcaster Broadcaster
	newRunner   RunnerFactory

	numWorkers    int
	activeWorkers atomic.Int32

	dequeueCtx    context.Context
	dequeueCancel context.CancelFunc
	stopCh        chan struct{}
	readyCh       chan struct{} // closed after wg.Add in Start
	startOnce     sync.Once
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(store storage.TaskStore, broker queue.Broker, cfgGetter ConfigGetter, numWorkers int, broadcaster Broadcaster) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		store:         store,
		broker:        broker,
		cfgGetter:     cfgGetter,
		broadcaster:   broadcaster,
		newRunner:     DefaultRunnerFactory,
		numWorkers:    numWorkers,
		dequeueCtx:    ctx,
		dequeueCancel: cancel,
		stopCh:        make(chan struct{}),
		readyCh:       make(chan struct{}),
	}
}

// SetRunnerFactory overrides how runners are built (used in tests)
func (wp *WorkerPool) SetRunnerFactory(f RunnerFactory) {
	wp.newRunner = f
}

// Start begins the worker pool. Safe to call multiple times;
// only the first call spawns workers.
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		log.Printf("Starting worker pool with %d workers", wp.numWorkers)
		wp.wg.Add(wp.numWorkers)
		close(wp.readyCh)
		for i := 0; i < wp.numWorkers; i++ {
			go wp.worker(i)
		}
	})
}

// Stop gracefully shuts down the worker pool. Safe to call
// multiple times; only the first call performs shutdown.
// In-flight tasks run to completion; only idle dequeues are cut.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		log.Println("Stopping worker pool...")
		close(wp.stopCh)
		wp.dequeueCancel()
		// Wait for Start to finish wg.Add before calling Wait.
		// If Start was never called, readyCh stays open but
		// stopCh is closed, so any late workers exit immediately.
		select {
		case <-wp.readyCh:
			wp.wg.Wait()
		default:
		}
		log.Println("Worker pool stopped")
	})
}

// ActiveWorkers returns the number of workers currently processing a task
func (wp *WorkerPool) ActiveWorkers() int {
	return int(wp.activeWorkers.Load())
}

// MaxWorkers returns the total number of workers in the pool
func (wp *WorkerPool) MaxWorkers() int {
	return wp.numWorkers
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	workerID := fmt.Sprintf("worker-%d", id)

	log.Printf("[%s] Started", workerID)

	for {
		select {
		case <-wp.stopCh:
			log.Printf("[%s] Shutting down", workerID)
			return
		default:
		}

		taskID, err := wp.broker.Dequeue(wp.dequeueCtx)
		if err != nil {
			// Context canceled: shutdown in progress
			return
		}

		// Claim converts delivery into ownership. The broker is
		// at-least-once, so a duplicate delivery loses the claim
		// race here and is discarded without side effects.
		task, err := wp.store.ClaimTask(taskID, workerID)
		if errors.Is(err, storage.ErrAlreadyClaimed) {
			log.Printf("[%s] Task %s already claimed, discarding delivery", workerID, taskID)
			continue
		}
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("[%s] Task %s not found, discarding delivery", workerID, taskID)
			continue
		}
		if err != nil {
			// Unclassified store error (e.g. transient DB failure):
			// put the delivery back so the task isn't stranded in
			// queued until a restart.
			log.Printf("[%s] Error claiming task %s: %v", workerID, taskID, err)
			time.Sleep(time.Second)
			if err := wp.broker.Enqueue(taskID); err != nil {
				log.Printf("[%s] Error re-enqueueing task %s: %v", workerID, taskID, err)
			}
			continue
		}

		wp.activeWorkers.Add(1)
		wp.processTask(workerID, task)
		wp.activeWorkers.Add(-1)
	}
}

func (wp *WorkerPool) processTask(workerID string, task *storage.Task) {
	log.Printf("[%s] Processing task %s %s#%d depth=%s",
		workerID, task.ID, task.Repo, task.PRNumber, task.Depth)
	taskStart := time.Now()

	wp.broadcaster.Broadcast(Event{
		Type:     "task.started",
		TS:       time.Now(),
		TaskID:   task.ID,
		Repo:     task.Repo,
		PRNumber: task.PRNumber,
		Status:   string(storage.TaskStatusInProgress),
	})

	// Snapshot config once so a reload mid-task can't mix settings
	cfg := wp.cfgGetter.Config()
	runner := wp.newRunner(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TaskTimeout())
	defer cancel()

	progress := func(fraction float64, message string) {
		if err := wp.store.SetProgress(task.ID, workerID, fraction, message); err != nil {
			log.Printf("[%s] Error reporting progress for task %s: %v", workerID, task.ID, err)
			return
		}
		wp.broadcaster.Broadcast(Event{
			Type:     "task.progress",
			TS:       time.Now(),
			TaskID:   task.ID,
			Repo:     task.Repo,
			PRNumber: task.PRNumber,
			Status:   string(storage.TaskStatusInProgress),
			Progress: fraction,
			Message:  message,
		})
	}

	result, err := runner.Run(ctx, task.Repo, task.PRNumber, review.Depth(task.Depth), progress)
	if err != nil {
		kind := review.Kind(err)
		log.Printf("[%s] Task %s failed (%s): %v", workerID, task.ID, kind, err)
		if failErr := wp.store.FailTask(task.ID, workerID, kind, err.Error()); failErr != nil {
			if errors.Is(failErr, storage.ErrAlreadyClaimed) {
				log.Printf("[%s] Task %s was redelivered to another worker, dropping result", workerID, task.ID)
				return
			}
			log.Printf("[%s] Error failing task %s: %v", workerID, task.ID, failErr)
			return
		}
		wp.broadcaster.Broadcast(Event{
			Type:     "task.failed",
			TS:       time.Now(),
			TaskID:   task.ID,
			Repo:     task.Repo,
			PRNumber: task.PRNumber,
			Status:   string(storage.TaskStatusFailed),
			Error:    err.Error(),
		})
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("[%s] Error encoding result for task %s: %v", workerID, task.ID, err)
		wp.store.FailTask(task.ID, workerID, "internal_error", fmt.Sprintf("encode result: %v", err))
		return
	}

	if err := wp.store.CompleteTask(task.ID, workerID, payload); err != nil {
		if errors.Is(err, storage.ErrAlreadyClaimed) {
			log.Printf("[%s] Task %s was redelivered to another worker, dropping result", workerID, task.ID)
			return
		}
		log.Printf("[%s] Error completing task %s: %v", workerID, task.ID, err)
		return
	}

	log.Printf("[%s] Task %s completed in %s (%d issues)",
		workerID, task.ID, time.Since(taskStart).Round(time.Millisecond), len(result.Issues))
	wp.broadcaster.Broadcast(Event{
		Type:     "task.completed",
		TS:       time.Now(),
		TaskID:   task.ID,
		Repo:     task.Repo,
		PRNumber: task.PRNumber,
		Status:   string(storage.TaskStatusCompleted),
		Progress: 1.0,
		Message:  "PR analysis completed successfully",
	})
}
