package daemon

import (
	"log"
	"sync"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/queue"
	"github.com/akhil1parekh/github-pr-review-agent/internal/storage"
)

// Reaper periodically recovers tasks whose worker crashed mid-claim.
// Each expired claim is redelivered to the broker exactly once; a
// second expiry fails the task permanently.
type Reaper struct {
	store     storage.TaskStore
	broker    queue.Broker
	cfgGetter ConfigGetter
	interval  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReaper creates a reaper that scans at the given interval
func NewReaper(store storage.TaskStore, broker queue.Broker, cfgGetter ConfigGetter, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		store:     store,
		broker:    broker,
		cfgGetter: cfgGetter,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the scan loop
func (r *Reaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Stop halts the scan loop. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

// Sweep runs one recovery pass: stale claims are reset in storage and
// the requeued IDs are redelivered to the broker.
func (r *Reaper) Sweep() {
	timeout := r.cfgGetter.Config().ClaimTimeout()
	requeued, err := r.store.ResetStaleClaims(timeout)
	if err != nil {
		log.Printf("Reaper: reset stale claims: %v", err)
		return
	}
	for _, id := range requeued {
		log.Printf("Reaper: redelivering task %s after claim timeout", id)
		if err := r.broker.Enqueue(id); err != nil {
			log.Printf("Reaper: redeliver task %s: %v", id, err)
		}
	}
}
