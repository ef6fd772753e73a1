package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/config"
	"github.com/akhil1parekh/github-pr-review-agent/internal/queue"
	"github.com/akhil1parekh/github-pr-review-agent/internal/review"
	"github.com/akhil1parekh/github-pr-review-agent/internal/storage"
	"github.com/akhil1parekh/github-pr-review-agent/internal/version"
)

// Server is the HTTP API server for the daemon
type Server struct {
	store         storage.TaskStore
	broker        queue.Broker
	configWatcher *ConfigWatcher
	broadcaster   Broadcaster
	workerPool    *WorkerPool
	reaper        *Reaper
	httpServer    *http.Server
	startTime     time.Time
}

// NewServer creates a new daemon server
func NewServer(store storage.TaskStore, broker queue.Broker, cfg *config.Config, configPath string) *Server {
	broadcaster := NewBroadcaster()
	configWatcher := NewConfigWatcher(configPath, cfg, broadcaster)

	s := &Server{
		store:         store,
		broker:        broker,
		configWatcher: configWatcher,
		broadcaster:   broadcaster,
		workerPool:    NewWorkerPool(store, broker, configWatcher, cfg.MaxWorkers, broadcaster),
		reaper:        NewReaper(store, broker, configWatcher, time.Minute),
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze-pr", s.handleAnalyzePR)
	mux.HandleFunc("GET /status/{task_id}", s.handleStatus)
	mux.HandleFunc("GET /results/{task_id}", s.handleResults)
	mux.HandleFunc("GET /api/status", s.handleDaemonStatus)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stream/events", s.handleStreamEvents)

	s.httpServer = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: mux,
	}

	return s
}

// WorkerPool exposes the pool (used in tests)
func (s *Server) WorkerPool() *WorkerPool {
	return s.workerPool
}

// Handler returns the HTTP handler (used in tests with httptest)
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins the server, worker pool, and reaper. Blocks until the
// HTTP server stops.
func (s *Server) Start(ctx context.Context) error {
	// Recover from a previous crash: orphaned claims get their
	// redelivery, then everything queued goes back on the broker.
	if requeued, err := s.store.ResetStaleClaims(0); err != nil {
		log.Printf("Warning: failed to reset stale claims: %v", err)
	} else if len(requeued) > 0 {
		log.Printf("Recovered %d orphaned task(s) from previous run", len(requeued))
	}
	queued, err := s.store.ListQueuedIDs()
	if err != nil {
		log.Printf("Warning: failed to list queued tasks: %v", err)
	}
	for _, id := range queued {
		if err := s.broker.Enqueue(id); err != nil {
			log.Printf("Warning: failed to re-enqueue task %s: %v", id, err)
		}
	}

	if err := s.configWatcher.Start(ctx); err != nil {
		log.Printf("Warning: failed to start config watcher: %v", err)
		// Continue without hot-reloading - not a fatal error
	}

	s.workerPool.Start()
	s.reaper.Start()

	log.Printf("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		s.configWatcher.Stop()
		s.reaper.Stop()
		s.workerPool.Stop()
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.configWatcher.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.reaper.Stop()
	s.workerPool.Stop()
	return nil
}

// API request/response types

type AnalyzePRRequest struct {
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number"`
	Depth    string `json:"analysis_depth,omitempty"`
}

type AnalyzePRResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleAnalyzePR(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent DoS via large payloads
	const maxBodySize = 64 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req AnalyzePRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large (max 64KB)")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	depth, err := review.ParseDepth(req.Depth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.store.CreateTask(req.Repo, req.PRNumber, string(depth))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create task: %v", err))
		return
	}

	if err := s.broker.Enqueue(task.ID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("enqueue task: %v", err))
		return
	}

	s.broadcaster.Broadcast(Event{
		Type:     "task.queued",
		TS:       time.Now(),
		TaskID:   task.ID,
		Repo:     task.Repo,
		PRNumber: task.PRNumber,
		Status:   string(storage.TaskStatusQueued),
	})

	writeJSON(w, http.StatusAccepted, AnalyzePRResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Message:   "PR analysis queued",
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	})
}

type StatusResponse struct {
	TaskID    string  `json:"task_id"`
	Repo      string  `json:"repo"`
	PRNumber  int     `json:"pr_number"`
	Depth     string  `json:"depth"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
	Error     string  `json:"error,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func statusResponse(task *storage.Task) StatusResponse {
	return StatusResponse{
		TaskID:    task.ID,
		Repo:      task.Repo,
		PRNumber:  task.PRNumber,
		Depth:     task.Depth,
		Status:    string(task.Status),
		Progress:  task.Progress,
		Message:   task.Message,
		ErrorKind: task.ErrorKind,
		Error:     task.Error,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
		UpdatedAt: task.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.PathValue("task_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get task: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(task))
}

type ResultsResponse struct {
	TaskID      string            `json:"task_id"`
	Status      string            `json:"status"`
	Progress    float64           `json:"progress"`
	Message     string            `json:"message,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
	Error       string            `json:"error,omitempty"`
	PRDetails   *review.PRDetails `json:"pr_details,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	Issues      []review.Issue    `json:"issues,omitempty"`
	CreatedAt   string            `json:"created_at"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.PathValue("task_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get task: %v", err))
		return
	}

	resp := ResultsResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Progress:  task.Progress,
		Message:   task.Message,
		ErrorKind: task.ErrorKind,
		Error:     task.Error,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
	if task.CompletedAt != nil {
		resp.CompletedAt = task.CompletedAt.Format(time.RFC3339)
	}

	// Pending or failed tasks get a snapshot of where things stand;
	// only completed tasks carry analysis results.
	if task.Status != storage.TaskStatusCompleted {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	payload, err := s.store.GetResult(task.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get result: %v", err))
		return
	}
	var result review.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("decode result: %v", err))
		return
	}

	resp.PRDetails = &result.PRDetails
	resp.Summary = result.Summary
	resp.Issues = result.Issues
	if resp.Issues == nil {
		resp.Issues = []review.Issue{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type DaemonStatus struct {
	Version          string `json:"version"`
	QueuedTasks      int    `json:"queued_tasks"`
	InProgressTasks  int    `json:"in_progress_tasks"`
	CompletedTasks   int    `json:"completed_tasks"`
	FailedTasks      int    `json:"failed_tasks"`
	ActiveWorkers    int    `json:"active_workers"`
	MaxWorkers       int    `json:"max_workers"`
	ConfigReloadedAt string `json:"config_reloaded_at,omitempty"`
}

func (s *Server) handleDaemonStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.TaskCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get counts: %v", err))
		return
	}

	configReloadedAt := ""
	if t := s.configWatcher.LastReloadedAt(); !t.IsZero() {
		configReloadedAt = t.Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, DaemonStatus{
		Version:          version.Version,
		QueuedTasks:      counts.Queued,
		InProgressTasks:  counts.InProgress,
		CompletedTasks:   counts.Completed,
		FailedTasks:      counts.Failed,
		ActiveWorkers:    s.workerPool.ActiveWorkers(),
		MaxWorkers:       s.workerPool.MaxWorkers(),
		ConfigReloadedAt: configReloadedAt,
	})
}

type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

type HealthStatus struct {
	Healthy    bool              `json:"healthy"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
	Components []ComponentHealth `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := formatDuration(time.Since(s.startTime))

	var components []ComponentHealth
	allHealthy := true

	// Storage health: a counts query doubles as the liveness probe
	dbHealthy := true
	dbMessage := ""
	if _, err := s.store.TaskCounts(); err != nil {
		dbHealthy = false
		dbMessage = err.Error()
		allHealthy = false
	}
	components = append(components, ComponentHealth{
		Name:    "storage",
		Healthy: dbHealthy,
		Message: dbMessage,
	})

	components = append(components, ComponentHealth{
		Name:    "workers",
		Healthy: true,
		Message: fmt.Sprintf("%d/%d active", s.workerPool.ActiveWorkers(), s.workerPool.MaxWorkers()),
	})

	writeJSON(w, http.StatusOK, HealthStatus{
		Healthy:    allHealthy,
		Uptime:     uptime,
		Version:    version.Version,
		Components: components,
	})
}

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	// Optional repo filter
	repoFilter := r.URL.Query().Get("repo")

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	subID, eventCh := s.broadcaster.Subscribe(repoFilter)
	defer s.broadcaster.Unsubscribe(subID)

	encoder := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			// Client disconnected
			return
		case event, ok := <-eventCh:
			if !ok {
				// Channel closed (server shutdown)
				return
			}
			if err := encoder.Encode(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// formatDuration formats a duration in human-readable form (e.g., "2h 15m")
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
