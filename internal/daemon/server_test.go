package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/config"
	"github.com/akhil1parekh/github-pr-review-agent/internal/queue"
	"github.com/akhil1parekh/github-pr-review-agent/internal/review"
	"github.com/akhil1parekh/github-pr-review-agent/internal/storage"
)

// testServer builds a server over a temp sqlite store with stubbed
// analysis. The worker pool is started so queued tasks actually run.
func testServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	store := testStore(t)
	broker := queue.NewMemory()
	cfg := config.DefaultConfig()
	cfg.MaxWorkers = 2

	s := NewServer(store, broker, cfg, "")

	line := 2
	s.WorkerPool().SetRunnerFactory(stubRunnerFactory(&stubFetcher{}, &stubAnalyzer{
		issues: []review.Issue{{Line: &line, Description: "unused function", Severity: review.SeverityLow}},
	}))
	s.WorkerPool().Start()
	t.Cleanup(func() { s.WorkerPool().Stop() })

	return s, store
}

func postAnalyze(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/analyze-pr", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, h http.Handler, path string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s response: %v (body: %s)", path, err, w.Body.String())
		}
	}
	return w.Code
}

func TestAnalyzePRAccepted(t *testing.T) {
	s, _ := testServer(t)

	w := postAnalyze(t, s.Handler(), `{"repo": "octocat/hello", "pr_number": 7, "analysis_depth": "quick"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp AnalyzePRResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TaskID == "" {
		t.Error("empty task_id")
	}
	if resp.Status != "queued" {
		t.Errorf("status = %q, want queued", resp.Status)
	}
	if resp.CreatedAt == "" {
		t.Error("empty created_at")
	}
}

func TestAnalyzePRDefaultsToStandardDepth(t *testing.T) {
	s, store := testServer(t)

	w := postAnalyze(t, s.Handler(), `{"repo": "octocat/hello", "pr_number": 7}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AnalyzePRResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	task, err := store.GetTask(resp.TaskID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Depth != "standard" {
		t.Errorf("Depth = %q, want standard", task.Depth)
	}
}

func TestAnalyzePRRejectsBadInput(t *testing.T) {
	s, _ := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"repo": `},
		{"unknown depth", `{"repo": "octocat/hello", "pr_number": 7, "analysis_depth": "exhaustive"}`},
		{"missing repo", `{"pr_number": 7}`},
		{"bad repo format", `{"repo": "norepo", "pr_number": 7}`},
		{"zero pr number", `{"repo": "octocat/hello", "pr_number": 0}`},
		{"negative pr number", `{"repo": "octocat/hello", "pr_number": -3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postAnalyze(t, s.Handler(), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("error body = %s", w.Body.String())
			}
		})
	}
}

func TestAnalyzePRRejectsOversizedBody(t *testing.T) {
	s, _ := testServer(t)

	big := fmt.Sprintf(`{"repo": "octocat/hello", "pr_number": 7, "analysis_depth": "%s"}`,
		strings.Repeat("x", 70*1024))
	w := postAnalyze(t, s.Handler(), big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := testServer(t)

	w := postAnalyze(t, s.Handler(), `{"repo": "octocat/hello", "pr_number": 7, "analysis_depth": "quick"}`)
	var created AnalyzePRResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	var status StatusResponse
	code := getJSON(t, s.Handler(), "/status/"+created.TaskID, &status)
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if status.TaskID != created.TaskID {
		t.Errorf("task_id = %q", status.TaskID)
	}
	if status.Repo != "octocat/hello" || status.PRNumber != 7 || status.Depth != "quick" {
		t.Errorf("status = %+v", status)
	}
}

func TestStatusNotFound(t *testing.T) {
	s, _ := testServer(t)

	var resp ErrorResponse
	code := getJSON(t, s.Handler(), "/status/no-such-task", &resp)
	if code != http.StatusNotFound {
		t.Errorf("status code = %d, want 404", code)
	}
	if resp.Error != "task not found" {
		t.Errorf("error = %q", resp.Error)
	}

	code = getJSON(t, s.Handler(), "/results/no-such-task", &resp)
	if code != http.StatusNotFound {
		t.Errorf("results status code = %d, want 404", code)
	}
}

func TestResultsBeforeAndAfterCompletion(t *testing.T) {
	s, store := testServer(t)

	w := postAnalyze(t, s.Handler(), `{"repo": "octocat/hello", "pr_number": 7, "analysis_depth": "quick"}`)
	var created AnalyzePRResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	task := waitForTerminal(t, store, created.TaskID)
	if task.Status != storage.TaskStatusCompleted {
		t.Fatalf("task ended %s (%s: %s)", task.Status, task.ErrorKind, task.Error)
	}

	var results ResultsResponse
	code := getJSON(t, s.Handler(), "/results/"+created.TaskID, &results)
	if code != http.StatusOK {
		t.Fatalf("results code = %d", code)
	}
	if results.Status != "completed" || results.Progress != 1.0 {
		t.Errorf("results = status %q progress %v", results.Status, results.Progress)
	}
	if results.PRDetails == nil || results.PRDetails.Repo != "octocat/hello" {
		t.Errorf("pr_details = %+v", results.PRDetails)
	}
	if results.Summary == "" {
		t.Error("empty summary")
	}
	if len(results.Issues) != 1 {
		t.Errorf("issues = %+v", results.Issues)
	}
	if results.CompletedAt == "" {
		t.Error("empty completed_at")
	}
}

func TestResultsSnapshotForPendingTask(t *testing.T) {
	store := testStore(t)
	// No workers running: the task stays queued
	s := NewServer(store, queue.NewMemory(), config.DefaultConfig(), "")

	w := postAnalyze(t, s.Handler(), `{"repo": "octocat/hello", "pr_number": 7}`)
	var created AnalyzePRResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	var results ResultsResponse
	code := getJSON(t, s.Handler(), "/results/"+created.TaskID, &results)
	if code != http.StatusOK {
		t.Fatalf("results code = %d", code)
	}
	if results.Status != "queued" {
		t.Errorf("status = %q, want queued", results.Status)
	}
	if results.PRDetails != nil || results.Summary != "" || results.Issues != nil {
		t.Errorf("pending task carries result fields: %+v", results)
	}
}

func TestDaemonStatusEndpoint(t *testing.T) {
	s, store := testServer(t)

	store.CreateTask("octocat/hello", 1, "standard")
	store.CreateTask("octocat/hello", 2, "standard")

	var status DaemonStatus
	code := getJSON(t, s.Handler(), "/api/status", &status)
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if status.QueuedTasks != 2 {
		t.Errorf("queued_tasks = %d, want 2", status.QueuedTasks)
	}
	if status.MaxWorkers != 2 {
		t.Errorf("max_workers = %d, want 2", status.MaxWorkers)
	}
	if status.Version == "" {
		t.Error("empty version")
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)

	var health HealthStatus
	code := getJSON(t, s.Handler(), "/api/health", &health)
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if !health.Healthy {
		t.Errorf("healthy = false: %+v", health.Components)
	}
	if len(health.Components) != 2 {
		t.Errorf("components = %+v", health.Components)
	}
	for _, c := range health.Components {
		if !c.Healthy {
			t.Errorf("component %s unhealthy: %s", c.Name, c.Message)
		}
	}
}

func TestStreamEventsNDJSON(t *testing.T) {
	s, _ := testServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stream/events")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}

	// Wait for the subscription to register before queueing work
	deadline := time.Now().Add(2 * time.Second)
	for s.broadcaster.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	postAnalyze(t, s.Handler(), `{"repo": "octocat/hello", "pr_number": 7, "analysis_depth": "quick"}`)

	dec := json.NewDecoder(resp.Body)
	var ev Event
	if err := dec.Decode(&ev); err != nil {
		t.Fatalf("decode first event: %v", err)
	}
	if ev.Type != "task.queued" {
		t.Errorf("first event type = %q, want task.queued", ev.Type)
	}
	if ev.Repo != "octocat/hello" {
		t.Errorf("event repo = %q", ev.Repo)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{5*time.Minute + 3*time.Second, "5m 3s"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
