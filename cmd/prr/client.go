package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/daemon"
)

// httpClient is shared by all commands. Long enough for slow daemons,
// short enough to fail fast when nothing is listening.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// getJSON performs a GET against the daemon and decodes the response.
// Non-2xx responses are surfaced as errors using the daemon's error body.
func getJSON(path string, out interface{}) error {
	resp, err := httpClient.Get(serverAddr + path)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postJSON performs a POST with a JSON body and decodes the response.
func postJSON(path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	resp, err := httpClient.Post(serverAddr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp daemon.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("%s", errResp.Error)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}
