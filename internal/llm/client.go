// Package llm runs analysis stages through an OpenAI-compatible
// chat-completions endpoint and parses findings from the response.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/review"
)

// Client calls a chat-completions API. Implements review.Analyzer.
type Client struct {
	apiURL string
	apiKey string
	model  string
	http   *http.Client
}

// NewClient creates an LLM client. apiURL defaults to the OpenAI API
// when empty; model defaults to gpt-4o-mini.
func NewClient(apiURL, apiKey, model string) *Client {
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// RunAnalysis runs one stage against one file chunk and returns the
// findings. Malformed model output is reported as transient so the
// stage retry policy gets another attempt at it.
func (c *Client) RunAnalysis(ctx context.Context, stage review.Stage, file review.FileDiff) ([]review.Issue, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(stage)},
			{Role: "user", Content: userPrompt(file)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", review.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("llm: %w", review.ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("llm: status %d: %w", resp.StatusCode, review.ErrTransient)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("llm: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", review.ErrTransient, err)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil || len(cr.Choices) == 0 {
		return nil, fmt.Errorf("llm: malformed completion: %w", review.ErrTransient)
	}

	issues, err := ParseIssues(cr.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("llm: %v: %w", err, review.ErrTransient)
	}
	return issues, nil
}
