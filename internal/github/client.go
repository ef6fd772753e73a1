// Package github fetches pull-request metadata and diffs from the
// GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/review"
)

// maxDiffSize caps fetched diff bodies. PRs beyond this are not
// reviewable in one pass anyway.
const maxDiffSize = 4 * 1024 * 1024

// Client talks to the GitHub REST API. The zero token works for
// public repos at anonymous rate limits.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
}

// NewClient creates a GitHub client. apiURL defaults to the public
// API when empty.
func NewClient(apiURL, token string) *Client {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// prMetadata is the subset of the pulls API response we consume.
type prMetadata struct {
	Title string `json:"title"`
	User  struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// FetchPullRequest retrieves PR metadata and the unified diff.
// Implements review.Fetcher.
func (c *Client) FetchPullRequest(ctx context.Context, repo string, number int) (*review.PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/pulls/%d", c.apiURL, repo, number)

	var meta prMetadata
	body, err := c.get(ctx, url, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode pull request %s#%d: %w", repo, number, review.ErrTransient)
	}

	diff, err := c.get(ctx, url, "application/vnd.github.v3.diff")
	if err != nil {
		return nil, err
	}

	return &review.PullRequest{
		Repo:    repo,
		Number:  number,
		Title:   meta.Title,
		Author:  meta.User.Login,
		HeadSHA: meta.Head.SHA,
		Diff:    string(diff),
	}, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", review.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	// Read one byte past the cap so truncation is detectable.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiffSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", review.ErrTransient, err)
	}
	if len(body) > maxDiffSize {
		return nil, fmt.Errorf("github: response exceeds %d bytes", maxDiffSize)
	}
	return body, nil
}

// classifyStatus maps GitHub's status codes onto the review error
// taxonomy. 403 is rate limiting only when the quota header says so;
// otherwise it's an auth problem.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("github: %w", review.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("github: %w", review.ErrAuth)
	case resp.StatusCode == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return fmt.Errorf("github: %w", review.ErrRateLimited)
		}
		return fmt.Errorf("github: %w", review.ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("github: %w", review.ErrRateLimited)
	default:
		return fmt.Errorf("github: status %d: %w", resp.StatusCode, review.ErrTransient)
	}
}
