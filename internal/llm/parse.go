package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akhil1parekh/github-pr-review-agent/internal/review"
)

// ParseIssues extracts the issue list from model output. Models wrap
// JSON in markdown fences or an {"issues": [...]} envelope often
// enough that both are accepted.
func ParseIssues(content string) ([]review.Issue, error) {
	s := stripFences(content)

	var issues []review.Issue
	if err := json.Unmarshal([]byte(s), &issues); err == nil {
		return issues, nil
	}

	var envelope struct {
		Issues []review.Issue `json:"issues"`
	}
	if err := json.Unmarshal([]byte(s), &envelope); err == nil && envelope.Issues != nil {
		return envelope.Issues, nil
	}

	return nil, fmt.Errorf("unparseable issue list")
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
