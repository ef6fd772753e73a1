// Package review implements the staged PR analysis pipeline: stage
// planning by analysis depth, per-file execution against an LLM
// collaborator, retry policy, and result aggregation.
package review

// IssueType categorizes a finding by the stage that produced it.
type IssueType string

const (
	IssueStyle        IssueType = "style"
	IssueBug          IssueType = "bug"
	IssuePerformance  IssueType = "performance"
	IssueBestPractice IssueType = "best_practice"
)

// Severity is the reviewer-assigned weight of a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is a single finding from one analysis stage.
// Line is nil when the finding is not line-addressable.
type Issue struct {
	Type        IssueType `json:"type"`
	File        string    `json:"file"`
	Line        *int      `json:"line,omitempty"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Suggestion  string    `json:"suggestion,omitempty"`
}

// PRDetails identifies the analyzed pull request.
type PRDetails struct {
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	DiffRef  string `json:"diff_ref,omitempty"` // head SHA the diff was fetched at
}

// AnalysisResult is the output of a successful run. Issues are ordered
// by stage, then by ascending line within a stage.
type AnalysisResult struct {
	PRDetails PRDetails `json:"pr_details"`
	Summary   string    `json:"summary"`
	Issues    []Issue   `json:"issues"`
}

// PullRequest is the source-control collaborator's view of a PR:
// metadata plus the fetched unified diff.
type PullRequest struct {
	Repo    string
	Number  int
	Title   string
	Author  string
	HeadSHA string
	Diff    string
}
