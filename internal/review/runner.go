package review

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Fetcher retrieves PR metadata and the unified diff from the
// source-control host.
type Fetcher interface {
	FetchPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)
}

// Analyzer runs one analysis stage against one file chunk.
type Analyzer interface {
	RunAnalysis(ctx context.Context, stage Stage, file FileDiff) ([]Issue, error)
}

// ProgressFunc receives progress updates as the pipeline advances.
// progress is stages_completed / total_stages.
type ProgressFunc func(progress float64, message string)

// Runner converts a claimed task into an AnalysisResult by running the
// depth-selected stage sequence in order. Partial results from earlier
// stages are discarded on fatal failure; the result contract is
// all-or-nothing.
type Runner struct {
	Fetcher  Fetcher
	Analyzer Analyzer
	Retry    RetryPolicy

	// StageTimeout bounds each individual analysis call.
	// Zero disables the per-call timeout.
	StageTimeout time.Duration
}

// Run executes the pipeline. Fetch failures are fatal with no stages
// executed. A stage call is retried per the policy; exhausting retries
// fails the whole run. Cancellation is cooperative, checked between
// stages only.
func (r *Runner) Run(ctx context.Context, repo string, prNumber int, depth Depth, progress ProgressFunc) (*AnalysisResult, error) {
	if progress == nil {
		progress = func(float64, string) {}
	}

	stages, err := Plan(depth)
	if err != nil {
		return nil, err
	}

	progress(0, "Fetching PR data")
	pr, err := r.Fetcher.FetchPullRequest(ctx, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request %s#%d: %w", repo, prNumber, err)
	}

	files, err := SplitDiff(pr.Diff)
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stageStart := len(issues)
		for _, file := range files {
			found, err := r.runStageCall(ctx, stage, file)
			if err != nil {
				return nil, fmt.Errorf("%s stage on %s: %w", stage, file.Path, err)
			}
			for j := range found {
				found[j].Type = stage.IssueType()
				if found[j].File == "" {
					found[j].File = file.Path
				}
			}
			issues = append(issues, found...)
		}

		// Within a stage, order findings by ascending line;
		// non-line-addressable findings sort last.
		sortByLine(issues[stageStart:])

		progress(float64(i+1)/float64(len(stages)),
			fmt.Sprintf("Analyzed %s", stage.Describe()))
	}

	return &AnalysisResult{
		PRDetails: PRDetails{
			Repo:     pr.Repo,
			PRNumber: pr.Number,
			Title:    pr.Title,
			Author:   pr.Author,
			DiffRef:  pr.HeadSHA,
		},
		Summary: Summarize(issues, len(files)),
		Issues:  issues,
	}, nil
}

// runStageCall runs one stage against one file with the retry policy
// and per-call timeout applied.
func (r *Runner) runStageCall(ctx context.Context, stage Stage, file FileDiff) ([]Issue, error) {
	var found []Issue
	err := r.Retry.Do(ctx, func() error {
		callCtx := ctx
		if r.StageTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.StageTimeout)
			defer cancel()
		}
		out, err := r.Analyzer.RunAnalysis(callCtx, stage, file)
		if err != nil {
			return err
		}
		found = out
		return nil
	})
	return found, err
}

func sortByLine(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		la, lb := issues[a].Line, issues[b].Line
		switch {
		case la == nil:
			return false
		case lb == nil:
			return true
		default:
			return *la < *lb
		}
	})
}
