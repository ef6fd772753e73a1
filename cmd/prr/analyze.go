package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akhil1parekh/github-pr-review-agent/internal/daemon"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	var depth string

	cmd := &cobra.Command{
		Use:   "analyze <owner/repo> <pr_number>",
		Short: "Submit a pull request for analysis",
		Long: `Submit a pull request for asynchronous analysis.

Depth controls which stages run:
  quick     style only
  standard  style, bugs, performance (default)
  deep      style, bugs, performance, best practices

Examples:
  prr analyze golang/go 12345
  prr analyze golang/go 12345 --depth deep`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := args[0]
			if !strings.Contains(repo, "/") {
				return fmt.Errorf("repo must be owner/name, got %q", repo)
			}
			prNumber, err := strconv.Atoi(args[1])
			if err != nil || prNumber <= 0 {
				return fmt.Errorf("invalid PR number: %s", args[1])
			}

			var resp daemon.AnalyzePRResponse
			err = postJSON("/analyze-pr", daemon.AnalyzePRRequest{
				Repo:     repo,
				PRNumber: prNumber,
				Depth:    depth,
			}, &resp)
			if err != nil {
				return err
			}

			cmd.Printf("Task %s queued for %s#%d\n", resp.TaskID, repo, prNumber)
			cmd.Printf("Check progress with: prr status %s\n", resp.TaskID)
			return nil
		},
	}

	cmd.Flags().StringVar(&depth, "depth", "", "analysis depth: quick, standard, or deep")
	return cmd
}
