package main

import (
	"encoding/json"

	"github.com/akhil1parekh/github-pr-review-agent/internal/daemon"
	"github.com/spf13/cobra"
)

func resultsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "results <task_id>",
		Short: "Show analysis results for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res daemon.ResultsResponse
			if err := getJSON("/results/"+args[0], &res); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			printResults(cmd, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func printResults(cmd *cobra.Command, res daemon.ResultsResponse) {
	if res.Status != "completed" {
		cmd.Printf("Task %s is %s (%.0f%%)\n", res.TaskID, res.Status, res.Progress*100)
		if res.Message != "" {
			cmd.Printf("Message: %s\n", res.Message)
		}
		if res.Error != "" {
			cmd.Printf("Error:   [%s] %s\n", res.ErrorKind, res.Error)
		}
		return
	}

	if res.PRDetails != nil {
		cmd.Printf("PR:      %s#%d", res.PRDetails.Repo, res.PRDetails.PRNumber)
		if res.PRDetails.Title != "" {
			cmd.Printf(" %q", res.PRDetails.Title)
		}
		cmd.Println()
		if res.PRDetails.Author != "" {
			cmd.Printf("Author:  %s\n", res.PRDetails.Author)
		}
	}
	cmd.Printf("Summary: %s\n", res.Summary)

	if len(res.Issues) == 0 {
		return
	}
	cmd.Println()
	for _, issue := range res.Issues {
		if issue.Line != nil {
			cmd.Printf("[%s/%s] %s:%d\n", issue.Type, issue.Severity, issue.File, *issue.Line)
		} else {
			cmd.Printf("[%s/%s] %s\n", issue.Type, issue.Severity, issue.File)
		}
		cmd.Printf("  %s\n", issue.Description)
		if issue.Suggestion != "" {
			cmd.Printf("  Suggestion: %s\n", issue.Suggestion)
		}
	}
}
