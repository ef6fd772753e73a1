package main

import (
	"fmt"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/daemon"
	"github.com/spf13/cobra"
)

func waitCmd() *cobra.Command {
	var (
		timeout time.Duration
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "wait <task_id>",
		Short: "Block until an analysis task finishes",
		Long: `Poll the daemon until the task reaches a terminal state.

Exit codes:
  0  Task completed
  1  Task failed, timed out, or not found`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if quiet {
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
			}

			taskID := args[0]
			deadline := time.Now().Add(timeout)
			lastMessage := ""

			for {
				var status daemon.StatusResponse
				if err := getJSON("/status/"+taskID, &status); err != nil {
					return err
				}

				if !quiet && status.Message != "" && status.Message != lastMessage {
					cmd.Printf("[%.0f%%] %s\n", status.Progress*100, status.Message)
					lastMessage = status.Message
				}

				switch status.Status {
				case "completed":
					if !quiet {
						cmd.Printf("Task %s completed\n", taskID)
					}
					return nil
				case "failed":
					return fmt.Errorf("task %s failed: [%s] %s", taskID, status.ErrorKind, status.Error)
				}

				if time.Now().After(deadline) {
					return fmt.Errorf("timed out after %s waiting for task %s", timeout, taskID)
				}
				time.Sleep(2 * time.Second)
			}
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "maximum time to wait")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}
