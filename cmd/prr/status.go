package main

import (
	"fmt"

	"github.com/akhil1parekh/github-pr-review-agent/internal/daemon"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task_id>",
		Short: "Show the status of an analysis task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemon.StatusResponse
			if err := getJSON("/status/"+args[0], &status); err != nil {
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, status daemon.StatusResponse) {
	cmd.Printf("Task:     %s\n", status.TaskID)
	cmd.Printf("PR:       %s#%d (depth: %s)\n", status.Repo, status.PRNumber, status.Depth)
	cmd.Printf("Status:   %s\n", status.Status)
	cmd.Printf("Progress: %.0f%%\n", status.Progress*100)
	if status.Message != "" {
		cmd.Printf("Message:  %s\n", status.Message)
	}
	if status.Error != "" {
		cmd.Printf("Error:    [%s] %s\n", status.ErrorKind, status.Error)
	}
}

func daemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon-status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemon.DaemonStatus
			if err := getJSON("/api/status", &status); err != nil {
				cmd.Println("Daemon: not running")
				cmd.Println()
				cmd.Println("Start with: prrd")
				return nil
			}

			daemonLine := "Daemon: running"
			if status.Version != "" {
				daemonLine += fmt.Sprintf(" [%s]", status.Version)
			}
			cmd.Println(daemonLine)
			cmd.Printf("Workers: %d/%d active\n", status.ActiveWorkers, status.MaxWorkers)
			cmd.Printf("Tasks:   %d queued, %d in progress, %d completed, %d failed\n",
				status.QueuedTasks, status.InProgressTasks, status.CompletedTasks, status.FailedTasks)
			return nil
		},
	}
}
