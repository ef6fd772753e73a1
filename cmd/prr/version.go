package main

import (
	"github.com/akhil1parekh/github-pr-review-agent/internal/version"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the prr version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("prr %s\n", version.Version)
		},
	}
}
