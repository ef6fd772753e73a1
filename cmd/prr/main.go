package main

import (
	"os"

	"github.com/spf13/cobra"
)

var serverAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "prr",
		Short: "Asynchronous AI code review for GitHub pull requests",
		Long:  "prr submits pull requests to the prrd daemon for staged AI analysis and retrieves results",
	}

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8585", "daemon server address")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(resultsCmd())
	rootCmd.AddCommand(waitCmd())
	rootCmd.AddCommand(daemonStatusCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
