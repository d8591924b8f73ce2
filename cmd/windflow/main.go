package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "windflow",
	Short: "WindFlow - Stack-based Docker deployment platform",
	Long: `WindFlow deploys curated application stacks onto Docker hosts,
local or remote, and streams deployment status and logs to connected
clients over WebSocket.

A stack is a YAML template with typed variables; WindFlow renders it
against user values, runs the deployment through docker or docker
compose, and retries transient failures with exponential backoff.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"WindFlow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(stackCmd)
	rootCmd.AddCommand(deploymentCmd)
	rootCmd.AddCommand(tokenCmd)
}
