package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "peerhubd",
		Short: "Connection lifecycle and liveness hub",
		Long: `Peerhubd accepts peer connections over WebSocket or raw TCP,
tracks each peer's liveness through heartbeats, evicts unresponsive
peers, and exposes registry state over an admin HTTP endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
