// Package main provides the entry point for the onionmap CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onionmap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionmap",
		Short: "Link graph crawler for Tor hidden services",
		Long: `onionmap maps the link structure of Tor hidden services (.onion addresses).
Starting from seed URLs, it crawls pages through isolated Tor circuits and
records the discovered pages and links as a graph in a local database.

By default, onionmap starts an embedded Tor daemon automatically.
Use --external-tor to use an existing Tor proxy instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReplayCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
