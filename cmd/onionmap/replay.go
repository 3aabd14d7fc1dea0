package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onionmap/onionmap/internal/config"
	"github.com/onionmap/onionmap/internal/store"
)

// NewReplayCmd creates the replay command.
//
// Edges that could not be written during a crawl (the database was
// locked or briefly unavailable) land in a replay queue instead of being
// lost. This command flushes that queue into the graph.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Flush queued graph edges into the link graph",
		Long: `Replay applies graph edges that a previous crawl queued after failed
writes. Replayed edges merge into the graph exactly as if they had been
written during the crawl: re-observed links increment their occurrence
count instead of creating duplicates.

Running replay with an empty queue is a no-op.`,
		RunE: runReplayCmd,
	}

	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runReplayCmd executes the replay command.
func runReplayCmd(cmd *cobra.Command, _ []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	opts := store.DefaultOptions()
	opts.CreateIfNotExists = false

	db, err := store.Open(dbDir, opts)
	if err != nil {
		if errors.Is(err, store.ErrDatabaseNotFound) {
			return fmt.Errorf("no crawl database in %s (run 'onionmap crawl' first)", dbDir)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Best effort cleanup

	replayed, err := db.ReplayEdges(cmd.Context())
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	if replayed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Replay queue is empty.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d queued edge(s) into the graph.\n", replayed)
	return nil
}
