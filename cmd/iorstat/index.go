package main

import (
	"fmt"
	"os"

	"github.com/atgtools/iorstat/pkg/api/indexer"
	"github.com/atgtools/iorstat/pkg/store"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <report>...",
	Short: "Parse IOR reports and store them in the database",
	Long: `Parse IOR reports and upsert every run into the configured database.
Re-indexing a report replaces its stored runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	var failed, stored int

	for _, path := range args {
		n, err := indexFile(cmd, st, path)
		stored += n

		if err != nil {
			failed++

			log.WithError(err).WithField("file", path).Warn("Failed to index report")
		}
	}

	log.WithField("reports", len(args)-failed).
		WithField("runs", stored).
		Info("Indexing complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed to index", failed, len(args))
	}

	return nil
}

func indexFile(cmd *cobra.Command, st store.Store, path string) (int, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the command line
	if err != nil {
		return 0, fmt.Errorf("opening report: %w", err)
	}
	defer func() { _ = f.Close() }()

	return indexer.IndexReport(cmd.Context(), log, st, path, f, cfg.IOR.FSMap)
}
