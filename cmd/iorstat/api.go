package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atgtools/iorstat/pkg/api"
	"github.com/atgtools/iorstat/pkg/api/indexer"
	"github.com/atgtools/iorstat/pkg/api/storage"
	"github.com/atgtools/iorstat/pkg/config"
	"github.com/atgtools/iorstat/pkg/store"
	"github.com/atgtools/iorstat/pkg/upload"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Serve the run database over a read-only HTTP API. With api.indexing
enabled, report locations are scanned in the background and new or
incomplete reports are indexed on every pass.`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	idx, err := newIndexer(cfg, st)
	if err != nil {
		return fmt.Errorf("preparing indexing: %w", err)
	}

	srv := api.NewServer(log, &cfg.API, st, idx)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down API server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}

	return nil
}

// newIndexer builds the background indexer, or returns nil when indexing
// is disabled. S3 prefixes take precedence over local paths.
func newIndexer(cfg *config.Config, st store.Store) (indexer.Indexer, error) {
	ic := cfg.API.Indexing
	if !ic.Enabled {
		return nil, nil //nolint:nilnil // indexing is optional
	}

	interval, err := time.ParseDuration(ic.Interval)
	if err != nil {
		return nil, fmt.Errorf("parsing indexing interval: %w", err)
	}

	var reader storage.Reader

	switch {
	case len(ic.S3Prefixes) > 0:
		reader = storage.NewS3Reader(
			upload.NewS3Reader(log, &cfg.Upload.S3), ic.S3Prefixes, ic.Pattern,
		)
	case len(ic.LocalPaths) > 0:
		reader = storage.NewLocalReader(ic.LocalPaths, ic.Pattern)
	default:
		return nil, fmt.Errorf("no report location configured for indexing")
	}

	log.Info("Indexing service enabled")

	return indexer.NewIndexer(log, st, reader, cfg.IOR.FSMap, interval, ic.Concurrency), nil
}
