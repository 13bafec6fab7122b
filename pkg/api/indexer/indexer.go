// Package indexer keeps the run database current with the IOR reports
// found in storage.
package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atgtools/iorstat/pkg/api/storage"
	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/atgtools/iorstat/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// defaultConcurrency is the number of reports indexed in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

// Indexer is a background service that periodically scans storage
// and upserts parsed runs into the store.
type Indexer interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Indexer = (*indexer)(nil)

type indexer struct {
	log         logrus.FieldLogger
	store       store.Store
	reader      storage.Reader
	fsMap       map[string]string
	interval    time.Duration
	concurrency int
	done        chan struct{}
	wg          sync.WaitGroup
	dbMu        sync.Mutex // serializes DB writes to avoid SQLite contention
}

// NewIndexer creates a new background indexer.
func NewIndexer(
	log logrus.FieldLogger,
	st store.Store,
	reader storage.Reader,
	fsMap map[string]string,
	interval time.Duration,
	concurrency int,
) Indexer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &indexer{
		log:         log.WithField("component", "indexer"),
		store:       st,
		reader:      reader,
		fsMap:       fsMap,
		interval:    interval,
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

// Start launches a background goroutine that runs an immediate indexing
// pass and then ticks at the configured interval.
func (idx *indexer) Start(ctx context.Context) error {
	idx.log.WithFields(logrus.Fields{
		"interval":    idx.interval.String(),
		"concurrency": idx.concurrency,
	}).Info("Starting indexer")

	idx.wg.Add(1)

	go func() {
		defer idx.wg.Done()

		idx.runPass(ctx)

		ticker := time.NewTicker(idx.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				idx.runPass(ctx)
			case <-idx.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the indexer goroutine to stop and waits for it.
func (idx *indexer) Stop() error {
	close(idx.done)
	idx.wg.Wait()

	idx.log.Info("Indexer stopped")

	return nil
}

// runPass executes one full indexing pass across all discovery paths.
func (idx *indexer) runPass(ctx context.Context) {
	start := time.Now()
	paths := idx.reader.DiscoveryPaths()

	idx.log.WithField("discovery_paths", len(paths)).
		Info("Indexing pass started")

	for _, dp := range paths {
		select {
		case <-ctx.Done():
			return
		case <-idx.done:
			return
		default:
		}

		if err := idx.indexDiscoveryPath(ctx, dp); err != nil {
			idx.log.WithError(err).
				WithField("discovery_path", dp).
				Warn("Indexing pass failed for discovery path")
		}
	}

	idx.log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Info("Indexing pass completed")
}

// indexDiscoveryPath indexes reports that are new or whose runs were
// still incomplete when last seen.
func (idx *indexer) indexDiscoveryPath(
	ctx context.Context, dp string,
) error {
	names, err := idx.reader.ListReports(ctx, dp)
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}

	sources, err := idx.store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("listing indexed sources: %w", err)
	}

	type reportTask struct {
		name           string
		source         string
		alreadyIndexed bool
	}

	var (
		tasks    []reportTask
		newCount int
	)

	for _, name := range names {
		source := SourceName(dp, name)

		complete, alreadyIndexed := sources[source]
		if alreadyIndexed && complete {
			continue
		}

		if !alreadyIndexed {
			newCount++
		}

		tasks = append(tasks, reportTask{
			name:           name,
			source:         source,
			alreadyIndexed: alreadyIndexed,
		})
	}

	dpLog := idx.log.WithField("discovery_path", dp)

	dpLog.WithFields(logrus.Fields{
		"storage_reports":    len(names),
		"new_reports":        newCount,
		"incomplete_reports": len(tasks) - newCount,
	}).Info("Scanning discovery path")

	if len(tasks) == 0 {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	var indexed atomic.Int64

	for _, task := range tasks {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case <-idx.done:
				return nil
			default:
			}

			n, err := idx.indexReport(gCtx, dp, task.name, task.source)
			if err != nil {
				dpLog.WithError(err).
					WithField("report", task.name).
					Warn("Failed to index report")

				return nil //nolint:nilerr // log and continue
			}

			action := "indexed"
			if task.alreadyIndexed {
				action = "reindexed"
			}

			dpLog.WithFields(logrus.Fields{
				"report": task.name,
				"runs":   n,
				"action": action,
			}).Info("Indexed report")

			indexed.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing reports: %w", err)
	}

	if count := indexed.Load(); count > 0 {
		dpLog.WithField("count", count).
			Info("Discovery path indexing complete")
	}

	return nil
}

func (idx *indexer) indexReport(
	ctx context.Context, dp, name, source string,
) (int, error) {
	data, err := idx.reader.GetReport(ctx, dp, name)
	if err != nil {
		return 0, fmt.Errorf("reading report: %w", err)
	}

	if data == nil {
		return 0, fmt.Errorf("report %s not found", name)
	}

	idx.dbMu.Lock()
	defer idx.dbMu.Unlock()

	return IndexReport(ctx, idx.log, idx.store, source, bytes.NewReader(data), idx.fsMap)
}

// SourceName identifies a report by discovery path and name.
func SourceName(discoveryPath, name string) string {
	return path.Join(discoveryPath, name)
}

// IndexReport parses every run in r and upserts them under source, keyed
// by their position in the report. Runs that fail to parse are logged and
// stored as placeholders so the report is parsed again on the next pass.
// The count of parsed runs is returned.
func IndexReport(
	ctx context.Context,
	log logrus.FieldLogger,
	st store.Store,
	source string,
	r io.Reader,
	fsMap map[string]string,
) (int, error) {
	runs, err := ior.ParseRuns(r)
	if err != nil {
		return 0, fmt.Errorf("parsing report: %w", err)
	}

	var (
		parsed int
		errs   []error
	)

	for _, pr := range runs {
		if pr.Err != nil {
			log.WithError(pr.Err).
				WithField("source", source).
				WithField("run", pr.Index+1).
				Warn("Report contains a malformed run")

			errs = append(errs, fmt.Errorf("run %d: %w", pr.Index+1, pr.Err))

			if err := st.UpsertRun(ctx, store.FailedRun(source, pr.Index, pr.Err), nil); err != nil {
				return parsed, fmt.Errorf("storing run %d: %w", pr.Index+1, err)
			}

			continue
		}

		run, results, err := store.FromRecord(source, pr.Index, pr.Record, fsMap)
		if err != nil {
			return parsed, fmt.Errorf("converting run %d: %w", pr.Index+1, err)
		}

		if err := st.UpsertRun(ctx, run, results); err != nil {
			return parsed, fmt.Errorf("storing run %d: %w", pr.Index+1, err)
		}

		parsed++
	}

	if parsed == 0 && len(errs) > 0 {
		return 0, fmt.Errorf("parsing report: %w", errors.Join(errs...))
	}

	return parsed, nil
}
