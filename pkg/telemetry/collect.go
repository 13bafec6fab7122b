package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// fallbackWorkers is used when the CPU count cannot be determined.
const fallbackWorkers = 8

// DefaultWorkers returns the number of logical CPUs.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return fallbackWorkers
	}

	return n
}

// Collect runs ex over every path with at most workers extractions in
// flight and returns one summary per path, in input order. A path that
// fails is logged and left as the zero-value sentinel; the batch always
// completes.
func Collect(
	ctx context.Context,
	log logrus.FieldLogger,
	ex Extractor,
	paths []string,
	workers int,
) []DailySummary {
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	log = log.WithField("component", "collector")
	start := time.Now()

	results := make([]DailySummary, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var failed atomic.Int64

	for i, path := range paths {
		g.Go(func() error {
			if gCtx.Err() != nil {
				failed.Add(1)

				return nil
			}

			log.WithField("file", path).Debug("Processing telemetry file")

			summary, err := ex.Extract(gCtx, path)
			if err != nil {
				log.WithError(err).
					WithField("file", path).
					Warn("Skipping unreadable telemetry file")
				failed.Add(1)

				return nil //nolint:nilerr // log and continue
			}

			results[i] = summary

			return nil
		})
	}

	_ = g.Wait()

	log.WithFields(logrus.Fields{
		"files":    len(paths),
		"failed":   failed.Load(),
		"workers":  workers,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Telemetry extraction complete")

	return results
}
