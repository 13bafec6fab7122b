// Package aggregate folds daily telemetry summaries into calendar buckets.
package aggregate

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/atgtools/iorstat/pkg/telemetry"
)

// Bucket accumulates every summary that falls into one calendar span.
type Bucket struct {
	Key  string
	N    int
	Sums map[string]float64
}

// MarshalJSON flattens the sums next to the key and count.
func (b *Bucket) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Sums)+2)
	for k, v := range b.Sums {
		out[k] = v
	}

	out["date"] = b.Key
	out["n"] = b.N

	return json.Marshal(out)
}

// Result is the output of one aggregation.
type Result struct {
	Granularity Granularity
	Metrics     []string
	Buckets     map[string]*Bucket
	// Skipped counts sentinel summaries left out of the fold.
	Skipped  int
	Warnings []string

	nonAdditiveSummed bool
}

// Keys returns the bucket keys in ascending order.
func (r *Result) Keys() []string {
	return slices.Sorted(maps.Keys(r.Buckets))
}

// Totals sums every metric across all buckets.
func (r *Result) Totals() map[string]float64 {
	totals := make(map[string]float64, len(r.Metrics))

	for _, m := range r.Metrics {
		totals[m] = 0
	}

	for _, b := range r.Buckets {
		for _, m := range r.Metrics {
			totals[m] += b.Sums[m]
		}
	}

	return totals
}

// MarshalJSON renders the buckets as a list in key order.
func (r *Result) MarshalJSON() ([]byte, error) {
	buckets := make([]*Bucket, 0, len(r.Buckets))
	for _, key := range r.Keys() {
		buckets = append(buckets, r.Buckets[key])
	}

	return json.Marshal(struct {
		Granularity string    `json:"granularity"`
		Metrics     []string  `json:"metrics"`
		Buckets     []*Bucket `json:"buckets"`
		Skipped     int       `json:"skipped"`
		Warnings    []string  `json:"warnings,omitempty"`
	}{
		Granularity: r.Granularity.String(),
		Metrics:     r.Metrics,
		Buckets:     buckets,
		Skipped:     r.Skipped,
		Warnings:    r.Warnings,
	})
}

// NonAdditiveSummed reports whether a non-additive metric was summed across
// more than one summary in any bucket.
func (r *Result) NonAdditiveSummed() bool {
	return r.nonAdditiveSummed
}

// Aggregator reduces daily summaries into buckets.
type Aggregator struct {
	Granularity Granularity
	Metrics     []string
	// NonAdditive lists metrics whose sum across summaries is meaningless.
	NonAdditive map[string]struct{}
	WeekStart   time.Weekday
}

// New returns an Aggregator for metrics with the default non-additive set
// and Monday-start weeks.
func New(g Granularity, metrics []string) *Aggregator {
	return &Aggregator{
		Granularity: g,
		Metrics:     metrics,
		NonAdditive: telemetry.NonAdditiveMetrics,
		WeekStart:   time.Monday,
	}
}

// Aggregate folds records into a fresh Result. The input is not modified;
// records are folded in date order so sums are reproducible. A record's
// date is its Day, or Date when Day is unset. Sentinels are counted in
// Skipped and otherwise ignored. Metrics absent from a record contribute
// zero.
func (a *Aggregator) Aggregate(records []telemetry.DailySummary) *Result {
	result := &Result{
		Granularity: a.Granularity,
		Metrics:     slices.Clone(a.Metrics),
		Buckets:     make(map[string]*Bucket, len(records)),
	}

	type dated struct {
		day time.Time
		rec *telemetry.DailySummary
	}

	ordered := make([]dated, 0, len(records))

	for i := range records {
		rec := &records[i]

		if rec.IsZero() {
			result.Skipped++

			continue
		}

		day := rec.Day
		if day.IsZero() {
			parsed, err := time.Parse(time.DateOnly, rec.Date)
			if err != nil {
				result.Skipped++
				result.Warnings = append(result.Warnings, fmt.Sprintf("skipped %q: unparsable date", rec.Date))

				continue
			}

			day = parsed
		}

		ordered = append(ordered, dated{day: day, rec: rec})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].day.Before(ordered[j].day)
	})

	for _, d := range ordered {
		key := BucketKey(d.day, a.Granularity, a.WeekStart)

		bucket, ok := result.Buckets[key]
		if !ok {
			bucket = &Bucket{Key: key, Sums: make(map[string]float64, len(a.Metrics))}
			for _, m := range a.Metrics {
				bucket.Sums[m] = 0
			}

			result.Buckets[key] = bucket
		}

		bucket.N++

		for _, m := range a.Metrics {
			bucket.Sums[m] += d.rec.Metrics[m]
		}
	}

	result.Warnings = append(result.Warnings, a.warnings(result)...)

	return result
}

func (a *Aggregator) warnings(result *Result) []string {
	var summed []string

	for _, m := range a.Metrics {
		if _, ok := a.NonAdditive[m]; ok {
			summed = append(summed, m)
		}
	}

	if len(summed) == 0 {
		return nil
	}

	var merged []string

	for _, key := range result.Keys() {
		if result.Buckets[key].N > 1 {
			merged = append(merged, key)
		}
	}

	if len(merged) == 0 {
		return nil
	}

	result.nonAdditiveSummed = true

	return []string{fmt.Sprintf(
		"reduced more than one day into %d bucket(s) (%s); %s no longer percent-valid",
		len(merged), strings.Join(merged, ", "), strings.Join(summed, ", "),
	)}
}
