// Package report renders parsed runs and aggregated telemetry as text,
// markdown, JSON and YAML.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/atgtools/iorstat/pkg/aggregate"
	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/atgtools/iorstat/pkg/units"
)

const summaryLabel = "summary"

// WriteTable prints one fixed-width row per bucket, oldest first. When
// withSummary is set a blank line and a totals row follow. Metrics without
// a label use their name as the column header.
func WriteTable(
	w io.Writer,
	result *aggregate.Result,
	labels map[string]string,
	withSummary bool,
) error {
	var sb strings.Builder

	sb.Grow(64 * (len(result.Buckets) + 3))

	fmt.Fprintf(&sb, "%10s", label(labels, "date"))

	for _, m := range result.Metrics {
		fmt.Fprintf(&sb, " %12s", label(labels, m))
	}

	sb.WriteByte('\n')

	for _, key := range result.Keys() {
		writeTableRow(&sb, key, result.Metrics, result.Buckets[key].Sums)
	}

	if withSummary {
		sb.WriteByte('\n')
		writeTableRow(&sb, summaryLabel, result.Metrics, result.Totals())
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}

	return nil
}

func writeTableRow(sb *strings.Builder, key string, metrics []string, values map[string]float64) {
	fmt.Fprintf(sb, "%10s", key)

	for _, m := range metrics {
		fmt.Fprintf(sb, " %12.2f", values[m])
	}

	sb.WriteByte('\n')
}

func label(labels map[string]string, key string) string {
	if l, ok := labels[key]; ok {
		return l
	}

	return key
}

// WriteRunsTable prints one line per test result across records.
func WriteRunsTable(w io.Writer, records []*ior.RunRecord) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%-8s %-6s %10s %10s %10s %10s %6s %10s %10s  %s\n",
		"job", "op", "max MiB/s", "min MiB/s", "avg MiB/s", "stdev",
		"tasks", "xfer", "block", "api")

	for _, rec := range records {
		job, ok := ior.JobKey(rec)
		if !ok {
			job = "-"
		}

		for _, r := range rec.RunSummary {
			if r.Abbreviated {
				fmt.Fprintf(&sb, "%-8s %-6s %10.2f %10s %10s %10s %6s %10s %10s  %s\n",
					job, r.Operation, r.MaxMiBs, "-", "-", "-", "-", "-", "-", "-")

				continue
			}

			fmt.Fprintf(&sb, "%-8s %-6s %10.2f %10.2f %10.2f %10.2f %6d %10s %10s  %s\n",
				job, r.Operation, r.MaxMiBs, r.MinMiBs, r.AvgMiBs, r.StdDevMiBs,
				r.NumTasks, units.HumanBytes(r.TransferSize), units.HumanBytes(r.BlockSize), r.API)
		}
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("writing runs table: %w", err)
	}

	return nil
}
