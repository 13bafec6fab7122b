package report

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/atgtools/iorstat/pkg/units"
)

// RunsMarkdown renders a markdown summary of parsed runs under title.
func RunsMarkdown(title string, records []*ior.RunRecord) string {
	var sb strings.Builder

	sb.Grow(2048 * (len(records) + 1))

	fmt.Fprintf(&sb, "# %s\n\n", title)

	writeJobs(&sb, records)

	for i, rec := range records {
		fmt.Fprintf(&sb, "## Run %d\n\n", i+1)
		writeOverview(&sb, rec)
		writeFileSystem(&sb, rec.FileSystem)
		writeResults(&sb, rec.RunSummary)
	}

	return sb.String()
}

func writeJobs(sb *strings.Builder, records []*ior.RunRecord) {
	jobs := ior.JobsTable(records)
	if len(jobs) == 0 {
		return
	}

	sb.WriteString("## Jobs\n\n")
	sb.WriteString("| Job (nodes-ppn) | Write MiB/s | Read MiB/s |\n")
	sb.WriteString("|---|---|---|\n")

	for _, key := range slices.Sorted(maps.Keys(jobs)) {
		fmt.Fprintf(sb, "| %s | %s | %s |\n", key,
			formatRate(jobs[key], ior.OpWrite), formatRate(jobs[key], ior.OpRead))
	}

	sb.WriteByte('\n')
}

func formatRate(ops map[ior.Operation]float64, op ior.Operation) string {
	v, ok := ops[op]
	if !ok {
		return "-"
	}

	return fmt.Sprintf("%.2f", v)
}

func writeOverview(sb *strings.Builder, rec *ior.RunRecord) {
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	status := "complete"
	if !rec.Complete() {
		status = "incomplete"
	}

	fmt.Fprintf(sb, "| Status | %s |\n", status)

	if rec.Path != "" {
		fmt.Fprintf(sb, "| Path | `%s` |\n", rec.Path)
	}

	if rec.Start != nil {
		fmt.Fprintf(sb, "| Started | %s |\n", rec.Start.Format(time.DateTime))
	}

	if rec.Start != nil && rec.Stop != nil {
		fmt.Fprintf(sb, "| Duration | %s |\n", formatDuration(rec.Stop.Sub(*rec.Start)))
	}

	if s := rec.InputSummary; s != nil {
		if s.API != "" {
			fmt.Fprintf(sb, "| API | %s |\n", s.API)
		}

		fmt.Fprintf(sb, "| Clients | %d |\n", s.Clients)

		if s.PPN > 0 {
			fmt.Fprintf(sb, "| Nodes x PPN | %d x %d |\n", s.Nodes, s.PPN)
		}

		if s.XferSize > 0 {
			fmt.Fprintf(sb, "| Transfer Size | %s |\n", units.HumanBytes(s.XferSize))
		}

		if s.BlockSize > 0 {
			fmt.Fprintf(sb, "| Block Size | %s |\n", units.HumanBytes(s.BlockSize))
		}

		if s.AggregateFileSize > 0 {
			fmt.Fprintf(sb, "| Aggregate File Size | %s |\n", units.HumanBytes(s.AggregateFileSize))
		}
	}

	sb.WriteByte('\n')
}

func writeFileSystem(sb *strings.Builder, fs *ior.FileSystemSnapshot) {
	if fs == nil {
		return
	}

	sb.WriteString("### File System\n\n")
	sb.WriteString("| Capacity | Used | Inodes | Inodes Used |\n")
	sb.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(sb, "| %s | %.1f%% | %d | %.1f%% |\n\n",
		units.HumanBytes(float64(fs.ApproxTotalBytes)), fs.ApproxUsedBytesPct,
		fs.ApproxTotalInodes, fs.ApproxUsedInodesPct)
}

func writeResults(sb *strings.Builder, results []ior.TestResult) {
	if len(results) == 0 {
		sb.WriteString("*No results recorded.*\n\n")

		return
	}

	sb.WriteString("### Results\n\n")
	sb.WriteString("| Op | Max MiB/s | Min MiB/s | Mean MiB/s | Stdev | Mean Time |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")

	for _, r := range results {
		if r.Abbreviated {
			fmt.Fprintf(sb, "| %s | %.2f | - | - | - | - |\n", r.Operation, r.MaxMiBs)

			continue
		}

		fmt.Fprintf(sb, "| %s | %.2f | %.2f | %.2f | %.2f | %.3fs |\n",
			r.Operation, r.MaxMiBs, r.MinMiBs, r.AvgMiBs, r.StdDevMiBs, r.MeanTime)
	}

	sb.WriteByte('\n')
}

// formatDuration formats a time.Duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}
