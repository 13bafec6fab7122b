package ior

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// SplitRuns breaks a report holding several concatenated IOR outputs into
// one block of lines per run. A block starts at "Run began" and ends at
// "Run finished"; a trailing block without "Run finished" is still
// returned. Input without any "Run began" line is returned as one block.
func SplitRuns(r io.Reader) ([][]string, error) {
	var (
		blocks  [][]string
		current []string
		all     []string
		inRun   bool
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		all = append(all, line)

		switch {
		case strings.HasPrefix(line, headerRunBegan):
			if inRun {
				blocks = append(blocks, current)
			}

			current = []string{line}
			inRun = true
		case strings.HasPrefix(line, headerRunFinished):
			if !inRun {
				continue
			}

			current = append(current, line)
			blocks = append(blocks, current)
			current = nil
			inRun = false
		case inRun:
			current = append(current, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	if inRun {
		blocks = append(blocks, current)
	}

	if len(blocks) == 0 && len(all) > 0 {
		blocks = append(blocks, all)
	}

	return blocks, nil
}

// ParsedRun is the outcome of parsing one run block. Index is the block's
// position in the report, so it stays stable when an earlier block fails.
type ParsedRun struct {
	Index  int
	Record *RunRecord
	Err    error
}

// ParseRuns parses every run block in a report and returns one entry per
// block, failed or not.
func ParseRuns(r io.Reader) ([]ParsedRun, error) {
	blocks, err := SplitRuns(r)
	if err != nil {
		return nil, err
	}

	runs := make([]ParsedRun, 0, len(blocks))

	for i, block := range blocks {
		rec, err := ParseLines(block)
		runs = append(runs, ParsedRun{Index: i, Record: rec, Err: err})
	}

	return runs, nil
}

// ParseAll parses every run in a report. A malformed run does not prevent
// its siblings from being returned; the failures are joined into the
// returned error.
func ParseAll(r io.Reader) ([]*RunRecord, error) {
	runs, err := ParseRuns(r)
	if err != nil {
		return nil, err
	}

	records := make([]*RunRecord, 0, len(runs))

	var errs []error

	for _, run := range runs {
		if run.Err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", run.Index+1, run.Err))

			continue
		}

		records = append(records, run.Record)
	}

	return records, errors.Join(errs...)
}

// JobKey identifies a job geometry as "<nodes>-<ppn>".
func JobKey(rec *RunRecord) (string, bool) {
	if rec.InputSummary == nil {
		return "", false
	}

	return fmt.Sprintf("%d-%d", rec.InputSummary.Nodes, rec.InputSummary.PPN), true
}

// JobsTable maps job geometry to operation to mean throughput in MiB/s.
// Later records overwrite earlier ones for the same geometry and operation.
func JobsTable(records []*RunRecord) map[string]map[Operation]float64 {
	table := make(map[string]map[Operation]float64, len(records))

	for _, rec := range records {
		key, ok := JobKey(rec)
		if !ok {
			continue
		}

		for _, result := range rec.RunSummary {
			if result.Abbreviated {
				continue
			}

			if table[key] == nil {
				table[key] = make(map[Operation]float64, 2)
			}

			table[key][result.Operation] = result.AvgMiBs
		}
	}

	return table
}

// FileSystemName maps the first component of a benchmark path (for
// example "scratch1" in "/scratch1/user/test") through fsMap. When the
// component has no mapping it is returned unchanged with ok set to false.
func FileSystemName(path string, fsMap map[string]string) (string, bool) {
	trimmed := strings.Trim(path, "/")
	first, _, _ := strings.Cut(trimmed, "/")

	if name, ok := fsMap[first]; ok {
		return name, true
	}

	return first, false
}

// TelemetryFiles lists the per-day telemetry files covering a run. The
// template may reference {date} (YYYY-MM-DD) and {fs}.
func TelemetryFiles(rec *RunRecord, template string, fsMap map[string]string) ([]string, error) {
	if rec.Start == nil || rec.Stop == nil {
		return nil, ErrIncompleteRun
	}

	if rec.Path == "" {
		return nil, fmt.Errorf("%w: no path", ErrIncompleteRun)
	}

	fs, _ := FileSystemName(rec.Path, fsMap)

	day := truncateDay(*rec.Start)
	last := truncateDay(*rec.Stop)

	var files []string

	for !day.After(last) {
		files = append(files, strings.NewReplacer(
			"{date}", day.Format(time.DateOnly),
			"{fs}", fs,
		).Replace(template))

		day = day.AddDate(0, 0, 1)
	}

	return files, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
