package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

// bytesToGiB converts byte counts to GiB.
const bytesToGiB = 1.0 / (1 << 30)

// ErrSourceUnreadable marks a telemetry file that could not be reduced.
var ErrSourceUnreadable = errors.New("source unreadable")

// Mode selects which metrics an extractor produces.
type Mode int

const (
	ModeReadWrite Mode = iota
	ModeMetadata
)

// Metrics returns the metric names produced in this mode.
func (m Mode) Metrics() []string {
	if m == ModeMetadata {
		return MetadataMetrics
	}

	return ReadWriteMetrics
}

// Extractor reduces one telemetry file to a DailySummary.
type Extractor interface {
	Extract(ctx context.Context, path string) (DailySummary, error)
}

// dump is one day of LMT telemetry: a timestep vector plus per-OST and
// per-operation matrices indexed [row][timestep].
type dump struct {
	Day        string      `json:"day"`
	Steps      []float64   `json:"fs_steps"`
	OSTRead    [][]float64 `json:"ost_bulk_read"`
	OSTWrite   [][]float64 `json:"ost_bulk_write"`
	Missing    [][]float64 `json:"fs_missing"`
	MDSOps     [][]float64 `json:"mds_ops"`
	MDSOpNames []string    `json:"mds_op_names"`
}

// DumpExtractor reads JSON telemetry dumps.
type DumpExtractor struct {
	Mode Mode
}

// Ensure interface compliance.
var _ Extractor = (*DumpExtractor)(nil)

// Extract reads path and sums its datasets. Rates are converted to volumes
// with the interval between the first two timesteps.
func (e *DumpExtractor) Extract(ctx context.Context, path string) (DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return DailySummary{}, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // paths come from the command line
	if err != nil {
		return DailySummary{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	var d dump
	if err := json.Unmarshal(data, &d); err != nil {
		return DailySummary{}, fmt.Errorf("%w: decoding %s: %v", ErrSourceUnreadable, path, err)
	}

	if len(d.Steps) < 2 {
		return DailySummary{}, fmt.Errorf("%w: %s: need at least two timesteps", ErrSourceUnreadable, path)
	}

	day, err := time.Parse(time.DateOnly, d.Day)
	if err != nil {
		return DailySummary{}, fmt.Errorf("%w: %s: day %q: %v", ErrSourceUnreadable, path, d.Day, err)
	}

	timestep := d.Steps[1] - d.Steps[0]

	summary := DailySummary{
		Date:    d.Day,
		Day:     day,
		Metrics: make(map[string]float64, len(e.Mode.Metrics())),
		Source:  path,
	}

	switch e.Mode {
	case ModeMetadata:
		if err := d.reduceMetadata(summary.Metrics, timestep); err != nil {
			return DailySummary{}, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
		}
	default:
		if err := d.reduceReadWrite(summary.Metrics, timestep); err != nil {
			return DailySummary{}, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
		}
	}

	return summary, nil
}

func (d *dump) reduceReadWrite(out map[string]float64, timestep float64) error {
	if d.OSTRead == nil {
		return errors.New("missing ost_bulk_read")
	}

	if d.OSTWrite == nil {
		return errors.New("missing ost_bulk_write")
	}

	cells := countCells(d.Missing)
	if cells == 0 {
		return errors.New("missing fs_missing")
	}

	out[MetricReadGiB] = sumMatrix(d.OSTRead) * timestep * bytesToGiB
	out[MetricWriteGiB] = sumMatrix(d.OSTWrite) * timestep * bytesToGiB
	out[MetricMissingPct] = sumMatrix(d.Missing) / float64(cells)

	return nil
}

func (d *dump) reduceMetadata(out map[string]float64, timestep float64) error {
	for _, op := range MetadataMetrics {
		idx := slices.Index(d.MDSOpNames, op)
		if idx < 0 || idx >= len(d.MDSOps) {
			return fmt.Errorf("missing metadata op %q", op)
		}

		var total float64
		for _, v := range d.MDSOps[idx] {
			total += v
		}

		out[op] = total * timestep
	}

	return nil
}

func sumMatrix(m [][]float64) float64 {
	var total float64

	for _, row := range m {
		for _, v := range row {
			total += v
		}
	}

	return total
}

// countCells returns rows*cols using the first row's width.
func countCells(m [][]float64) int {
	if len(m) == 0 {
		return 0
	}

	return len(m) * len(m[0])
}
