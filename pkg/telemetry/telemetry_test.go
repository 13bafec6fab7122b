package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDump(t *testing.T, dir, name string, d any) string {
	t.Helper()

	data, err := json.Marshal(d)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func sampleDump(day string) map[string]any {
	return map[string]any{
		"day":            day,
		"fs_steps":       []float64{0, 5, 10},
		"ost_bulk_read":  [][]float64{{1 << 30, 0, 0}, {0, 1 << 30, 0}},
		"ost_bulk_write": [][]float64{{1 << 29, 1 << 29, 0}},
		"fs_missing":     [][]float64{{0, 1}, {0, 0}},
		"mds_op_names":   []string{"open", "close", "getattr", "rename", "unlink", "rmdir", "link", "mkdir"},
		"mds_ops": [][]float64{
			{1, 2}, {3, 4}, {5, 6}, {0, 1}, {1, 1}, {0, 0}, {2, 0}, {9, 9},
		},
	}
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestDumpExtractor_ReadWrite(t *testing.T) {
	path := writeDump(t, t.TempDir(), "day.json", sampleDump("2017-01-02"))

	ex := &DumpExtractor{Mode: ModeReadWrite}

	summary, err := ex.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "2017-01-02", summary.Date)
	assert.Equal(t, 2017, summary.Day.Year())
	assert.Equal(t, path, summary.Source)
	assert.InDelta(t, 10.0, summary.Metrics[MetricReadGiB], 1e-9)
	assert.InDelta(t, 5.0, summary.Metrics[MetricWriteGiB], 1e-9)
	assert.InDelta(t, 0.25, summary.Metrics[MetricMissingPct], 1e-9)
	assert.False(t, summary.IsZero())
}

func TestDumpExtractor_Metadata(t *testing.T) {
	path := writeDump(t, t.TempDir(), "day.json", sampleDump("2017-01-02"))

	ex := &DumpExtractor{Mode: ModeMetadata}

	summary, err := ex.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, summary.Metrics, len(MetadataMetrics))
	assert.InDelta(t, 15.0, summary.Metrics["open"], 1e-9)
	assert.InDelta(t, 35.0, summary.Metrics["close"], 1e-9)
	assert.InDelta(t, 10.0, summary.Metrics["link"], 1e-9)
	assert.NotContains(t, summary.Metrics, "mkdir")
}

func TestDumpExtractor_Errors(t *testing.T) {
	dir := t.TempDir()

	noSteps := sampleDump("2017-01-02")
	noSteps["fs_steps"] = []float64{0}

	noMissing := sampleDump("2017-01-02")
	delete(noMissing, "fs_missing")

	badDay := sampleDump("Jan 2")

	noOps := sampleDump("2017-01-02")
	noOps["mds_op_names"] = []string{"open"}

	tests := []struct {
		name string
		path string
		mode Mode
	}{
		{name: "missing file", path: filepath.Join(dir, "nope.json")},
		{name: "not json", path: func() string {
			p := filepath.Join(dir, "garbage.json")
			require.NoError(t, os.WriteFile(p, []byte("{"), 0o644))

			return p
		}()},
		{name: "single timestep", path: writeDump(t, dir, "steps.json", noSteps)},
		{name: "no missing dataset", path: writeDump(t, dir, "missing.json", noMissing)},
		{name: "bad day", path: writeDump(t, dir, "day.json", badDay)},
		{name: "missing metadata op", path: writeDump(t, dir, "ops.json", noOps), mode: ModeMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &DumpExtractor{Mode: tt.mode}

			summary, err := ex.Extract(context.Background(), tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSourceUnreadable)
			assert.True(t, summary.IsZero())
		})
	}
}

type fakeExtractor struct {
	calls atomic.Int64
	fail  map[string]bool
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (DailySummary, error) {
	f.calls.Add(1)

	if f.fail[path] {
		return DailySummary{}, errors.New("boom")
	}

	return DailySummary{Date: path, Metrics: map[string]float64{"x": 1}}, nil
}

func TestCollect_OrderAndSentinels(t *testing.T) {
	paths := []string{"a", "b", "c", "d", "e"}
	ex := &fakeExtractor{fail: map[string]bool{"b": true, "d": true}}

	results := Collect(context.Background(), testLogger(), ex, paths, 2)

	require.Len(t, results, len(paths))
	assert.Equal(t, int64(len(paths)), ex.calls.Load())

	assert.Equal(t, "a", results[0].Date)
	assert.True(t, results[1].IsZero())
	assert.Equal(t, "c", results[2].Date)
	assert.True(t, results[3].IsZero())
	assert.Equal(t, "e", results[4].Date)
}

func TestCollect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &fakeExtractor{}
	results := Collect(ctx, testLogger(), ex, []string{"a", "b"}, 1)

	require.Len(t, results, 2)
	assert.True(t, results[0].IsZero())
	assert.True(t, results[1].IsZero())
	assert.Equal(t, int64(0), ex.calls.Load())
}

func TestDefaultWorkers(t *testing.T) {
	assert.Positive(t, DefaultWorkers())
}

func TestModeMetrics(t *testing.T) {
	assert.Equal(t, ReadWriteMetrics, ModeReadWrite.Metrics())
	assert.Equal(t, MetadataMetrics, ModeMetadata.Metrics())
}
