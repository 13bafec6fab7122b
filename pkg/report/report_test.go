package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/atgtools/iorstat/pkg/aggregate"
	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/atgtools/iorstat/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult(t *testing.T) *aggregate.Result {
	t.Helper()

	day := func(s string) time.Time {
		d, err := time.Parse(time.DateOnly, s)
		require.NoError(t, err)

		return d
	}

	records := []telemetry.DailySummary{
		{Date: "2017-01-02", Day: day("2017-01-02"), Metrics: map[string]float64{
			"read_gibs": 1.5, "write_gibs": 2.25, "missing_pct": 0.1,
		}},
		{Date: "2017-01-01", Day: day("2017-01-01"), Metrics: map[string]float64{
			"read_gibs": 10, "write_gibs": 20, "missing_pct": 0,
		}},
	}

	return aggregate.New(aggregate.Day, telemetry.ReadWriteMetrics).Aggregate(records)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteTable(&buf, sampleResult(t), telemetry.HeaderLabels, false))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "      Date     GiB Read    GiB Write    % Missing", lines[0])
	assert.Equal(t, "2017-01-01        10.00        20.00         0.00", lines[1])
	assert.Equal(t, "2017-01-02         1.50         2.25         0.10", lines[2])
}

func TestWriteTable_Summary(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteTable(&buf, sampleResult(t), nil, true))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "      date    read_gibs   write_gibs  missing_pct", lines[0])
	assert.Empty(t, lines[3])
	assert.Equal(t, "   summary        11.50        22.25         0.10", lines[4])
}

func sampleRecords() []*ior.RunRecord {
	start := time.Date(2017, time.January, 2, 3, 4, 5, 0, time.UTC)
	stop := start.Add(95 * time.Second)

	return []*ior.RunRecord{
		{
			Start: &start,
			Stop:  &stop,
			Path:  "/scratch1/test",
			FileSystem: &ior.FileSystemSnapshot{
				ApproxTotalBytes:   1 << 40,
				ApproxUsedBytesPct: 45.2,
			},
			InputSummary: &ior.InputSummary{
				API: "POSIX", Clients: 4, PPN: 2, Nodes: 2, XferSize: 1 << 20,
			},
			RunSummary: []ior.TestResult{
				{
					Operation: ior.OpWrite, MaxMiBs: 500, MinMiBs: 450, AvgMiBs: 475,
					StdDevMiBs: 10, MeanTime: 1, NumTasks: 4, TransferSize: 1 << 20,
					BlockSize: 1 << 30, API: "POSIX",
				},
			},
		},
		{
			RunSummary: []ior.TestResult{
				{Operation: ior.OpRead, MaxMiBs: 900.5, Abbreviated: true},
			},
		},
	}
}

func TestWriteRunsTable(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteRunsTable(&buf, sampleRecords()))

	out := buf.String()
	assert.Contains(t, out, "2-2")
	assert.Contains(t, out, "1MiB")
	assert.Contains(t, out, "1GiB")
	assert.Contains(t, out, "900.50")
	assert.Len(t, strings.Split(strings.TrimRight(out, "\n"), "\n"), 3)
}

func TestRunsMarkdown(t *testing.T) {
	md := RunsMarkdown("IOR runs", sampleRecords())

	assert.True(t, strings.HasPrefix(md, "# IOR runs\n\n"))
	assert.Contains(t, md, "| 2-2 | 475.00 | - |")
	assert.Contains(t, md, "## Run 1")
	assert.Contains(t, md, "| Status | complete |")
	assert.Contains(t, md, "| Duration | 1m 35s |")
	assert.Contains(t, md, "| Nodes x PPN | 2 x 2 |")
	assert.Contains(t, md, "### File System")
	assert.Contains(t, md, "## Run 2")
	assert.Contains(t, md, "| Status | incomplete |")
	assert.Contains(t, md, "| read | 900.50 | - | - | - | - |")
}

func TestRunsMarkdown_NoResults(t *testing.T) {
	md := RunsMarkdown("empty", []*ior.RunRecord{{}})

	assert.Contains(t, md, "*No results recorded.*")
	assert.NotContains(t, md, "## Jobs")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSON(&buf, sampleResult(t).Buckets))

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2017-01-02", decoded["2017-01-02"]["date"])
	assert.InDelta(t, 1.0, decoded["2017-01-02"]["n"], 1e-9)
	assert.InDelta(t, 1.5, decoded["2017-01-02"]["read_gibs"], 1e-9)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteYAML(&buf, sampleRecords()[0].InputSummary))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "POSIX", decoded["api"])
	assert.Equal(t, 2, decoded["nodes"])
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "json", "yaml", "markdown"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "sub-second", duration: 500 * time.Millisecond, expected: "500ms"},
		{name: "seconds only", duration: 45 * time.Second, expected: "45s"},
		{name: "minutes and seconds", duration: 10*time.Minute + 8*time.Second, expected: "10m 8s"},
		{name: "hours", duration: 2*time.Hour + 30*time.Minute + 15*time.Second, expected: "2h 30m 15s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}
