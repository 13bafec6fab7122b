package ior

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBlock(began, finished string, clients, ppn int, avg string) string {
	row := strings.Replace(writeRow, "475.00", avg, 1)

	block := "Run began: " + began + "\n" +
		"Path: /scratch2/user/ior\n" +
		"Summary:\n" +
		"clients = " + strconv.Itoa(clients) + " (" + strconv.Itoa(ppn) + " per node)\n" +
		"\n" +
		"Summary of all tests:\n" +
		row + "\n"

	if finished != "" {
		block += "Run finished: " + finished + "\n"
	}

	return block
}

func TestSplitRuns(t *testing.T) {
	report := "preamble line\n" +
		runBlock("Mon Jan  2 03:04:05 2017", "Mon Jan  2 03:05:00 2017", 4, 2, "475.00") +
		"noise between runs\n" +
		runBlock("Mon Jan  2 04:00:00 2017", "", 8, 4, "300.00")

	blocks, err := SplitRuns(strings.NewReader(report))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.True(t, strings.HasPrefix(blocks[0][0], "Run began"))
	assert.True(t, strings.HasPrefix(blocks[0][len(blocks[0])-1], "Run finished"))
	assert.NotContains(t, blocks[0], "noise between runs")
	assert.True(t, strings.HasPrefix(blocks[1][0], "Run began"))
}

func TestSplitRuns_NoMarkers(t *testing.T) {
	blocks, err := SplitRuns(strings.NewReader("Max Write: 1.00 MiB/sec\n"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"Max Write: 1.00 MiB/sec"}, blocks[0])

	blocks, err = SplitRuns(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestParseAll(t *testing.T) {
	report := runBlock("Mon Jan  2 03:04:05 2017", "Mon Jan  2 03:05:00 2017", 4, 2, "475.00") +
		"Run began: Mon Jan  2 03:10:00 2017\nSummary:\nbroken line\n" +
		runBlock("Mon Jan  2 04:00:00 2017", "", 8, 4, "300.00")

	records, err := ParseAll(strings.NewReader(report))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedSection)
	assert.Contains(t, err.Error(), "run 2")

	require.Len(t, records, 2)
	assert.True(t, records[0].Complete())
	assert.Equal(t, 2, records[0].InputSummary.Nodes)
	assert.False(t, records[1].Complete())
	assert.Equal(t, 2, records[1].InputSummary.Nodes)
	assert.Equal(t, 300.0, records[1].RunSummary[0].AvgMiBs)
}

func TestParseRuns_KeepsBlockIndex(t *testing.T) {
	report := runBlock("Mon Jan  2 03:04:05 2017", "Mon Jan  2 03:05:00 2017", 4, 2, "475.00") +
		"Run began: Mon Jan  2 03:10:00 2017\nSummary of all tests:\nwrite     500.00   45\n" +
		runBlock("Mon Jan  2 04:00:00 2017", "Mon Jan  2 04:05:00 2017", 8, 4, "300.00")

	runs, err := ParseRuns(strings.NewReader(report))
	require.NoError(t, err)
	require.Len(t, runs, 3)

	for i, run := range runs {
		assert.Equal(t, i, run.Index)
	}

	require.NoError(t, runs[0].Err)
	assert.ErrorIs(t, runs[1].Err, ErrMalformedSection)
	assert.Nil(t, runs[1].Record)
	require.NoError(t, runs[2].Err)
	assert.Equal(t, 300.0, runs[2].Record.RunSummary[0].AvgMiBs)
}

func TestJobsTable(t *testing.T) {
	records := []*RunRecord{
		{
			InputSummary: &InputSummary{Nodes: 2, PPN: 2},
			RunSummary: []TestResult{
				{Operation: OpWrite, AvgMiBs: 100},
				{Operation: OpRead, AvgMiBs: 200},
			},
		},
		{
			InputSummary: &InputSummary{Nodes: 2, PPN: 2},
			RunSummary: []TestResult{
				{Operation: OpWrite, AvgMiBs: 150},
				{Operation: OpRead, MaxMiBs: 999, Abbreviated: true},
			},
		},
		{
			InputSummary: &InputSummary{Nodes: 4, PPN: 8},
			RunSummary:   []TestResult{{Operation: OpRead, AvgMiBs: 50}},
		},
		{
			RunSummary: []TestResult{{Operation: OpRead, AvgMiBs: 1}},
		},
	}

	got := JobsTable(records)

	assert.Equal(t, map[string]map[Operation]float64{
		"2-2": {OpWrite: 150, OpRead: 200},
		"4-8": {OpRead: 50},
	}, got)
}

func TestFileSystemName(t *testing.T) {
	fsMap := map[string]string{"scratch1": "edison_snx11025"}

	name, ok := FileSystemName("/scratch1/user/test", fsMap)
	assert.True(t, ok)
	assert.Equal(t, "edison_snx11025", name)

	name, ok = FileSystemName("/global/cscratch1/x", fsMap)
	assert.False(t, ok)
	assert.Equal(t, "global", name)
}

func TestTelemetryFiles(t *testing.T) {
	start := time.Date(2017, time.January, 30, 23, 0, 0, 0, time.UTC)
	stop := time.Date(2017, time.February, 1, 1, 0, 0, 0, time.UTC)

	rec := &RunRecord{Start: &start, Stop: &stop, Path: "/scratch1/test"}

	files, err := TelemetryFiles(rec, "/daily/{date}/{fs}.h5lmt", map[string]string{
		"scratch1": "edison_snx11025",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/daily/2017-01-30/edison_snx11025.h5lmt",
		"/daily/2017-01-31/edison_snx11025.h5lmt",
		"/daily/2017-02-01/edison_snx11025.h5lmt",
	}, files)

	_, err = TelemetryFiles(&RunRecord{Start: &start}, "{date}", nil)
	assert.ErrorIs(t, err, ErrIncompleteRun)
}
