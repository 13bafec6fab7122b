package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/atgtools/iorstat/pkg/ior"
)

// FromRecord converts a parsed run into its stored form. fsMap resolves
// the run path to a file system name.
func FromRecord(
	source string,
	index int,
	rec *ior.RunRecord,
	fsMap map[string]string,
) (*Run, []Result, error) {
	run := &Run{
		Source:    source,
		RunIndex:  index,
		Complete:  rec.Complete(),
		Path:      rec.Path,
		IndexedAt: time.Now().UTC(),
	}

	if rec.Start != nil {
		run.Start = rec.Start.Unix()
	}

	if rec.Stop != nil {
		run.Stop = rec.Stop.Unix()
	}

	if rec.Path != "" {
		run.FileSystem, _ = ior.FileSystemName(rec.Path, fsMap)
	}

	if s := rec.InputSummary; s != nil {
		run.JobKey, _ = ior.JobKey(rec)
		run.Clients = s.Clients
		run.Nodes = s.Nodes
		run.PPN = s.PPN
		run.API = s.API

		data, err := json.Marshal(s)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding input summary: %w", err)
		}

		run.InputSummaryJSON = string(data)
	}

	results := make([]Result, 0, len(rec.RunSummary))

	for i, r := range rec.RunSummary {
		results = append(results, Result{
			Seq:           i,
			Operation:     string(r.Operation),
			MaxMiBs:       r.MaxMiBs,
			MinMiBs:       r.MinMiBs,
			AvgMiBs:       r.AvgMiBs,
			StdDevMiBs:    r.StdDevMiBs,
			MeanTime:      r.MeanTime,
			NumTasks:      r.NumTasks,
			BlockSize:     r.BlockSize,
			TransferSize:  r.TransferSize,
			AggregateSize: r.AggregateSize,
			Abbreviated:   r.Abbreviated,
		})
	}

	return run, results, nil
}

// FailedRun is the placeholder stored for a run block that did not parse.
// It keeps the block's index occupied and marks the report incomplete so
// it is parsed again later.
func FailedRun(source string, index int, parseErr error) *Run {
	return &Run{
		Source:     source,
		RunIndex:   index,
		ParseError: parseErr.Error(),
		IndexedAt:  time.Now().UTC(),
	}
}

// InputSummary decodes the stored input summary, or returns nil when the
// run had none.
func (r *Run) InputSummary() (*ior.InputSummary, error) {
	if r.InputSummaryJSON == "" {
		return nil, nil //nolint:nilnil // absent summary is not an error
	}

	var s ior.InputSummary
	if err := json.Unmarshal([]byte(r.InputSummaryJSON), &s); err != nil {
		return nil, fmt.Errorf("decoding input summary: %w", err)
	}

	return &s, nil
}
