package main

import (
	"fmt"
	"os"

	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/sirupsen/logrus"
)

// parsedReport is every run recovered from one report file.
type parsedReport struct {
	File string           `json:"file" yaml:"file"`
	Runs []*ior.RunRecord `json:"runs" yaml:"runs"`
}

// parseReports parses each path in turn. Files that fail entirely are
// dropped; files with some malformed runs keep the good ones. Both are
// logged and counted in failed.
func parseReports(log logrus.FieldLogger, paths []string) ([]parsedReport, int) {
	reports := make([]parsedReport, 0, len(paths))
	failed := 0

	for _, path := range paths {
		records, err := parseReportFile(path)
		if err != nil {
			failed++

			log.WithError(err).WithField("file", path).Warn("Failed to parse report")
		}

		if len(records) == 0 {
			continue
		}

		reports = append(reports, parsedReport{File: path, Runs: records})
	}

	return reports, failed
}

func parseReportFile(path string) ([]*ior.RunRecord, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the command line
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ior.ParseAll(f)
}

// allRuns flattens reports into one slice of runs.
func allRuns(reports []parsedReport) []*ior.RunRecord {
	var runs []*ior.RunRecord

	for _, r := range reports {
		runs = append(runs, r.Runs...)
	}

	return runs
}

func failedErr(failed, total int) error {
	if failed == 0 {
		return nil
	}

	return fmt.Errorf("%d of %d reports failed to parse", failed, total)
}
