package telemetry

import "time"

// Metric names produced by the extractors.
const (
	MetricReadGiB    = "read_gibs"
	MetricWriteGiB   = "write_gibs"
	MetricMissingPct = "missing_pct"
)

var (
	// ReadWriteMetrics are the bulk data metrics of a daily summary.
	ReadWriteMetrics = []string{MetricReadGiB, MetricWriteGiB, MetricMissingPct}

	// MetadataMetrics are the metadata server operation counters.
	MetadataMetrics = []string{"open", "close", "getattr", "rename", "unlink", "rmdir", "link"}

	// NonAdditiveMetrics lose their meaning once summed across days.
	NonAdditiveMetrics = map[string]struct{}{
		MetricMissingPct: {},
	}

	// HeaderLabels are the column titles used when rendering metrics.
	HeaderLabels = map[string]string{
		"date":           "Date",
		MetricReadGiB:    "GiB Read",
		MetricWriteGiB:   "GiB Write",
		MetricMissingPct: "% Missing",
		"open":           "open",
		"close":          "close",
		"getattr":        "stat",
		"rename":         "rename",
		"unlink":         "unlink",
		"rmdir":          "rmdir",
		"link":           "link",
	}
)

// DailySummary is the reduction of one day of file system telemetry to a
// handful of scalars.
type DailySummary struct {
	Date    string             `json:"date"`
	Day     time.Time          `json:"-"`
	Metrics map[string]float64 `json:"metrics"`
	Source  string             `json:"source,omitempty"`
}

// IsZero reports whether s is the sentinel left behind by a failed
// extraction.
func (s DailySummary) IsZero() bool {
	return s.Date == "" && s.Day.IsZero() && len(s.Metrics) == 0
}
