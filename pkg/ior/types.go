package ior

import "time"

// Operation is the I/O direction of a single test result.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// RunRecord is everything recovered from one IOR invocation's stdout.
type RunRecord struct {
	Start        *time.Time          `json:"start,omitempty" yaml:"start,omitempty"`
	Stop         *time.Time          `json:"stop,omitempty" yaml:"stop,omitempty"`
	Path         string              `json:"path,omitempty" yaml:"path,omitempty"`
	FileSystem   *FileSystemSnapshot `json:"file_system,omitempty" yaml:"file_system,omitempty"`
	InputSummary *InputSummary       `json:"input_summary,omitempty" yaml:"input_summary,omitempty"`
	RunSummary   []TestResult        `json:"run_summary" yaml:"run_summary"`
}

// Complete reports whether the "Run finished" line was seen. Records from
// truncated reports have no stop time and may be missing results.
func (r *RunRecord) Complete() bool {
	return r.Stop != nil
}

// FileSystemSnapshot is the capacity line IOR prints for the target file
// system. Values are approximate because IOR rounds them for display.
type FileSystemSnapshot struct {
	ApproxTotalBytes    int64   `json:"approx_total_bytes" yaml:"approx_total_bytes"`
	ApproxUsedBytesPct  float64 `json:"approx_used_bytes_pct" yaml:"approx_used_bytes_pct"`
	ApproxTotalInodes   int64   `json:"approx_total_inodes" yaml:"approx_total_inodes"`
	ApproxUsedInodesPct float64 `json:"approx_used_inodes_pct" yaml:"approx_used_inodes_pct"`
}

// InputSummary is the benchmark configuration echoed in the "Summary:"
// section. Sizes are in bytes.
type InputSummary struct {
	API               string  `json:"api,omitempty" yaml:"api,omitempty" mapstructure:"api"`
	TestFileName      string  `json:"test_filename,omitempty" yaml:"test_filename,omitempty" mapstructure:"test_filename"`
	Access            string  `json:"access,omitempty" yaml:"access,omitempty" mapstructure:"access"`
	OrderingInAFile   string  `json:"ordering_in_a_file,omitempty" yaml:"ordering_in_a_file,omitempty" mapstructure:"ordering_in_a_file"`
	OrderingInterFile string  `json:"ordering_inter_file,omitempty" yaml:"ordering_inter_file,omitempty" mapstructure:"ordering_inter_file"`
	Clients           int     `json:"clients" yaml:"clients" mapstructure:"clients"`
	PPN               int     `json:"ppn" yaml:"ppn" mapstructure:"ppn"`
	Nodes             int     `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Pattern           string  `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
	Segments          int     `json:"segments,omitempty" yaml:"segments,omitempty" mapstructure:"segments"`
	Repetitions       int     `json:"repetitions" yaml:"repetitions" mapstructure:"repetitions"`
	XferSize          float64 `json:"xfersize,omitempty" yaml:"xfersize,omitempty" mapstructure:"xfersize"`
	BlockSize         float64 `json:"blocksize,omitempty" yaml:"blocksize,omitempty" mapstructure:"blocksize"`
	AggregateFileSize float64 `json:"aggregate_filesize,omitempty" yaml:"aggregate_filesize,omitempty" mapstructure:"aggregate_filesize"`

	// Extra holds summary keys without a dedicated field.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:",remain"`
}

// TestResult is one row of the "Summary of all tests:" table. Throughput
// is in MiB/s and sizes are in bytes.
type TestResult struct {
	Operation         Operation `json:"operation" yaml:"operation"`
	MaxMiBs           float64   `json:"max_mibs" yaml:"max_mibs"`
	MinMiBs           float64   `json:"min_mibs" yaml:"min_mibs"`
	AvgMiBs           float64   `json:"avg_mibs" yaml:"avg_mibs"`
	StdDevMiBs        float64   `json:"stdev_mibs" yaml:"stdev_mibs"`
	MeanTime          float64   `json:"mean_time_s" yaml:"mean_time_s"`
	TestNum           int       `json:"test_num" yaml:"test_num"`
	NumTasks          int       `json:"num_tasks" yaml:"num_tasks"`
	PPN               int       `json:"ppn" yaml:"ppn"`
	Repetitions       int       `json:"repetitions" yaml:"repetitions"`
	FilePerProc       bool      `json:"file_per_proc" yaml:"file_per_proc"`
	ReorderTasks      bool      `json:"reorder_tasks" yaml:"reorder_tasks"`
	TaskPerNodeOffset int       `json:"task_per_node_offset" yaml:"task_per_node_offset"`
	ReorderRandom     bool      `json:"reorder_random" yaml:"reorder_random"`
	ReorderRandomSeed int       `json:"reorder_random_seed" yaml:"reorder_random_seed"`
	SegmentCount      int       `json:"segment_count" yaml:"segment_count"`
	BlockSize         float64   `json:"block_size" yaml:"block_size"`
	TransferSize      float64   `json:"transfer_size" yaml:"transfer_size"`
	AggregateSize     float64   `json:"aggregate_size" yaml:"aggregate_size"`
	API               string    `json:"api" yaml:"api"`
	RefNum            int       `json:"ref_num" yaml:"ref_num"`

	// Abbreviated is set for results taken from "Max Write:"/"Max Read:"
	// lines, which only carry the operation and maximum throughput.
	Abbreviated bool `json:"abbreviated,omitempty" yaml:"abbreviated,omitempty"`
}
