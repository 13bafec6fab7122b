package store

import "time"

// Run is one parsed IOR run. Runs are keyed by the report they came from
// and their position within it.
type Run struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Source     string `gorm:"not null;uniqueIndex:idx_runs_source_index" json:"source"`
	RunIndex   int    `gorm:"not null;uniqueIndex:idx_runs_source_index" json:"run_index"`
	Start      int64  `json:"start,omitempty"`
	Stop       int64  `json:"stop,omitempty"`
	Complete   bool   `json:"complete"`
	Path       string `json:"path,omitempty"`
	FileSystem string `gorm:"index" json:"file_system,omitempty"`

	// ParseError is set on placeholders for run blocks that failed to
	// parse. Such runs have no results and count as incomplete.
	ParseError string `gorm:"type:text;not null;default:''" json:"parse_error,omitempty"`

	// Denormalized input summary fields.
	JobKey  string `gorm:"index" json:"job_key,omitempty"`
	Clients int    `json:"clients"`
	Nodes   int    `json:"nodes"`
	PPN     int    `json:"ppn"`
	API     string `json:"api,omitempty"`

	// Full input summary serialized as JSON.
	InputSummaryJSON string `gorm:"type:text" json:"-"`

	IndexedAt time.Time `json:"indexed_at"`
}

// Result is one row of a run's results table.
type Result struct {
	ID            uint    `gorm:"primaryKey" json:"-"`
	RunID         uint    `gorm:"not null;index" json:"run_id"`
	Seq           int     `json:"seq"`
	Operation     string  `gorm:"index" json:"operation"`
	MaxMiBs       float64 `gorm:"column:max_mibs" json:"max_mibs"`
	MinMiBs       float64 `gorm:"column:min_mibs" json:"min_mibs"`
	AvgMiBs       float64 `gorm:"column:avg_mibs" json:"avg_mibs"`
	StdDevMiBs    float64 `gorm:"column:stdev_mibs" json:"stdev_mibs"`
	MeanTime      float64 `json:"mean_time_s"`
	NumTasks      int     `json:"num_tasks"`
	BlockSize     float64 `json:"block_size"`
	TransferSize  float64 `json:"transfer_size"`
	AggregateSize float64 `json:"aggregate_size"`
	Abbreviated   bool    `json:"abbreviated,omitempty"`
}

// JobSummary is the mean throughput of one operation across every stored
// run sharing a job geometry.
type JobSummary struct {
	JobKey    string  `gorm:"column:job_key" json:"job_key"`
	Operation string  `gorm:"column:operation" json:"operation"`
	Samples   int64   `gorm:"column:samples" json:"samples"`
	MeanMiBs  float64 `gorm:"column:mean_mibs" json:"mean_mibs"`
	BestMiBs  float64 `gorm:"column:best_mibs" json:"best_mibs"`
}
