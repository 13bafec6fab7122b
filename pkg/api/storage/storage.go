// Package storage reads IOR reports from the locations the indexer scans.
package storage

import "context"

// Reader provides read access to IOR reports stored in a backend (local
// filesystem or S3). It is used by the indexer to discover and read
// reports without knowing the underlying storage details.
type Reader interface {
	// ListReports returns the slash-separated names, relative to the
	// discovery path, of every report matching the configured pattern.
	ListReports(ctx context.Context, discoveryPath string) ([]string, error)

	// GetReport reads one report.
	// Returns (nil, nil) when the report does not exist.
	GetReport(ctx context.Context, discoveryPath, name string) ([]byte, error)

	// DiscoveryPaths returns all configured discovery paths.
	DiscoveryPaths() []string
}
