// Package upload publishes generated reports to S3-compatible storage.
package upload

import "context"

// Uploader uploads generated reports to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload uploads all files in localDir. The directory basename is
	// used as a sub-prefix under the configured remote prefix. It returns
	// the uploaded keys.
	Upload(ctx context.Context, localDir string) ([]string, error)

	// UploadFile uploads a single file under prefix + "/reports/".
	UploadFile(ctx context.Context, localPath string) (string, error)
}
