package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atgtools/iorstat/pkg/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

const (
	defaultPrefix = "iorstat"
	manifestName  = "manifest.json"
)

// s3Uploader implements Uploader for S3-compatible storage.
type s3Uploader struct {
	log     logrus.FieldLogger
	cfg     *config.S3UploadConfig
	client  *s3.Client
	timeout time.Duration
}

// Ensure interface compliance.
var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates a new S3 uploader from the given configuration.
func NewS3Uploader(
	log logrus.FieldLogger,
	cfg *config.S3UploadConfig,
) (Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var timeout time.Duration

	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing upload timeout: %w", err)
		}

		timeout = d
	}

	return &s3Uploader{
		log:     log.WithField("component", "s3-uploader"),
		cfg:     cfg,
		client:  newS3Client(cfg),
		timeout: timeout,
	}, nil
}

// Preflight verifies S3 connectivity by writing a small test object.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("iorstat write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(u.rootPrefix() + "/.iorstat-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.cfg.Bucket, err)
	}

	return nil
}

// manifest lists the objects written by one Upload call.
type manifest struct {
	UploadedAt time.Time `json:"uploaded_at"`
	Source     string    `json:"source"`
	Keys       []string  `json:"keys"`
}

// Upload walks localDir and uploads all files to S3 under the configured
// prefix, followed by a manifest listing them.
func (u *s3Uploader) Upload(ctx context.Context, localDir string) ([]string, error) {
	baseName := filepath.Base(localDir)
	prefix := u.resolvePrefix(baseName)

	var keys []string

	err := filepath.WalkDir(localDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		key := prefix + "/" + filepath.ToSlash(relPath)

		if err := u.uploadFile(ctx, path, key); err != nil {
			return fmt.Errorf("uploading %s: %w", relPath, err)
		}

		keys = append(keys, key)

		return nil
	})
	if err != nil {
		return keys, fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	data, err := json.MarshalIndent(manifest{
		UploadedAt: time.Now().UTC(),
		Source:     baseName,
		Keys:       keys,
	}, "", "  ")
	if err != nil {
		return keys, fmt.Errorf("encoding manifest: %w", err)
	}

	if err := u.put(ctx, prefix+"/"+manifestName, bytes.NewReader(data), "application/json"); err != nil {
		return keys, fmt.Errorf("uploading manifest: %w", err)
	}

	u.log.WithFields(logrus.Fields{
		"files":  len(keys),
		"bucket": u.cfg.Bucket,
		"prefix": prefix,
	}).Info("Upload completed")

	return keys, nil
}

// UploadFile uploads a single report to {prefix}/reports/{basename}.
func (u *s3Uploader) UploadFile(ctx context.Context, localPath string) (string, error) {
	key := u.rootPrefix() + "/reports/" + filepath.Base(localPath)

	if err := u.uploadFile(ctx, localPath, key); err != nil {
		return "", fmt.Errorf("uploading %s: %w", localPath, err)
	}

	u.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": u.cfg.Bucket,
	}).Info("Report uploaded")

	return key, nil
}

// uploadFile uploads a single file to S3.
func (u *s3Uploader) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath) //nolint:gosec // paths come from the command line
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	u.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": u.cfg.Bucket,
	}).Debug("Uploading file")

	return u.put(ctx, key, f, detectContentType(localPath))
}

func (u *s3Uploader) put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}

	if u.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.cfg.StorageClass)
	}

	if u.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.cfg.ACL)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

func (u *s3Uploader) rootPrefix() string {
	prefix := strings.TrimRight(u.cfg.Prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}

	return prefix
}

// resolvePrefix builds the S3 key prefix for an output directory.
func (u *s3Uploader) resolvePrefix(baseName string) string {
	return u.rootPrefix() + "/results/" + baseName
}

// detectContentType returns a MIME type based on file extension. IOR
// reports (.out, .log) are plain text.
func detectContentType(path string) string {
	ext := filepath.Ext(path)

	switch ext {
	case "":
		return "application/octet-stream"
	case ".out", ".log":
		return "text/plain; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
