package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/atgtools/iorstat/pkg/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// S3Reader reads objects from S3-compatible storage.
type S3Reader struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client *s3.Client
}

// NewS3Reader creates a new S3Reader from the given configuration.
func NewS3Reader(
	log logrus.FieldLogger,
	cfg *config.S3UploadConfig,
) *S3Reader {
	return &S3Reader{
		log:    log.WithField("component", "s3-reader"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

// ListKeys lists every key under prefix whose base name matches pattern.
// An empty pattern matches everything.
func (r *S3Reader) ListKeys(
	ctx context.Context, prefix, pattern string,
) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing keys under %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}

			ok, err := matchBase(pattern, *obj.Key)
			if err != nil {
				return nil, err
			}

			if ok {
				keys = append(keys, *obj.Key)
			}
		}
	}

	r.log.WithFields(logrus.Fields{
		"prefix": prefix,
		"keys":   len(keys),
	}).Debug("Listed keys")

	return keys, nil
}

func matchBase(pattern, key string) (bool, error) {
	if pattern == "" {
		return true, nil
	}

	ok, err := path.Match(pattern, path.Base(key))
	if err != nil {
		return false, fmt.Errorf("matching %q: %w", pattern, err)
	}

	return ok, nil
}

// GetObject returns the contents of the given key.
// If the key does not exist, it returns (nil, nil).
func (r *S3Reader) GetObject(
	ctx context.Context, key string,
) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

// isS3NotFound returns true if the error indicates the object does not exist.
func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	// Some S3-compatible implementations return a generic error with
	// "NoSuchKey" in the message rather than the typed error.
	return strings.Contains(err.Error(), "NoSuchKey")
}
