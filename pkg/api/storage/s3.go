package storage

import (
	"context"
	"slices"
	"strings"

	"github.com/atgtools/iorstat/pkg/upload"
)

// Compile-time interface check.
var _ Reader = (*s3Reader)(nil)

// objectReader is the subset of upload.S3Reader used here.
type objectReader interface {
	ListKeys(ctx context.Context, prefix, pattern string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

var _ objectReader = (*upload.S3Reader)(nil)

type s3Reader struct {
	objects        objectReader
	pattern        string
	discoveryPaths []string
}

// NewS3Reader creates a Reader backed by S3-compatible storage. Each
// prefix is a discovery path.
func NewS3Reader(objects *upload.S3Reader, prefixes []string, pattern string) Reader {
	return newS3Reader(objects, prefixes, pattern)
}

func newS3Reader(objects objectReader, prefixes []string, pattern string) *s3Reader {
	paths := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		paths = append(paths, strings.TrimRight(p, "/"))
	}

	slices.Sort(paths)

	return &s3Reader{
		objects:        objects,
		pattern:        pattern,
		discoveryPaths: paths,
	}
}

// DiscoveryPaths returns the configured S3 prefixes.
func (r *s3Reader) DiscoveryPaths() []string {
	return r.discoveryPaths
}

// ListReports lists matching keys under {dp}/ relative to the prefix.
func (r *s3Reader) ListReports(
	ctx context.Context, discoveryPath string,
) ([]string, error) {
	prefix := discoveryPath + "/"

	keys, err := r.objects.ListKeys(ctx, prefix, r.pattern)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, prefix))
	}

	slices.Sort(names)

	return names, nil
}

// GetReport reads {dp}/{name}. Returns (nil, nil) when the key does not
// exist.
func (r *s3Reader) GetReport(
	ctx context.Context, discoveryPath, name string,
) ([]byte, error) {
	return r.objects.GetObject(ctx, discoveryPath+"/"+name)
}
