package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects map[string][]byte
	prefix  string
}

func (f *fakeObjects) ListKeys(_ context.Context, prefix, _ string) ([]string, error) {
	f.prefix = prefix

	var keys []string

	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

func (f *fakeObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	return f.objects[key], nil
}

func TestS3Reader(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{
		"reports/edison/b.out": []byte("b"),
		"reports/edison/a.out": []byte("a"),
		"reports/cori/c.out":   []byte("c"),
	}}

	r := newS3Reader(objects, []string{"reports/edison/", "reports/cori"}, "*.out")

	assert.Equal(t, []string{"reports/cori", "reports/edison"}, r.DiscoveryPaths())

	names, err := r.ListReports(context.Background(), "reports/edison")
	require.NoError(t, err)
	assert.Equal(t, "reports/edison/", objects.prefix)
	assert.Equal(t, []string{"a.out", "b.out"}, names)

	data, err := r.GetReport(context.Background(), "reports/edison", "a.out")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)

	data, err = r.GetReport(context.Background(), "reports/edison", "zzz.out")
	require.NoError(t, err)
	assert.Nil(t, data)
}
