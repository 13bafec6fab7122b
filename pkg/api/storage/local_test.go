package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atgtools/iorstat/pkg/api/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocalReader_DiscoveryPaths(t *testing.T) {
	t.Parallel()

	reader := storage.NewLocalReader(map[string]string{
		"edison": t.TempDir(),
		"cori":   t.TempDir(),
		"mira":   t.TempDir(),
	}, "*.out")

	assert.Equal(t, []string{"cori", "edison", "mira"}, reader.DiscoveryPaths())
}

func TestLocalReader_ListReports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("matches pattern recursively", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "2017-01", "ior-a.out"), "a")
		writeFile(t, filepath.Join(dir, "2017-01", "ior-a.err"), "skip")
		writeFile(t, filepath.Join(dir, "ior-b.out"), "b")

		reader := storage.NewLocalReader(map[string]string{"dp": dir}, "*.out")

		names, err := reader.ListReports(ctx, "dp")
		require.NoError(t, err)
		assert.Equal(t, []string{"2017-01/ior-a.out", "ior-b.out"}, names)
	})

	t.Run("empty pattern matches everything", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "x.log"), "x")
		writeFile(t, filepath.Join(dir, "y.out"), "y")

		reader := storage.NewLocalReader(map[string]string{"dp": dir}, "")

		names, err := reader.ListReports(ctx, "dp")
		require.NoError(t, err)
		assert.Equal(t, []string{"x.log", "y.out"}, names)
	})

	t.Run("missing directory returns nil", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "absent")

		reader := storage.NewLocalReader(map[string]string{"dp": dir}, "*.out")

		names, err := reader.ListReports(ctx, "dp")
		require.NoError(t, err)
		assert.Nil(t, names)
	})
}

func TestLocalReader_GetReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "ior.out"), "Run began: x\n")

	reader := storage.NewLocalReader(map[string]string{"dp": dir}, "*.out")

	t.Run("reads existing report", func(t *testing.T) {
		t.Parallel()

		data, err := reader.GetReport(ctx, "dp", "sub/ior.out")
		require.NoError(t, err)
		assert.Equal(t, []byte("Run began: x\n"), data)
	})

	t.Run("missing report returns nil nil", func(t *testing.T) {
		t.Parallel()

		data, err := reader.GetReport(ctx, "dp", "sub/none.out")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("rejects names outside the directory", func(t *testing.T) {
		t.Parallel()

		data, err := reader.GetReport(ctx, "dp", "../etc/passwd")
		assert.Nil(t, data)
		assert.ErrorContains(t, err, "escapes discovery path")
	})
}

func TestLocalReader_UnknownDiscoveryPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	reader := storage.NewLocalReader(map[string]string{"known": t.TempDir()}, "*.out")

	t.Run("ListReports", func(t *testing.T) {
		t.Parallel()

		names, err := reader.ListReports(ctx, "unknown")
		assert.Nil(t, names)
		assert.ErrorContains(t, err, "unknown discovery path")
	})

	t.Run("GetReport", func(t *testing.T) {
		t.Parallel()

		data, err := reader.GetReport(ctx, "unknown", "ior.out")
		assert.Nil(t, data)
		assert.ErrorContains(t, err, "unknown discovery path")
	})
}
