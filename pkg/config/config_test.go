package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
aggregate:
  threads: 4
  reduce_on: week
ior:
  fs_map:
    scratch1: edison_snx11025
  telemetry_path_template: /daily/{date}/{fs}.json
database:
  driver: sqlite
  sqlite:
    path: /tmp/original.db
api:
  listen: ":8080"
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, 4, cfg.Aggregate.Threads)
				assert.Equal(t, "week", cfg.Aggregate.ReduceOn)
				assert.Equal(t, "edison_snx11025", cfg.IOR.FSMap["scratch1"])
				assert.Equal(t, "/tmp/original.db", cfg.Database.SQLite.Path)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"IORSTAT_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "integer override - aggregate.threads",
			envVars: map[string]string{
				"IORSTAT_AGGREGATE_THREADS": "16",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 16, cfg.Aggregate.Threads)
			},
		},
		{
			name: "boolean override - aggregate.metadata",
			envVars: map[string]string{
				"IORSTAT_AGGREGATE_METADATA": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Aggregate.Metadata)
			},
		},
		{
			name: "nested field override - database.sqlite.path",
			envVars: map[string]string{
				"IORSTAT_DATABASE_SQLITE_PATH": "/tmp/custom.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/custom.db", cfg.Database.SQLite.Path)
			},
		},
		{
			name: "key absent from file - upload.s3.bucket",
			envVars: map[string]string{
				"IORSTAT_UPLOAD_S3_BUCKET": "reports",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "reports", cfg.Upload.S3.Bucket)
			},
		},
		{
			name: "multiple overrides",
			envVars: map[string]string{
				"IORSTAT_GLOBAL_LOG_LEVEL":       "trace",
				"IORSTAT_API_LISTEN":             ":9999",
				"IORSTAT_API_RATE_LIMIT_ENABLED": "true",
				"IORSTAT_AGGREGATE_REDUCE_ON":    "month",
				"IORSTAT_DATABASE_POSTGRES_PORT": "6543",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "trace", cfg.Global.LogLevel)
				assert.Equal(t, ":9999", cfg.API.Listen)
				assert.True(t, cfg.API.RateLimit.Enabled)
				assert.Equal(t, "month", cfg.Aggregate.ReduceOn)
				assert.Equal(t, 6543, cfg.Database.Postgres.Port)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultReduceOn, cfg.Aggregate.ReduceOn)
	assert.Equal(t, DefaultWeekStart, cfg.Aggregate.WeekStart)
	assert.Equal(t, 0, cfg.Aggregate.Threads)
	assert.Equal(t, DefaultTelemetryPathTemplate, cfg.IOR.TelemetryPathTemplate)
	assert.Equal(t, DefaultFSMap(), cfg.IOR.FSMap)
	assert.Equal(t, DefaultRateLimitIdleTTL.String(), cfg.API.RateLimit.IdleTTL)
	assert.Equal(t, DefaultDatabaseDriver, cfg.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Database.SQLite.Path)
	assert.Equal(t, DefaultPostgresPort, cfg.Database.Postgres.Port)
	assert.Equal(t, DefaultListen, cfg.API.Listen)
	assert.Equal(t, DefaultRequestsPerMinute, cfg.API.RateLimit.RequestsPerMinute)
	assert.Equal(t, DefaultIndexingInterval, cfg.API.Indexing.Interval)
	assert.Equal(t, DefaultIndexingConcurrency, cfg.API.Indexing.Concurrency)
	assert.Equal(t, DefaultReportPattern, cfg.API.Indexing.Pattern)
	assert.False(t, cfg.Upload.S3.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	base := writeConfig(t, `
aggregate:
  threads: 2
  reduce_on: month
api:
  listen: ":8080"
`)
	override := writeConfig(t, `
aggregate:
  threads: 12
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Aggregate.Threads)
	assert.Equal(t, "month", cfg.Aggregate.ReduceOn)
	assert.Equal(t, ":8080", cfg.API.Listen)
}

func TestLoad_EnvVarOverridesDefaults(t *testing.T) {
	t.Setenv("IORSTAT_AGGREGATE_WEEK_START", "sunday")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sunday", cfg.Aggregate.WeekStart)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: yaml: content:"))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   bool
		errSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:      "negative threads",
			mutate:    func(cfg *Config) { cfg.Aggregate.Threads = -1 },
			wantErr:   true,
			errSubstr: "aggregate.threads",
		},
		{
			name:      "unknown reduce_on",
			mutate:    func(cfg *Config) { cfg.Aggregate.ReduceOn = "fortnight" },
			wantErr:   true,
			errSubstr: "aggregate.reduce_on",
		},
		{
			name:      "unknown database driver",
			mutate:    func(cfg *Config) { cfg.Database.Driver = "mysql" },
			wantErr:   true,
			errSubstr: "database.driver",
		},
		{
			name: "postgres missing host",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "postgres"
				cfg.Database.Postgres.Database = "iorstat"
			},
			wantErr:   true,
			errSubstr: "database.postgres.host is required",
		},
		{
			name: "valid postgres",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "postgres"
				cfg.Database.Postgres.Host = "localhost"
				cfg.Database.Postgres.Database = "iorstat"
			},
		},
		{
			name: "s3 enabled without bucket",
			mutate: func(cfg *Config) {
				cfg.Upload.S3.Enabled = true
			},
			wantErr:   true,
			errSubstr: "upload.s3.bucket is required",
		},
		{
			name: "s3 half credentials",
			mutate: func(cfg *Config) {
				cfg.Upload.S3 = S3UploadConfig{Enabled: true, Bucket: "b", AccessKeyID: "id"}
			},
			wantErr:   true,
			errSubstr: "must be set together",
		},
		{
			name: "s3 bad timeout",
			mutate: func(cfg *Config) {
				cfg.Upload.S3 = S3UploadConfig{Enabled: true, Bucket: "b", Timeout: "soon"}
			},
			wantErr:   true,
			errSubstr: "upload.s3.timeout",
		},
		{
			name: "indexing without locations",
			mutate: func(cfg *Config) {
				cfg.API.Indexing.Enabled = true
			},
			wantErr:   true,
			errSubstr: "local_paths or s3_prefixes",
		},
		{
			name: "indexing bad interval",
			mutate: func(cfg *Config) {
				cfg.API.Indexing.Enabled = true
				cfg.API.Indexing.LocalPaths = map[string]string{"edison": "/data"}
				cfg.API.Indexing.Interval = "often"
			},
			wantErr:   true,
			errSubstr: "api.indexing.interval",
		},
		{
			name: "indexing s3 without bucket",
			mutate: func(cfg *Config) {
				cfg.API.Indexing.Enabled = true
				cfg.API.Indexing.S3Prefixes = []string{"reports"}
			},
			wantErr:   true,
			errSubstr: "requires upload.s3.bucket",
		},
		{
			name: "valid local indexing",
			mutate: func(cfg *Config) {
				cfg.API.Indexing.Enabled = true
				cfg.API.Indexing.LocalPaths = map[string]string{"edison": "/data"}
			},
		},
		{
			name:      "rate limit bad idle ttl",
			mutate:    func(cfg *Config) { cfg.API.RateLimit.IdleTTL = "forever" },
			wantErr:   true,
			errSubstr: "api.rate_limit.idle_ttl",
		},
		{
			name:      "rate limit negative burst",
			mutate:    func(cfg *Config) { cfg.API.RateLimit.Burst = -1 },
			wantErr:   true,
			errSubstr: "api.rate_limit.burst",
		},
		{
			name: "s3 disabled ignores missing bucket",
			mutate: func(cfg *Config) {
				cfg.Upload.S3 = S3UploadConfig{AccessKeyID: "id"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
