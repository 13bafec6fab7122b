package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment variable overrides, for example
	// IORSTAT_AGGREGATE_THREADS.
	EnvPrefix = "IORSTAT"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultReduceOn is the default aggregation granularity.
	DefaultReduceOn = "date"

	// DefaultWeekStart names the first day of a week bucket.
	DefaultWeekStart = "monday"

	// DefaultTelemetryPathTemplate locates one day of telemetry for a file
	// system.
	DefaultTelemetryPathTemplate = "{date}/{fs}.json"

	// DefaultDatabaseDriver is the default index database driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultSQLitePath is the default SQLite database file.
	DefaultSQLitePath = "iorstat.db"

	// DefaultListen is the default API listen address.
	DefaultListen = ":9090"

	// DefaultRequestsPerMinute is the default per-IP API rate limit.
	DefaultRequestsPerMinute = 120

	// DefaultRateLimitIdleTTL is how long an idle client's rate limit state
	// is kept.
	DefaultRateLimitIdleTTL = 10 * time.Minute

	// DefaultPostgresPort is the default PostgreSQL port.
	DefaultPostgresPort = 5432

	// DefaultIndexingInterval is the default time between indexing passes.
	DefaultIndexingInterval = "60s"

	// DefaultIndexingConcurrency is the default number of reports indexed
	// in parallel.
	DefaultIndexingConcurrency = 4

	// DefaultReportPattern matches IOR report file names.
	DefaultReportPattern = "*.out"
)

// DefaultFSMap maps NERSC scratch mount names to their LMT file system
// names. Configuring ior.fs_map replaces it entirely.
func DefaultFSMap() map[string]string {
	return map[string]string{
		"scratch1": "edison_snx11025",
		"scratch2": "edison_snx11035",
		"scratch3": "edison_snx11036",
		"cscratch": "cori_snx11168",
	}
}

// Config is the root configuration for iorstat.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	IOR       IORConfig       `yaml:"ior" mapstructure:"ior"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Upload    UploadConfig    `yaml:"upload" mapstructure:"upload"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// AggregateConfig controls telemetry aggregation.
type AggregateConfig struct {
	// Threads is the extraction worker count; zero means one per logical CPU.
	Threads     int      `yaml:"threads" mapstructure:"threads"`
	ReduceOn    string   `yaml:"reduce_on" mapstructure:"reduce_on"`
	WeekStart   string   `yaml:"week_start" mapstructure:"week_start"`
	Metadata    bool     `yaml:"metadata" mapstructure:"metadata"`
	NonAdditive []string `yaml:"non_additive,omitempty" mapstructure:"non_additive"`
}

// IORConfig relates IOR reports to telemetry files.
type IORConfig struct {
	// FSMap maps the first component of a benchmark path to the file
	// system name used in telemetry file names.
	FSMap                 map[string]string `yaml:"fs_map,omitempty" mapstructure:"fs_map"`
	TelemetryPathTemplate string            `yaml:"telemetry_path_template" mapstructure:"telemetry_path_template"`
}

// DatabaseConfig contains index database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Indexing    IndexingConfig  `yaml:"indexing,omitempty" mapstructure:"indexing"`
}

// IndexingConfig configures the background indexer that scans report
// locations and keeps the database current while the API runs.
type IndexingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Interval    string `yaml:"interval,omitempty" mapstructure:"interval"`
	Concurrency int    `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	// Pattern is matched against report file names, e.g. "*.out".
	Pattern string `yaml:"pattern,omitempty" mapstructure:"pattern"`
	// LocalPaths maps a discovery path name to a local directory.
	LocalPaths map[string]string `yaml:"local_paths,omitempty" mapstructure:"local_paths"`
	// S3Prefixes are scanned in the bucket configured under upload.s3.
	S3Prefixes []string `yaml:"s3_prefixes,omitempty" mapstructure:"s3_prefixes"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`

	// Burst defaults to RequestsPerMinute.
	Burst   int    `yaml:"burst,omitempty" mapstructure:"burst"`
	IdleTTL string `yaml:"idle_ttl,omitempty" mapstructure:"idle_ttl"`
}

// UploadConfig contains result publication settings.
type UploadConfig struct {
	S3 S3UploadConfig `yaml:"s3" mapstructure:"s3"`
}

// S3UploadConfig contains S3 settings for uploading generated reports.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
	// Timeout bounds a single object upload, e.g. "5m".
	Timeout string `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Load merges the given configuration files in order, applies environment
// overrides and defaults, and returns the result. With no paths the
// defaults and environment alone are used.
func Load(paths ...string) (*Config, error) {
	v := newViper()

	for i, path := range paths {
		v.SetConfigFile(path)

		read := v.MergeInConfig
		if i == 0 {
			read = v.ReadInConfig
		}

		if err := read(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// newViper returns a viper instance that knows every key, so environment
// variables override keys that no file sets.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("aggregate.threads", 0)
	v.SetDefault("aggregate.reduce_on", DefaultReduceOn)
	v.SetDefault("aggregate.week_start", DefaultWeekStart)
	v.SetDefault("aggregate.metadata", false)
	v.SetDefault("aggregate.non_additive", []string{})
	v.SetDefault("ior.telemetry_path_template", DefaultTelemetryPathTemplate)
	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", DefaultPostgresPort)
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.ssl_mode", "")
	v.SetDefault("api.listen", DefaultListen)
	v.SetDefault("api.cors_origins", []string{})
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.requests_per_minute", DefaultRequestsPerMinute)
	v.SetDefault("api.rate_limit.burst", 0)
	v.SetDefault("api.rate_limit.idle_ttl", DefaultRateLimitIdleTTL.String())
	v.SetDefault("api.indexing.enabled", false)
	v.SetDefault("api.indexing.interval", DefaultIndexingInterval)
	v.SetDefault("api.indexing.concurrency", DefaultIndexingConcurrency)
	v.SetDefault("api.indexing.pattern", DefaultReportPattern)
	v.SetDefault("api.indexing.s3_prefixes", []string{})
	v.SetDefault("upload.s3.enabled", false)
	v.SetDefault("upload.s3.endpoint_url", "")
	v.SetDefault("upload.s3.region", "")
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.prefix", "")
	v.SetDefault("upload.s3.access_key_id", "")
	v.SetDefault("upload.s3.secret_access_key", "")
	v.SetDefault("upload.s3.force_path_style", false)
	v.SetDefault("upload.s3.storage_class", "")
	v.SetDefault("upload.s3.acl", "")
	v.SetDefault("upload.s3.timeout", "")

	return v
}

// applyDefaults sets default values for options left empty.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Aggregate.ReduceOn == "" {
		c.Aggregate.ReduceOn = DefaultReduceOn
	}

	if c.Aggregate.WeekStart == "" {
		c.Aggregate.WeekStart = DefaultWeekStart
	}

	if c.IOR.TelemetryPathTemplate == "" {
		c.IOR.TelemetryPathTemplate = DefaultTelemetryPathTemplate
	}

	if len(c.IOR.FSMap) == 0 {
		c.IOR.FSMap = DefaultFSMap()
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultPostgresPort
	}

	if c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}

	if c.API.RateLimit.RequestsPerMinute == 0 {
		c.API.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}

	if c.API.RateLimit.IdleTTL == "" {
		c.API.RateLimit.IdleTTL = DefaultRateLimitIdleTTL.String()
	}

	if c.API.Indexing.Interval == "" {
		c.API.Indexing.Interval = DefaultIndexingInterval
	}

	if c.API.Indexing.Concurrency == 0 {
		c.API.Indexing.Concurrency = DefaultIndexingConcurrency
	}

	if c.API.Indexing.Pattern == "" {
		c.API.Indexing.Pattern = DefaultReportPattern
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Aggregate.Threads < 0 {
		errs = append(errs, fmt.Errorf("aggregate.threads must not be negative, got %d", c.Aggregate.Threads))
	}

	if _, ok := validReduceOn[strings.ToLower(c.Aggregate.ReduceOn)]; !ok {
		errs = append(errs, fmt.Errorf("aggregate.reduce_on %q must be one of date, day, week, month, year",
			c.Aggregate.ReduceOn))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.API.RateLimit.Enabled && c.API.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit.requests_per_minute must not be negative"))
	}

	if c.API.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit.burst must not be negative"))
	}

	if ttl, err := time.ParseDuration(c.API.RateLimit.IdleTTL); err != nil || ttl <= 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit.idle_ttl %q must be a positive duration",
			c.API.RateLimit.IdleTTL))
	}

	if err := c.API.Indexing.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.API.Indexing.Enabled && len(c.API.Indexing.S3Prefixes) > 0 && c.Upload.S3.Bucket == "" {
		errs = append(errs, fmt.Errorf("api.indexing.s3_prefixes requires upload.s3.bucket"))
	}

	if err := c.Upload.S3.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

var validReduceOn = map[string]struct{}{
	"date":  {},
	"day":   {},
	"week":  {},
	"month": {},
	"year":  {},
}

// Validate checks the database configuration.
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case "sqlite":
		if d.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if d.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if d.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("database.driver %q must be sqlite or postgres", d.Driver)
	}

	return nil
}

// Validate checks the indexing configuration. A disabled section is always
// valid.
func (i *IndexingConfig) Validate() error {
	if !i.Enabled {
		return nil
	}

	if len(i.LocalPaths) == 0 && len(i.S3Prefixes) == 0 {
		return fmt.Errorf("api.indexing requires local_paths or s3_prefixes")
	}

	if _, err := time.ParseDuration(i.Interval); err != nil {
		return fmt.Errorf("api.indexing.interval: %w", err)
	}

	if _, err := filepath.Match(i.Pattern, ""); err != nil {
		return fmt.Errorf("api.indexing.pattern: %w", err)
	}

	return nil
}

// Validate checks the S3 upload configuration. A disabled section is
// always valid.
func (s *S3UploadConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Bucket == "" {
		return fmt.Errorf("upload.s3.bucket is required when upload is enabled")
	}

	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		return fmt.Errorf("upload.s3.access_key_id and secret_access_key must be set together")
	}

	if s.Timeout != "" {
		if _, err := time.ParseDuration(s.Timeout); err != nil {
			return fmt.Errorf("upload.s3.timeout: %w", err)
		}
	}

	return nil
}
