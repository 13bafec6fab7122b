// Package store persists parsed IOR runs in a SQL database.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/atgtools/iorstat/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for indexed runs.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// UpsertRun stores run and replaces its results in one transaction.
	UpsertRun(ctx context.Context, run *Run, results []Result) error
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	GetRun(ctx context.Context, id uint) (*Run, error)
	ListResults(ctx context.Context, runID uint) ([]Result, error)
	ListJobs(ctx context.Context) ([]JobSummary, error)
	// ListSources maps every indexed report to whether all of its runs
	// finished.
	ListSources(ctx context.Context) (map[string]bool, error)
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	FileSystem string
	JobKey     string
	Limit      int
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			sslMode(s.cfg.Postgres.SSLMode),
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	// Every connection to ":memory:" is a separate database.
	if s.cfg.Driver == "sqlite" && s.cfg.SQLite.Path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Run{},
		&Result{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Database connected")

	return nil
}

func sslMode(mode string) string {
	if mode == "" {
		return "disable"
	}

	return mode
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// UpsertRun inserts or updates a run keyed by source + run_index and
// replaces its results. On return run.ID is set.
func (s *store) UpsertRun(ctx context.Context, run *Run, results []Result) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Run

		err := tx.Where("source = ? AND run_index = ?", run.Source, run.RunIndex).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			run.ID = 0
			if err := tx.Create(run).Error; err != nil {
				return fmt.Errorf("creating run: %w", err)
			}
		case err != nil:
			return fmt.Errorf("looking up run: %w", err)
		default:
			run.ID = existing.ID
			if err := tx.Model(&existing).Select("*").Updates(run).Error; err != nil {
				return fmt.Errorf("updating run: %w", err)
			}

			if err := tx.Where("run_id = ?", run.ID).Delete(&Result{}).Error; err != nil {
				return fmt.Errorf("deleting old results: %w", err)
			}
		}

		if len(results) == 0 {
			return nil
		}

		for i := range results {
			results[i].ID = 0
			results[i].RunID = run.ID
		}

		if err := tx.CreateInBatches(&results, 100).Error; err != nil {
			return fmt.Errorf("inserting results: %w", err)
		}

		return nil
	})
}

// ListRuns returns parsed runs matching filter, newest first. Placeholders
// for unparsable run blocks are left out.
func (s *store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	q := s.db.WithContext(ctx).
		Where("parse_error = ?", "").
		Order("start DESC").
		Order("id DESC")

	if filter.FileSystem != "" {
		q = q.Where("file_system = ?", filter.FileSystem)
	}

	if filter.JobKey != "" {
		q = q.Where("job_key = ?", filter.JobKey)
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// GetRun returns a single run by ID.
func (s *store) GetRun(ctx context.Context, id uint) (*Run, error) {
	var run Run

	err := s.db.WithContext(ctx).First(&run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	return &run, nil
}

// ListResults returns a run's results in table order.
func (s *store) ListResults(ctx context.Context, runID uint) ([]Result, error) {
	var results []Result
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	return results, nil
}

const jobColumns = "runs.job_key AS job_key, results.operation AS operation, " +
	"COUNT(*) AS samples, AVG(results.avg_mibs) AS mean_mibs, " +
	"MAX(results.avg_mibs) AS best_mibs"

// ListJobs summarizes full (non-abbreviated) results by job geometry and
// operation.
func (s *store) ListJobs(ctx context.Context) ([]JobSummary, error) {
	var jobs []JobSummary
	if err := s.db.WithContext(ctx).
		Model(&Result{}).
		Select(jobColumns).
		Joins("JOIN runs ON runs.id = results.run_id").
		Where("results.abbreviated = ? AND runs.job_key <> ?", false, "").
		Group("runs.job_key, results.operation").
		Order("runs.job_key, results.operation").
		Scan(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	return jobs, nil
}

// ListSources maps every indexed report to whether all of its runs
// finished. Placeholders for unparsable runs are never complete.
func (s *store) ListSources(ctx context.Context) (map[string]bool, error) {
	var rows []struct {
		Source   string
		Complete int
	}

	if err := s.db.WithContext(ctx).
		Model(&Run{}).
		Select("source, MIN(CASE WHEN complete THEN 1 ELSE 0 END) AS complete").
		Group("source").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	sources := make(map[string]bool, len(rows))
	for _, row := range rows {
		sources[row.Source] = row.Complete == 1
	}

	return sources, nil
}
