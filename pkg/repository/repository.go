package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed schema.sql
var schema string

// Config holds database connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Repositories bundles all stores sharing one database handle.
type Repositories struct {
	Feed       *FeedRepository
	Article    *ArticleRepository
	Candidate  *CandidateRepository
	PreFilter  *PreFilterRepository
	Issue      *IssueRepository
	Decoration *DecorationRepository
	Source     *SourceRepository
	DB         *sqlx.DB
}

// startupPragmas are applied once per database open. WAL keeps readers from
// blocking the pipeline writers; busy_timeout covers short lock contention
// before the repeater-level retry kicks in.
var startupPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA busy_timeout = 5000",
}

// NewRepositories opens the database, applies pragmas, runs the embedded
// schema and returns the store bundle.
func NewRepositories(ctx context.Context, cfg Config) (*Repositories, error) {
	if cfg.DSN == "" {
		cfg.DSN = "file:pressbrief.db?cache=shared&mode=rwc&_txlock=immediate"
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	for _, pragma := range startupPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	// schema is idempotent, CREATE TABLE IF NOT EXISTS throughout
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Repositories{
		Feed:       NewFeedRepository(db),
		Article:    NewArticleRepository(db),
		Candidate:  NewCandidateRepository(db),
		PreFilter:  NewPreFilterRepository(db),
		Issue:      NewIssueRepository(db),
		Decoration: NewDecorationRepository(db),
		Source:     NewSourceRepository(db),
		DB:         db,
	}, nil
}

// Close closes the shared database handle.
func (r *Repositories) Close() error {
	return r.DB.Close()
}

// Ping verifies the database connection.
func (r *Repositories) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "SQLITE_BUSY") ||
		strings.Contains(s, "database is locked") ||
		strings.Contains(s, "database table is locked")
}
