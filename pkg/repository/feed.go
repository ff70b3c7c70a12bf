package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"pressbrief/pkg/feed"
)

// FeedRepository handles feed source database operations
type FeedRepository struct {
	db *sqlx.DB
}

// feedSQL represents a feed source for SQL operations
type feedSQL struct {
	ID          int64      `db:"id"`
	URL         string     `db:"url"`
	Title       string     `db:"title"`
	Kind        string     `db:"kind"`
	LastFetched *time.Time `db:"last_fetched"`
	ErrorCount  int        `db:"error_count"`
	LastError   string     `db:"last_error"`
	Enabled     bool       `db:"enabled"`
	CreatedAt   time.Time  `db:"created_at"`
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(database *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: database}
}

// CreateFeed inserts a new feed source
func (r *FeedRepository) CreateFeed(ctx context.Context, f *feed.Source) error {
	sqlFeed := &feedSQL{
		URL:     f.URL,
		Title:   f.Title,
		Kind:    string(f.Kind),
		Enabled: f.Enabled,
	}

	query := `
		INSERT INTO feeds (url, title, kind, enabled)
		VALUES (:url, :title, :kind, :enabled)
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlFeed)
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}

	f.ID = id
	return nil
}

// GetFeeds retrieves feed sources, optionally only enabled ones
func (r *FeedRepository) GetFeeds(ctx context.Context, enabledOnly bool) ([]feed.Source, error) {
	query := "SELECT * FROM feeds"
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY id"

	var sqlFeeds []feedSQL
	if err := r.db.SelectContext(ctx, &sqlFeeds, query); err != nil {
		return nil, fmt.Errorf("get feeds: %w", err)
	}

	feeds := make([]feed.Source, len(sqlFeeds))
	for i, f := range sqlFeeds {
		feeds[i] = feed.Source{
			ID:          f.ID,
			URL:         f.URL,
			Title:       f.Title,
			Kind:        feed.SourceKind(f.Kind),
			LastFetched: f.LastFetched,
			ErrorCount:  f.ErrorCount,
			LastError:   f.LastError,
			Enabled:     f.Enabled,
			CreatedAt:   f.CreatedAt,
		}
	}
	return feeds, nil
}

// UpdateFeedFetched records a successful fetch and clears the error state
func (r *FeedRepository) UpdateFeedFetched(ctx context.Context, feedID int64) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE feeds
			SET last_fetched = datetime('now'), error_count = 0, last_error = ''
			WHERE id = ?
		`
		if _, err := r.db.ExecContext(ctx, query, feedID); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("update feed fetched: %w", err)}
		}
		return nil
	})
}

// UpdateFeedError records a fetch failure
func (r *FeedRepository) UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error {
	query := `
		UPDATE feeds
		SET error_count = error_count + 1, last_error = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, errMsg, feedID); err != nil {
		return fmt.Errorf("update feed error: %w", err)
	}
	return nil
}
