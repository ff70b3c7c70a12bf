package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"pressbrief/pkg/domain"
)

// PreFilterRepository handles the pre-filter eligibility log
type PreFilterRepository struct {
	db *sqlx.DB
}

// prefilterSQL represents a pre-filter entry for SQL operations
type prefilterSQL struct {
	ID        int64     `db:"id"`
	StoryID   string    `db:"story_id"`
	Slot      int       `db:"slot"`
	Headline  string    `db:"headline"`
	Source    string    `db:"source"`
	Company   string    `db:"company"`
	URL       string    `db:"url"`
	Published time.Time `db:"published"`
	RunDate   string    `db:"run_date"`
	CreatedAt time.Time `db:"created_at"`
}

// NewPreFilterRepository creates a new pre-filter repository
func NewPreFilterRepository(database *sqlx.DB) *PreFilterRepository {
	return &PreFilterRepository{db: database}
}

// UpsertEntries writes eligibility entries keyed by (story_id, slot) so a
// re-run on the same day updates instead of double-writing.
func (r *PreFilterRepository) UpsertEntries(ctx context.Context, entries []domain.PreFilterEntry) error {
	if len(entries) == 0 {
		return nil
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO prefilter_entries (story_id, slot, headline, source, company, url, published, run_date)
			VALUES (:story_id, :slot, :headline, :source, :company, :url, :published, :run_date)
			ON CONFLICT(story_id, slot) DO UPDATE SET
				headline = excluded.headline,
				source = excluded.source,
				company = excluded.company,
				url = excluded.url,
				published = excluded.published,
				run_date = excluded.run_date
		`
		for _, e := range entries {
			sqlEntry := &prefilterSQL{
				StoryID:   e.StoryID,
				Slot:      e.Slot,
				Headline:  e.Headline,
				Source:    e.Source,
				Company:   e.Company,
				URL:       e.URL,
				Published: e.Published,
				RunDate:   e.RunDate,
			}
			if _, err := r.db.NamedExecContext(ctx, query, sqlEntry); err != nil {
				if isLockError(err) {
					return err // repeater will retry this
				}
				return &criticalError{err: fmt.Errorf("upsert prefilter entry: %w", err)}
			}
		}
		return nil
	})
}

// GetEntriesForSlot retrieves eligibility entries for a slot recorded on or
// after the given run date, most recently published first.
func (r *PreFilterRepository) GetEntriesForSlot(ctx context.Context, slot int, runDate string) ([]domain.PreFilterEntry, error) {
	query := `
		SELECT * FROM prefilter_entries
		WHERE slot = ? AND run_date >= ?
		ORDER BY published DESC
	`
	var sqlEntries []prefilterSQL
	if err := r.db.SelectContext(ctx, &sqlEntries, query, slot, runDate); err != nil {
		return nil, fmt.Errorf("get prefilter entries: %w", err)
	}

	entries := make([]domain.PreFilterEntry, len(sqlEntries))
	for i, e := range sqlEntries {
		entries[i] = domain.PreFilterEntry{
			ID:        e.ID,
			StoryID:   e.StoryID,
			Slot:      e.Slot,
			Headline:  e.Headline,
			Source:    e.Source,
			Company:   e.Company,
			URL:       e.URL,
			Published: e.Published,
			RunDate:   e.RunDate,
			CreatedAt: e.CreatedAt,
		}
	}
	return entries, nil
}
