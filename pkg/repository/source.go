package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pressbrief/pkg/domain"
)

// SourceRepository handles source credibility ranks
type SourceRepository struct {
	db *sqlx.DB
}

// sourceSQL represents a source rank for SQL operations
type sourceSQL struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Credibility float64   `db:"credibility"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(database *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: database}
}

// UpsertSourceRank creates or updates a source credibility score
func (r *SourceRepository) UpsertSourceRank(ctx context.Context, name string, credibility float64) error {
	query := `
		INSERT INTO source_ranks (name, credibility)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			credibility = excluded.credibility,
			updated_at = datetime('now')
	`
	if _, err := r.db.ExecContext(ctx, query, name, credibility); err != nil {
		return fmt.Errorf("upsert source rank: %w", err)
	}
	return nil
}

// GetSourceRanks returns all source credibility scores keyed by source name
func (r *SourceRepository) GetSourceRanks(ctx context.Context) (map[string]float64, error) {
	var sqlSources []sourceSQL
	if err := r.db.SelectContext(ctx, &sqlSources, "SELECT * FROM source_ranks"); err != nil {
		return nil, fmt.Errorf("get source ranks: %w", err)
	}

	ranks := make(map[string]float64, len(sqlSources))
	for _, s := range sqlSources {
		ranks[s.Name] = s.Credibility
	}
	return ranks, nil
}

// GetSourceRank returns the credibility for one source, neutral when unknown
func (r *SourceRepository) GetSourceRank(ctx context.Context, name string) (float64, error) {
	var credibility float64
	err := r.db.GetContext(ctx, &credibility,
		"SELECT credibility FROM source_ranks WHERE name = ?", name)
	if err != nil {
		// unknown sources get a neutral score, not zero
		return domain.NeutralCredibility, nil //nolint:nilerr // missing rank is not an error
	}
	return credibility, nil
}
