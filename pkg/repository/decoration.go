package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"pressbrief/pkg/domain"
)

// DecorationRepository handles per-slot generated content
type DecorationRepository struct {
	db *sqlx.DB
}

// decorationSQL represents a decoration for SQL operations
type decorationSQL struct {
	ID           int64      `db:"id"`
	IssueID      int64      `db:"issue_id"`
	StoryID      string     `db:"story_id"`
	Slot         int        `db:"slot"`
	Headline     string     `db:"headline"`
	Dek          string     `db:"dek"`
	Bullets      stringsSQL `db:"bullets"`
	ImagePrompt  string     `db:"image_prompt"`
	ImageURL     string     `db:"image_url"`
	ImageStatus  string     `db:"image_status"`
	SocialStatus string     `db:"social_status"`
	Topic        string     `db:"topic"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// NewDecorationRepository creates a new decoration repository
func NewDecorationRepository(database *sqlx.DB) *DecorationRepository {
	return &DecorationRepository{db: database}
}

// UpsertDecoration writes a decoration keyed by (issue_id, story_id) so
// re-running the decoration stage replaces instead of duplicating.
func (r *DecorationRepository) UpsertDecoration(ctx context.Context, d *domain.Decoration) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO decorations (issue_id, story_id, slot, headline, dek, bullets,
				image_prompt, image_url, image_status, social_status, topic)
			VALUES (:issue_id, :story_id, :slot, :headline, :dek, :bullets,
				:image_prompt, :image_url, :image_status, :social_status, :topic)
			ON CONFLICT(issue_id, story_id) DO UPDATE SET
				slot = excluded.slot,
				headline = excluded.headline,
				dek = excluded.dek,
				bullets = excluded.bullets,
				image_prompt = excluded.image_prompt,
				topic = excluded.topic,
				updated_at = datetime('now')
		`
		sqlDec := &decorationSQL{
			IssueID:      d.IssueID,
			StoryID:      d.StoryID,
			Slot:         d.Slot,
			Headline:     d.Headline,
			Dek:          d.Dek,
			Bullets:      stringsSQL(d.Bullets),
			ImagePrompt:  d.ImagePrompt,
			ImageURL:     d.ImageURL,
			ImageStatus:  string(d.ImageStatus),
			SocialStatus: string(d.SocialStatus),
			Topic:        d.Topic,
		}
		if _, err := r.db.NamedExecContext(ctx, query, sqlDec); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("upsert decoration: %w", err)}
		}
		return nil
	})
}

// GetDecorations retrieves all decorations for an issue in slot order
func (r *DecorationRepository) GetDecorations(ctx context.Context, issueID int64) ([]*domain.Decoration, error) {
	var sqlDecs []decorationSQL
	err := r.db.SelectContext(ctx, &sqlDecs,
		"SELECT * FROM decorations WHERE issue_id = ? ORDER BY slot", issueID)
	if err != nil {
		return nil, fmt.Errorf("get decorations: %w", err)
	}

	decs := make([]*domain.Decoration, len(sqlDecs))
	for i := range sqlDecs {
		decs[i] = r.toDomainDecoration(&sqlDecs[i])
	}
	return decs, nil
}

// GetPendingImages retrieves decorations still waiting for image generation
func (r *DecorationRepository) GetPendingImages(ctx context.Context, limit int) ([]*domain.Decoration, error) {
	query := `
		SELECT * FROM decorations
		WHERE image_status = ? AND image_prompt != ''
		ORDER BY created_at
		LIMIT ?
	`
	var sqlDecs []decorationSQL
	if err := r.db.SelectContext(ctx, &sqlDecs, query, string(domain.ImagePending), limit); err != nil {
		return nil, fmt.Errorf("get pending images: %w", err)
	}

	decs := make([]*domain.Decoration, len(sqlDecs))
	for i := range sqlDecs {
		decs[i] = r.toDomainDecoration(&sqlDecs[i])
	}
	return decs, nil
}

// UpdateImage records the outcome of image generation; status fields are the
// only mutation surface after creation.
func (r *DecorationRepository) UpdateImage(ctx context.Context, decorationID int64, imageURL string, status domain.ImageStatus) error {
	query := `
		UPDATE decorations
		SET image_url = ?, image_status = ?, updated_at = datetime('now')
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, imageURL, string(status), decorationID); err != nil {
		return fmt.Errorf("update decoration image: %w", err)
	}
	return nil
}

// UpdateSocialStatus advances the social syndication status
func (r *DecorationRepository) UpdateSocialStatus(ctx context.Context, decorationID int64, status domain.SocialStatus) error {
	query := "UPDATE decorations SET social_status = ?, updated_at = datetime('now') WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, string(status), decorationID); err != nil {
		return fmt.Errorf("update social status: %w", err)
	}
	return nil
}

// toDomainDecoration converts SQL decoration to domain decoration
func (r *DecorationRepository) toDomainDecoration(d *decorationSQL) *domain.Decoration {
	return &domain.Decoration{
		ID:           d.ID,
		IssueID:      d.IssueID,
		StoryID:      d.StoryID,
		Slot:         d.Slot,
		Headline:     d.Headline,
		Dek:          d.Dek,
		Bullets:      []string(d.Bullets),
		ImagePrompt:  d.ImagePrompt,
		ImageURL:     d.ImageURL,
		ImageStatus:  domain.ImageStatus(d.ImageStatus),
		SocialStatus: domain.SocialStatus(d.SocialStatus),
		Topic:        d.Topic,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
