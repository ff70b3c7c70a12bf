package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"pressbrief/pkg/domain"
)

// CandidateRepository handles candidate and queued-story database operations
type CandidateRepository struct {
	db *sqlx.DB
}

// candidateSQL represents a candidate for SQL operations
type candidateSQL struct {
	ID        int64     `db:"id"`
	StoryID   string    `db:"story_id"`
	PivotID   string    `db:"pivot_id"`
	Headline  string    `db:"headline"`
	URL       string    `db:"url"`
	Summary   string    `db:"summary"`
	Source    string    `db:"source"`
	Company   string    `db:"company"`
	Score     float64   `db:"score"`
	Published time.Time `db:"published"`
	CreatedAt time.Time `db:"created_at"`
}

// queuedSQL represents a manually queued story for SQL operations
type queuedSQL struct {
	ID        int64     `db:"id"`
	StoryID   string    `db:"story_id"`
	PivotID   string    `db:"pivot_id"`
	Headline  string    `db:"headline"`
	URL       string    `db:"url"`
	Source    string    `db:"source"`
	Note      string    `db:"note"`
	Consumed  bool      `db:"consumed"`
	CreatedAt time.Time `db:"created_at"`
}

// stringsSQL is a JSON array of strings for SQL operations
type stringsSQL []string

// Value implements driver.Valuer for database storage
func (s stringsSQL) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval
func (s *stringsSQL) Scan(value interface{}) error {
	if value == nil {
		*s = stringsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return json.Unmarshal([]byte("[]"), s)
	}

	return json.Unmarshal(data, s)
}

// NewCandidateRepository creates a new candidate repository
func NewCandidateRepository(database *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: database}
}

// CreateCandidate inserts a candidate; the story_id unique constraint keeps
// re-scoring idempotent.
func (r *CandidateRepository) CreateCandidate(ctx context.Context, c *domain.Candidate) error {
	sqlCand := &candidateSQL{
		StoryID:   c.StoryID,
		PivotID:   c.PivotID,
		Headline:  c.Headline,
		URL:       c.URL,
		Summary:   c.Summary,
		Source:    c.Source,
		Company:   c.Company,
		Score:     c.Score,
		Published: c.Published,
	}

	query := `
		INSERT INTO candidates (story_id, pivot_id, headline, url, summary, source, company, score, published)
		VALUES (:story_id, :pivot_id, :headline, :url, :summary, :source, :company, :score, :published)
		ON CONFLICT(story_id) DO NOTHING
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlCand)
	if err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}

	c.ID = id
	return nil
}

// CandidateFilter narrows GetCandidates results; zero values are ignored
type CandidateFilter struct {
	MinScore float64
	Source   string
	Since    time.Time
	Limit    int
}

// GetCandidates retrieves candidates matching the filter, most recent first.
// The query is built dynamically since every filter field is optional.
func (r *CandidateRepository) GetCandidates(ctx context.Context, f CandidateFilter) ([]*domain.Candidate, error) {
	builder := sq.Select("*").From("candidates").OrderBy("published DESC")

	if f.MinScore > 0 {
		builder = builder.Where(sq.GtOrEq{"score": f.MinScore})
	}
	if f.Source != "" {
		builder = builder.Where(sq.Eq{"source": f.Source})
	}
	if !f.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"published": f.Since})
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build candidates query: %w", err)
	}

	var sqlCands []candidateSQL
	if err := r.db.SelectContext(ctx, &sqlCands, query, args...); err != nil {
		return nil, fmt.Errorf("get candidates: %w", err)
	}

	cands := make([]*domain.Candidate, len(sqlCands))
	for i := range sqlCands {
		cands[i] = r.toDomainCandidate(&sqlCands[i])
	}
	return cands, nil
}

// GetCandidatesByStoryIDs batch-fetches candidates by story id
func (r *CandidateRepository) GetCandidatesByStoryIDs(ctx context.Context, storyIDs []string) (map[string]*domain.Candidate, error) {
	result := make(map[string]*domain.Candidate, len(storyIDs))
	if len(storyIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT * FROM candidates WHERE story_id IN (?)", storyIDs)
	if err != nil {
		return nil, fmt.Errorf("build story id query: %w", err)
	}

	var sqlCands []candidateSQL
	if err := r.db.SelectContext(ctx, &sqlCands, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get candidates by story ids: %w", err)
	}

	for i := range sqlCands {
		result[sqlCands[i].StoryID] = r.toDomainCandidate(&sqlCands[i])
	}
	return result, nil
}

// QueueStory adds a manually queued story
func (r *CandidateRepository) QueueStory(ctx context.Context, q *domain.QueuedStory) error {
	query := `
		INSERT INTO queued_stories (story_id, pivot_id, headline, url, source, note)
		VALUES (:story_id, :pivot_id, :headline, :url, :source, :note)
		ON CONFLICT(story_id) DO NOTHING
	`
	sqlQ := &queuedSQL{
		StoryID:  q.StoryID,
		PivotID:  q.PivotID,
		Headline: q.Headline,
		URL:      q.URL,
		Source:   q.Source,
		Note:     q.Note,
	}
	if _, err := r.db.NamedExecContext(ctx, query, sqlQ); err != nil {
		return fmt.Errorf("queue story: %w", err)
	}
	return nil
}

// GetQueuedStories retrieves unconsumed queued stories, oldest first
func (r *CandidateRepository) GetQueuedStories(ctx context.Context) ([]*domain.QueuedStory, error) {
	var sqlQs []queuedSQL
	err := r.db.SelectContext(ctx, &sqlQs,
		"SELECT * FROM queued_stories WHERE consumed = 0 ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("get queued stories: %w", err)
	}

	out := make([]*domain.QueuedStory, len(sqlQs))
	for i, q := range sqlQs {
		out[i] = &domain.QueuedStory{
			ID:        q.ID,
			StoryID:   q.StoryID,
			PivotID:   q.PivotID,
			Headline:  q.Headline,
			URL:       q.URL,
			Source:    q.Source,
			Note:      q.Note,
			Consumed:  q.Consumed,
			CreatedAt: q.CreatedAt,
		}
	}
	return out, nil
}

// MarkQueuedConsumed marks a queued story as consumed by an aggregation run
func (r *CandidateRepository) MarkQueuedConsumed(ctx context.Context, storyID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE queued_stories SET consumed = 1 WHERE story_id = ?", storyID); err != nil {
		return fmt.Errorf("mark queued consumed: %w", err)
	}
	return nil
}

// toDomainCandidate converts SQL candidate to domain candidate
func (r *CandidateRepository) toDomainCandidate(c *candidateSQL) *domain.Candidate {
	return &domain.Candidate{
		ID:        c.ID,
		StoryID:   c.StoryID,
		PivotID:   c.PivotID,
		Headline:  c.Headline,
		URL:       c.URL,
		Summary:   c.Summary,
		Source:    c.Source,
		Company:   c.Company,
		Score:     c.Score,
		Published: c.Published,
		CreatedAt: c.CreatedAt,
	}
}
