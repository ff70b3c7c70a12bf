package domain

import "time"

// Article represents a raw ingested news item. Articles are append-only:
// once created they are never mutated except to attach AI scores.
type Article struct {
	ID        int64
	PivotID   string
	URL       string
	Title     string
	Source    string
	Summary   string
	Content   string
	Published time.Time
	CreatedAt time.Time

	// AI scoring, attached after ingestion
	InterestScore float64
	TopicScore    float64
	Company       string
	ScoredAt      *time.Time
}

// Scored reports whether the article has been through interest scoring.
func (a *Article) Scored() bool {
	return a.ScoredAt != nil
}

// AgeHours returns article age in hours relative to now.
func (a *Article) AgeHours(now time.Time) float64 {
	return now.Sub(a.Published).Hours()
}

// ParsedStory is a story item as it comes from a feed or newsletter archive,
// before it becomes an Article.
type ParsedStory struct {
	Title     string
	URL       string
	Summary   string
	Source    string
	Published time.Time
}

// SourceRank holds the credibility score for a news source.
type SourceRank struct {
	ID          int64
	Name        string
	Credibility float64
	UpdatedAt   time.Time
}

// NeutralCredibility is assigned to sources without a recorded rank so an
// unscored source is not automatically excluded.
const NeutralCredibility = 5.0
