package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"pressbrief/pkg/domain"
)

// ArticleRepository handles article-related database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// articleSQL represents an article for SQL operations
type articleSQL struct {
	ID            int64      `db:"id"`
	PivotID       string     `db:"pivot_id"`
	URL           string     `db:"url"`
	Title         string     `db:"title"`
	Source        string     `db:"source"`
	Summary       string     `db:"summary"`
	Content       string     `db:"content"`
	Published     time.Time  `db:"published"`
	InterestScore float64    `db:"interest_score"`
	TopicScore    float64    `db:"topic_score"`
	Company       string     `db:"company"`
	ScoredAt      *time.Time `db:"scored_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(database *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: database}
}

// CreateArticle inserts a new article; the pivot_id unique constraint makes
// re-running ingestion on the same day a no-op for already-seen stories.
func (r *ArticleRepository) CreateArticle(ctx context.Context, a *domain.Article) error {
	sqlArticle := &articleSQL{
		PivotID:   a.PivotID,
		URL:       a.URL,
		Title:     a.Title,
		Source:    a.Source,
		Summary:   a.Summary,
		Content:   a.Content,
		Published: a.Published,
	}

	query := `
		INSERT INTO articles (pivot_id, url, title, source, summary, content, published)
		VALUES (:pivot_id, :url, :title, :source, :summary, :content, :published)
		ON CONFLICT(pivot_id) DO NOTHING
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlArticle)
	if err != nil {
		return fmt.Errorf("create article: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// already stored, identity preserved by pivot_id
		return nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}

	a.ID = id
	return nil
}

// ArticleExists checks if an article with the given pivot id is already stored
func (r *ArticleRepository) ArticleExists(ctx context.Context, pivotID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM articles WHERE pivot_id = ?)", pivotID)
	if err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	return exists, nil
}

// GetArticleByPivotID retrieves a single article by its pivot id
func (r *ArticleRepository) GetArticleByPivotID(ctx context.Context, pivotID string) (*domain.Article, error) {
	var sqlArticle articleSQL
	err := r.db.GetContext(ctx, &sqlArticle, "SELECT * FROM articles WHERE pivot_id = ?", pivotID)
	if err != nil {
		return nil, fmt.Errorf("get article by pivot id: %w", err)
	}
	return r.toDomainArticle(&sqlArticle), nil
}

// GetArticlesByPivotIDs batch-fetches articles for candidate enrichment
func (r *ArticleRepository) GetArticlesByPivotIDs(ctx context.Context, pivotIDs []string) (map[string]*domain.Article, error) {
	result := make(map[string]*domain.Article, len(pivotIDs))
	if len(pivotIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT * FROM articles WHERE pivot_id IN (?)", pivotIDs)
	if err != nil {
		return nil, fmt.Errorf("build pivot id query: %w", err)
	}

	var sqlArticles []articleSQL
	if err := r.db.SelectContext(ctx, &sqlArticles, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get articles by pivot ids: %w", err)
	}

	for i := range sqlArticles {
		result[sqlArticles[i].PivotID] = r.toDomainArticle(&sqlArticles[i])
	}
	return result, nil
}

// GetUnscoredArticles retrieves articles that still need interest scoring
func (r *ArticleRepository) GetUnscoredArticles(ctx context.Context, limit int) ([]*domain.Article, error) {
	query := `
		SELECT * FROM articles
		WHERE scored_at IS NULL
		ORDER BY published DESC
		LIMIT ?
	`
	var sqlArticles []articleSQL
	if err := r.db.SelectContext(ctx, &sqlArticles, query, limit); err != nil {
		return nil, fmt.Errorf("get unscored articles: %w", err)
	}

	articles := make([]*domain.Article, len(sqlArticles))
	for i := range sqlArticles {
		articles[i] = r.toDomainArticle(&sqlArticles[i])
	}
	return articles, nil
}

// UpdateArticleScore attaches AI scores to an article, retried on lock errors
func (r *ArticleRepository) UpdateArticleScore(ctx context.Context, pivotID string, interest, topic float64, company string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE articles
			SET interest_score = ?, topic_score = ?, company = ?, scored_at = datetime('now')
			WHERE pivot_id = ?
		`
		if _, err := r.db.ExecContext(ctx, query, interest, topic, company, pivotID); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("update article score: %w", err)}
		}
		return nil
	})
}

// toDomainArticle converts SQL article to domain article
func (r *ArticleRepository) toDomainArticle(a *articleSQL) *domain.Article {
	return &domain.Article{
		ID:            a.ID,
		PivotID:       a.PivotID,
		URL:           a.URL,
		Title:         a.Title,
		Source:        a.Source,
		Summary:       a.Summary,
		Content:       a.Content,
		Published:     a.Published,
		InterestScore: a.InterestScore,
		TopicScore:    a.TopicScore,
		Company:       a.Company,
		ScoredAt:      a.ScoredAt,
		CreatedAt:     a.CreatedAt,
	}
}
