package scheduler

import (
	"context"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/ident"
	"pressbrief/pkg/llm"
)

// scorePending scores unscored articles in batches and promotes the ones
// that clear the interest threshold to candidates
func (s *Scheduler) scorePending(ctx context.Context) {
	articles, err := s.deps.Articles.GetUnscoredArticles(ctx, s.cfg.BatchSize*s.cfg.MaxWorkers)
	if err != nil {
		lgr.Printf("[ERROR] failed to get unscored articles: %v", err)
		return
	}
	if len(articles) == 0 {
		return
	}

	lgr.Printf("[INFO] scoring %d articles", len(articles))

	for i := 0; i < len(articles); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(articles) {
			end = len(articles)
		}
		s.scoreBatch(ctx, articles[i:end])
	}

	lgr.Printf("[INFO] scoring completed")
}

// scoreBatch runs one batch through the scorer and persists the results
func (s *Scheduler) scoreBatch(ctx context.Context, articles []*domain.Article) {
	batch := make([]domain.Article, len(articles))
	byPivot := make(map[string]*domain.Article, len(articles))
	for i, a := range articles {
		batch[i] = *a
		byPivot[a.PivotID] = a
	}

	scores, err := s.deps.Scorer.Score(ctx, batch)
	if err != nil {
		lgr.Printf("[ERROR] failed to score batch: %v", err)
		return
	}

	promoted := 0
	for _, score := range scores {
		article, ok := byPivot[score.PivotID]
		if !ok {
			continue
		}

		if err := s.deps.Articles.UpdateArticleScore(ctx, score.PivotID, score.InterestScore, score.TopicScore, score.Company); err != nil {
			lgr.Printf("[ERROR] failed to store score for %s: %v", score.PivotID, err)
			continue
		}

		if score.InterestScore < s.cfg.MinInterest {
			continue
		}

		candidate := s.toCandidate(article, score)
		if err := s.deps.Candidates.CreateCandidate(ctx, candidate); err != nil {
			lgr.Printf("[ERROR] failed to create candidate %s: %v", candidate.StoryID, err)
			continue
		}
		promoted++
	}

	lgr.Printf("[DEBUG] scored %d articles, promoted %d candidates", len(scores), promoted)
}

func (s *Scheduler) toCandidate(article *domain.Article, score llm.Score) *domain.Candidate {
	summary := score.Summary
	if summary == "" {
		summary = article.Summary
	}
	return &domain.Candidate{
		StoryID:   ident.StoryID(article.PivotID),
		PivotID:   article.PivotID,
		Headline:  article.Title,
		URL:       article.URL,
		Summary:   summary,
		Source:    article.Source,
		Company:   score.Company,
		Score:     score.InterestScore,
		Published: article.Published,
	}
}
