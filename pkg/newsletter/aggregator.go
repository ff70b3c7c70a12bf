// Package newsletter implements the editorial pipeline stages: aggregation,
// pre-filtering, slot selection, decoration, compilation and distribution.
// Stages communicate only through the store; each returns a run summary and
// treats per-item failures as recorded, non-fatal outcomes.
package newsletter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/config"
	"pressbrief/pkg/domain"
	"pressbrief/pkg/slots"
)

// ArticleStore is the article lookup surface the aggregator needs
type ArticleStore interface {
	GetArticlesByPivotIDs(ctx context.Context, pivotIDs []string) (map[string]*domain.Article, error)
}

// SourceStore resolves source credibility ranks
type SourceStore interface {
	GetSourceRanks(ctx context.Context) (map[string]float64, error)
}

// RecentStore exposes the trailing-window story exclusion check
type RecentStore interface {
	GetRecentStoryIDs(ctx context.Context, days int, today time.Time) (map[string]bool, error)
}

// Aggregator merges scored and manually queued candidates into a single
// deduplicated list, enriched with credibility and article detail
type Aggregator struct {
	articles ArticleStore
	sources  SourceStore
	recent   RecentStore
	cfg      config.NewsletterConfig
}

// NewAggregator creates a candidate aggregator
func NewAggregator(articles ArticleStore, sources SourceStore, recent RecentStore, cfg config.NewsletterConfig) *Aggregator {
	return &Aggregator{articles: articles, sources: sources, recent: recent, cfg: cfg}
}

// Aggregate merges queued and primary candidates, queued first so the
// dedup pass keeps the priority copy. Candidates below the credibility
// threshold are skipped, candidates featured within the trailing exclusion
// window are dropped before any judge sees them.
func (a *Aggregator) Aggregate(ctx context.Context, primary, queued []domain.Candidate, now time.Time) ([]domain.Candidate, *domain.RunSummary, error) {
	summary := domain.NewRunSummary("aggregate")

	ranks, err := a.sources.GetSourceRanks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get source ranks: %w", err)
	}
	recentIDs, err := a.recent.GetRecentStoryIDs(ctx, slots.ExclusionWindowDays, now)
	if err != nil {
		return nil, nil, fmt.Errorf("get recent story ids: %w", err)
	}

	// queued first, dedup by story id keeps the queued copy
	merged := make([]domain.Candidate, 0, len(primary)+len(queued))
	seen := make(map[string]bool, len(primary)+len(queued))
	for _, c := range append(append([]domain.Candidate{}, queued...), primary...) {
		if c.StoryID == "" || seen[c.StoryID] {
			continue
		}
		seen[c.StoryID] = true
		merged = append(merged, c)
	}

	var out []domain.Candidate
	var pivotIDs []string
	for _, c := range merged {
		if recentIDs[c.StoryID] {
			summary.Skipped++
			continue
		}

		credibility, ok := ranks[c.Source]
		if !ok {
			credibility = domain.NeutralCredibility
		}
		if credibility < a.cfg.MinCredibility {
			lgr.Printf("[DEBUG] skipping %s, source %q credibility %.1f below %.1f", c.StoryID, c.Source, credibility, a.cfg.MinCredibility)
			summary.Skipped++
			continue
		}
		c.Credibility = credibility

		out = append(out, c)
		if c.PivotID != "" {
			pivotIDs = append(pivotIDs, c.PivotID)
		}
	}

	// attach article detail in one batch lookup
	if len(pivotIDs) > 0 {
		articles, err := a.articles.GetArticlesByPivotIDs(ctx, pivotIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("get articles by pivot ids: %w", err)
		}
		for i := range out {
			article, ok := articles[out[i].PivotID]
			if !ok {
				continue
			}
			if out[i].URL == "" {
				out[i].URL = article.URL
			}
			if out[i].Summary == "" {
				out[i].Summary = article.Summary
			}
			if out[i].Published.IsZero() {
				out[i].Published = article.Published
			}
		}
	}

	summary.Processed = len(out)
	lgr.Printf("[INFO] aggregated %d candidates (%d skipped) from %d primary and %d queued",
		len(out), summary.Skipped, len(primary), len(queued))
	return out, summary, nil
}
