package scheduler

import (
	"context"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/feed"
	"pressbrief/pkg/ident"
)

// ingestAllFeeds fetches every enabled source concurrently and stores the
// new articles. A failure on one source never affects the others.
func (s *Scheduler) ingestAllFeeds(ctx context.Context) {
	sources, err := s.deps.Feeds.GetFeeds(ctx, true)
	if err != nil {
		lgr.Printf("[ERROR] failed to get enabled sources: %v", err)
		return
	}

	lgr.Printf("[INFO] ingesting %d sources", len(sources))

	var eg errgroup.Group
	eg.SetLimit(s.cfg.MaxWorkers)

	for _, src := range sources {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.ingestSource(ctx, src) // per-source failures are recorded, never propagated
			return nil
		})
	}

	_ = eg.Wait()
	lgr.Printf("[INFO] ingestion completed")
}

// ingestSource fetches one source and stores its new stories
func (s *Scheduler) ingestSource(ctx context.Context, src feed.Source) {
	lgr.Printf("[DEBUG] ingesting source: %s", src.URL)

	var stories []domain.ParsedStory
	var err error
	switch src.Kind {
	case feed.KindNewsletter:
		stories, err = s.deps.Scraper.Scrape(ctx, src)
	default:
		stories, err = s.deps.Parser.Parse(ctx, src)
	}
	if err != nil {
		lgr.Printf("[ERROR] failed to fetch source %s: %v", src.URL, err)
		if updErr := s.deps.Feeds.UpdateFeedError(ctx, src.ID, err.Error()); updErr != nil {
			lgr.Printf("[ERROR] failed to record source error: %v", updErr)
		}
		return
	}

	newCount := 0
	for _, story := range stories {
		pivotID := ident.PivotID(story.URL, story.Title)
		if pivotID == "" {
			continue
		}

		exists, err := s.deps.Articles.ArticleExists(ctx, pivotID)
		if err != nil {
			lgr.Printf("[ERROR] failed to check article existence: %v", err)
			continue
		}
		if exists {
			continue
		}

		article := &domain.Article{
			PivotID:   pivotID,
			URL:       story.URL,
			Title:     story.Title,
			Source:    story.Source,
			Summary:   story.Summary,
			Published: story.Published,
		}

		// extracted text feeds the scorer and decorator, missing text is
		// tolerable, the feed summary still carries the story
		if s.deps.Extractor != nil && story.URL != "" {
			if text, err := s.deps.Extractor.Extract(ctx, story.URL); err != nil {
				lgr.Printf("[WARN] failed to extract content from %s: %v", story.URL, err)
			} else {
				article.Content = text
			}
		}

		if err := s.deps.Articles.CreateArticle(ctx, article); err != nil {
			lgr.Printf("[ERROR] failed to create article %s: %v", pivotID, err)
			continue
		}
		newCount++
	}

	if err := s.deps.Feeds.UpdateFeedFetched(ctx, src.ID); err != nil {
		lgr.Printf("[ERROR] failed to update source fetch time: %v", err)
	}

	if newCount > 0 {
		lgr.Printf("[INFO] added %d new articles from %s", newCount, src.Title)
	}
}
