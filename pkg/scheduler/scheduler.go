// Package scheduler drives the periodic workers: feed ingestion, article
// scoring, the daily selection pipeline, image generation and the send.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/feed"
	"pressbrief/pkg/llm"
	"pressbrief/pkg/repository"
)

// FeedStore is the feed persistence surface for ingestion
type FeedStore interface {
	GetFeeds(ctx context.Context, enabledOnly bool) ([]feed.Source, error)
	UpdateFeedFetched(ctx context.Context, feedID int64) error
	UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error
}

// ArticleStore is the article persistence surface for ingestion and scoring
type ArticleStore interface {
	CreateArticle(ctx context.Context, a *domain.Article) error
	ArticleExists(ctx context.Context, pivotID string) (bool, error)
	GetUnscoredArticles(ctx context.Context, limit int) ([]*domain.Article, error)
	UpdateArticleScore(ctx context.Context, pivotID string, interest, topic float64, company string) error
}

// CandidateStore is the candidate persistence surface for scoring and
// pipeline runs
type CandidateStore interface {
	CreateCandidate(ctx context.Context, c *domain.Candidate) error
	GetCandidates(ctx context.Context, f repository.CandidateFilter) ([]*domain.Candidate, error)
	GetQueuedStories(ctx context.Context) ([]*domain.QueuedStory, error)
	MarkQueuedConsumed(ctx context.Context, storyID string) error
}

// IssueStore resolves issues for the send worker
type IssueStore interface {
	GetIssueByDate(ctx context.Context, issueDate string) (*domain.Issue, error)
}

// ImageStore exposes pending image work
type ImageStore interface {
	GetPendingImages(ctx context.Context, limit int) ([]*domain.Decoration, error)
	UpdateImage(ctx context.Context, decorationID int64, imageURL string, status domain.ImageStatus) error
}

// Parser fetches and parses RSS/Atom sources
type Parser interface {
	Parse(ctx context.Context, src feed.Source) ([]domain.ParsedStory, error)
}

// Scraper extracts stories from newsletter archive sources
type Scraper interface {
	Scrape(ctx context.Context, src feed.Source) ([]domain.ParsedStory, error)
}

// Extractor pulls article text from story URLs
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Scorer rates articles for newsletter interest
type Scorer interface {
	Score(ctx context.Context, articles []domain.Article) ([]llm.Score, error)
}

// Aggregator merges scored and queued candidates
type Aggregator interface {
	Aggregate(ctx context.Context, primary, queued []domain.Candidate, now time.Time) ([]domain.Candidate, *domain.RunSummary, error)
}

// PreFilter narrows candidates to per-slot shortlists
type PreFilter interface {
	Run(ctx context.Context, candidates []domain.Candidate, now time.Time) (*domain.RunSummary, error)
}

// Selector fills the issue's slots
type Selector interface {
	Run(ctx context.Context, now time.Time) (*domain.Issue, *domain.RunSummary, error)
}

// Decorator generates editorial copy for an issue
type Decorator interface {
	Run(ctx context.Context, issue *domain.Issue) (*domain.RunSummary, error)
}

// Compiler assembles the email artifact
type Compiler interface {
	Run(ctx context.Context, issue *domain.Issue) (*domain.RunSummary, error)
}

// Distributor sends the compiled issue
type Distributor interface {
	Run(ctx context.Context, issue *domain.Issue) (*domain.RunSummary, error)
}

// ImageGenerator produces illustration bytes from a prompt
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ImageHost uploads finished illustrations
type ImageHost interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// SocialSyncer queues a sent issue's content for social syndication
type SocialSyncer interface {
	QueueForIssue(ctx context.Context, issueID int64) error
}

// Config holds scheduler configuration
type Config struct {
	IngestInterval time.Duration
	ScoreInterval  time.Duration
	ImageInterval  time.Duration
	PipelineHour   int
	SendHour       int
	MaxWorkers     int
	MinInterest    float64
	BatchSize      int
	TargetWidth    int
	Weekdays       []time.Weekday
	Location       *time.Location
}

// Deps collects the scheduler's collaborators
type Deps struct {
	Feeds      FeedStore
	Articles   ArticleStore
	Candidates CandidateStore
	Issues     IssueStore
	Images     ImageStore

	Parser    Parser
	Scraper   Scraper
	Extractor Extractor
	Scorer    Scorer

	Aggregator  Aggregator
	PreFilter   PreFilter
	Selector    Selector
	Decorator   Decorator
	Compiler    Compiler
	Distributor Distributor

	Generator ImageGenerator
	Host      ImageHost
	Social    SocialSyncer // optional
}

// Scheduler runs the periodic workers and exposes manual triggers
type Scheduler struct {
	deps   Deps
	cfg    Config
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler with defaults applied
func NewScheduler(deps Deps, cfg Config) *Scheduler {
	if cfg.IngestInterval == 0 {
		cfg.IngestInterval = 30 * time.Minute
	}
	if cfg.ScoreInterval == 0 {
		cfg.ScoreInterval = 15 * time.Minute
	}
	if cfg.ImageInterval == 0 {
		cfg.ImageInterval = 5 * time.Minute
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if len(cfg.Weekdays) == 0 {
		cfg.Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Scheduler{deps: deps, cfg: cfg}
}

// Start begins all workers
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.intervalWorker(ctx, s.cfg.IngestInterval, true, s.ingestAllFeeds)

	s.wg.Add(1)
	go s.intervalWorker(ctx, s.cfg.ScoreInterval, false, s.scorePending)

	s.wg.Add(1)
	go s.intervalWorker(ctx, s.cfg.ImageInterval, false, s.processPendingImages)

	s.wg.Add(1)
	go s.dailyWorker(ctx, s.cfg.PipelineHour, s.runPipeline)

	s.wg.Add(1)
	go s.dailyWorker(ctx, s.cfg.SendHour, s.runSend)

	lgr.Printf("[INFO] scheduler started: ingest %v, score %v, images %v, pipeline at %02d:00, send at %02d:00",
		s.cfg.IngestInterval, s.cfg.ScoreInterval, s.cfg.ImageInterval, s.cfg.PipelineHour, s.cfg.SendHour)
}

// Stop gracefully stops all workers
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// intervalWorker runs fn on a fixed ticker, optionally once at startup
func (s *Scheduler) intervalWorker(ctx context.Context, interval time.Duration, immediate bool, fn func(ctx context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if immediate {
		fn(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// dailyWorker runs fn once per delivery day at the given local hour
func (s *Scheduler) dailyWorker(ctx context.Context, hour int, fn func(ctx context.Context)) {
	defer s.wg.Done()

	for {
		next := s.nextRun(time.Now().In(s.cfg.Location), hour)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			if s.deliveryDay(next.Weekday()) {
				fn(ctx)
			}
		}
	}
}

// nextRun returns the next occurrence of the given hour after now
func (s *Scheduler) nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, s.cfg.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) deliveryDay(wd time.Weekday) bool {
	for _, d := range s.cfg.Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}

// TriggerIngest runs feed ingestion immediately
func (s *Scheduler) TriggerIngest(ctx context.Context) {
	lgr.Printf("[INFO] triggered immediate ingestion")
	s.ingestAllFeeds(ctx)
}

// TriggerScore runs article scoring immediately
func (s *Scheduler) TriggerScore(ctx context.Context) {
	lgr.Printf("[INFO] triggered immediate scoring")
	s.scorePending(ctx)
}

// TriggerPipeline runs the daily selection pipeline immediately,
// regardless of the delivery calendar
func (s *Scheduler) TriggerPipeline(ctx context.Context) {
	lgr.Printf("[INFO] triggered immediate pipeline run")
	s.runPipeline(ctx)
}

// TriggerSend sends today's compiled issue immediately
func (s *Scheduler) TriggerSend(ctx context.Context) {
	lgr.Printf("[INFO] triggered immediate send")
	s.runSend(ctx)
}
