package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/repository"
)

// candidateLookback bounds how far back the pipeline pulls scored
// candidates, wide enough to cover the longest slot freshness window
const candidateLookback = 8 * 24 * time.Hour

// candidateLimit caps the primary candidate fetch per run
const candidateLimit = 200

// runPipeline executes the daily selection chain: aggregate, pre-filter,
// select, decorate, generate images, compile. Each stage's partial
// failures are logged through its run summary; a structural failure stops
// the chain and leaves the issue where the last stage put it.
func (s *Scheduler) runPipeline(ctx context.Context) {
	now := time.Now().In(s.cfg.Location)
	lgr.Printf("[INFO] starting pipeline run for %s", now.Format("2006-01-02"))

	candidates, queuedIDs, err := s.gatherCandidates(ctx, now)
	if err != nil {
		lgr.Printf("[ERROR] pipeline aborted: %v", err)
		return
	}
	if len(candidates) == 0 {
		lgr.Printf("[WARN] pipeline run ended: no candidates")
		return
	}

	if summary, err := s.deps.PreFilter.Run(ctx, candidates, now); err != nil {
		lgr.Printf("[ERROR] pre-filter failed: %v", err)
		return
	} else if summary.Failed > 0 {
		lgr.Printf("[WARN] pre-filter finished with failures: %s", summary.String())
	}

	issue, summary, err := s.deps.Selector.Run(ctx, now)
	if err != nil {
		lgr.Printf("[ERROR] selection failed: %v", err)
		return
	}
	lgr.Printf("[INFO] selection: %s", summary.String())
	if len(issue.Slots) == 0 {
		lgr.Printf("[WARN] pipeline run ended: no slots filled for %s", issue.IssueDate)
		return
	}

	// consume queued stories that made it into the issue
	for _, slot := range issue.Slots {
		if !queuedIDs[slot.StoryID] {
			continue
		}
		if err := s.deps.Candidates.MarkQueuedConsumed(ctx, slot.StoryID); err != nil {
			lgr.Printf("[WARN] failed to mark queued story %s consumed: %v", slot.StoryID, err)
		}
	}

	if summary, err := s.deps.Decorator.Run(ctx, issue); err != nil {
		lgr.Printf("[ERROR] decoration failed: %v", err)
		return
	} else if summary.Failed > 0 {
		lgr.Printf("[WARN] decoration finished with failures: %s", summary.String())
	}

	// generate images before compiling so finished ones make the email
	s.processPendingImages(ctx)

	if _, err := s.deps.Compiler.Run(ctx, issue); err != nil {
		lgr.Printf("[ERROR] compilation failed: %v", err)
		return
	}

	lgr.Printf("[INFO] pipeline run completed for %s", issue.IssueDate)
}

// gatherCandidates pulls scored and queued candidates and runs aggregation
func (s *Scheduler) gatherCandidates(ctx context.Context, now time.Time) ([]domain.Candidate, map[string]bool, error) {
	scored, err := s.deps.Candidates.GetCandidates(ctx, repository.CandidateFilter{
		MinScore: s.cfg.MinInterest,
		Since:    now.Add(-candidateLookback),
		Limit:    candidateLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get candidates: %w", err)
	}

	queued, err := s.deps.Candidates.GetQueuedStories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get queued stories: %w", err)
	}

	primary := make([]domain.Candidate, 0, len(scored))
	for _, c := range scored {
		primary = append(primary, *c)
	}

	queuedIDs := make(map[string]bool, len(queued))
	queuedCandidates := make([]domain.Candidate, 0, len(queued))
	for _, q := range queued {
		queuedIDs[q.StoryID] = true
		queuedCandidates = append(queuedCandidates, domain.Candidate{
			StoryID:   q.StoryID,
			PivotID:   q.PivotID,
			Headline:  q.Headline,
			URL:       q.URL,
			Source:    q.Source,
			Published: q.CreatedAt,
			Queued:    true,
		})
	}

	candidates, summary, err := s.deps.Aggregator.Aggregate(ctx, primary, queuedCandidates, now)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate: %w", err)
	}
	lgr.Printf("[INFO] aggregation: %s", summary.String())
	return candidates, queuedIDs, nil
}

// runSend delivers today's compiled issue
func (s *Scheduler) runSend(ctx context.Context) {
	today := time.Now().In(s.cfg.Location).Format("2006-01-02")

	issue, err := s.deps.Issues.GetIssueByDate(ctx, today)
	if err != nil {
		lgr.Printf("[ERROR] no issue to send for %s: %v", today, err)
		return
	}

	switch issue.Status {
	case domain.IssueCompiled, domain.IssueNextSend:
	case domain.IssueSent:
		lgr.Printf("[INFO] issue %s already sent", today)
		return
	default:
		lgr.Printf("[WARN] issue %s not ready to send, status %s", today, issue.Status)
		return
	}

	if _, err := s.deps.Distributor.Run(ctx, issue); err != nil {
		// issue keeps its status, the next scheduled attempt retries
		lgr.Printf("[ERROR] send failed for %s: %v", today, err)
		return
	}

	if s.deps.Social != nil {
		if err := s.deps.Social.QueueForIssue(ctx, issue.ID); err != nil {
			lgr.Printf("[WARN] social syndication queue failed for %s: %v", today, err)
		}
	}
}
