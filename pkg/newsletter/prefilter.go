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

// SlotJudge is the batch eligibility judge consumed by the pre-filter
type SlotJudge interface {
	Filter(ctx context.Context, slot slots.Definition, candidates []domain.Candidate, recentHeadlines []string) ([]string, error)
}

// EntryStore persists pre-filter entries with upsert-by-key semantics
type EntryStore interface {
	UpsertEntries(ctx context.Context, entries []domain.PreFilterEntry) error
}

// HeadlineStore exposes recently used headlines for judge steering
type HeadlineStore interface {
	GetRecentHeadlines(ctx context.Context, limit int) ([]string, error)
}

// PreFilter narrows the aggregated candidates to per-slot shortlists.
// Each slot gets one batched judge call; slot 1 additionally runs the
// tier-1 company keyword match and unions the results.
type PreFilter struct {
	judge   SlotJudge
	entries EntryStore
	issues  HeadlineStore
	cfg     config.NewsletterConfig
}

// NewPreFilter creates the pre-filter stage
func NewPreFilter(judge SlotJudge, entries EntryStore, issues HeadlineStore, cfg config.NewsletterConfig) *PreFilter {
	return &PreFilter{judge: judge, entries: entries, issues: issues, cfg: cfg}
}

// Run pre-filters candidates for every slot and persists the resulting
// entries. A judge failure on one slot is recorded and does not stop the
// remaining slots. An empty shortlist is a valid outcome, not an error.
func (p *PreFilter) Run(ctx context.Context, candidates []domain.Candidate, now time.Time) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary("prefilter")
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to pre-filter")
	}

	limit := p.cfg.RecentSubjects
	if limit <= 0 {
		limit = 20
	}
	recentHeadlines, err := p.issues.GetRecentHeadlines(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent headlines: %w", err)
	}

	runDate := now.Format("2006-01-02")
	weekday := now.Weekday()

	for _, def := range slots.Definitions() {
		slotCandidates := freshFor(def.Slot, candidates, now, weekday)
		if len(slotCandidates) == 0 {
			lgr.Printf("[INFO] slot %d: no fresh candidates", def.Slot)
			continue
		}

		eligible := make(map[string]bool)

		ids, err := p.judge.Filter(ctx, def, slotCandidates, recentHeadlines)
		if err != nil {
			summary.AddError(fmt.Sprintf("slot %d", def.Slot), err)
			lgr.Printf("[WARN] pre-filter judge failed for slot %d: %v", def.Slot, err)
		} else {
			for _, id := range ids {
				eligible[id] = true
			}
		}

		// recall safety net for the flagship slot: a tier-1 company in the
		// headline qualifies regardless of the judge's answer
		if def.Slot == 1 {
			for _, c := range slotCandidates {
				if slots.MatchesTier1(c.Headline) {
					eligible[c.StoryID] = true
				}
			}
		}

		if len(eligible) == 0 {
			lgr.Printf("[INFO] slot %d: no eligible candidates of %d fresh", def.Slot, len(slotCandidates))
			continue
		}

		entries := make([]domain.PreFilterEntry, 0, len(eligible))
		for _, c := range slotCandidates {
			if !eligible[c.StoryID] {
				continue
			}
			entries = append(entries, domain.PreFilterEntry{
				StoryID:   c.StoryID,
				Slot:      def.Slot,
				Headline:  c.Headline,
				Source:    c.Source,
				Company:   c.Company,
				URL:       c.URL,
				Published: c.Published,
				RunDate:   runDate,
			})
		}

		if err := p.entries.UpsertEntries(ctx, entries); err != nil {
			summary.AddError(fmt.Sprintf("slot %d", def.Slot), err)
			lgr.Printf("[WARN] failed to persist slot %d entries: %v", def.Slot, err)
			continue
		}

		summary.Processed += len(entries)
		lgr.Printf("[INFO] slot %d: %d of %d candidates eligible", def.Slot, len(entries), len(slotCandidates))
	}

	return summary, nil
}

// freshFor applies the slot's freshness window to the candidate list
func freshFor(slot int, candidates []domain.Candidate, now time.Time, weekday time.Weekday) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range candidates {
		if slots.Eligible(slot, now.Sub(c.Published), weekday) {
			out = append(out, c)
		}
	}
	return out
}
