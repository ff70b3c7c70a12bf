package newsletter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/config"
	"pressbrief/pkg/domain"
	"pressbrief/pkg/llm"
	"pressbrief/pkg/slots"
)

// SelectionJudge makes the final pick for one slot
type SelectionJudge interface {
	Select(ctx context.Context, slot slots.Definition, pool []domain.Candidate, state *domain.SelectionState) (llm.Selection, error)
}

// SubjectJudge writes the issue subject line
type SubjectJudge interface {
	Subject(ctx context.Context, assignments []domain.SlotAssignment, recentSubjects []string) (string, error)
}

// PreFilterStore reads per-slot shortlists written by the pre-filter
type PreFilterStore interface {
	GetEntriesForSlot(ctx context.Context, slot int, runDate string) ([]domain.PreFilterEntry, error)
}

// CandidateStore batch-resolves candidates by story id
type CandidateStore interface {
	GetCandidatesByStoryIDs(ctx context.Context, storyIDs []string) (map[string]*domain.Candidate, error)
}

// IssueStore is the issue persistence surface the selector needs
type IssueStore interface {
	GetRecentStoryIDs(ctx context.Context, days int, today time.Time) (map[string]bool, error)
	GetSlot1Company(ctx context.Context, issueDate string) (string, error)
	GetRecentSubjects(ctx context.Context, limit int) ([]string, error)
	SaveIssue(ctx context.Context, issue *domain.Issue) error
}

// Selector fills the issue's slots strictly in order 1 to 5, carrying
// cumulative diversity state from slot to slot. Slots must not be
// parallelized: each slot's pool depends on every earlier pick.
type Selector struct {
	judge      SelectionJudge
	subjects   SubjectJudge
	entries    PreFilterStore
	candidates CandidateStore
	issues     IssueStore
	cfg        config.NewsletterConfig
}

// NewSelector creates the slot selection stage
func NewSelector(judge SelectionJudge, subjects SubjectJudge, entries PreFilterStore, candidates CandidateStore, issues IssueStore, cfg config.NewsletterConfig) *Selector {
	return &Selector{judge: judge, subjects: subjects, entries: entries, candidates: candidates, issues: issues, cfg: cfg}
}

// Run selects stories for the issue dated now. An unfillable slot is a
// recorded, expected outcome; the issue is written with whatever slots
// were filled.
func (s *Selector) Run(ctx context.Context, now time.Time) (*domain.Issue, *domain.RunSummary, error) {
	issueDate := now.Format("2006-01-02")
	summary := domain.NewRunSummary("select")

	recentIDs, err := s.issues.GetRecentStoryIDs(ctx, slots.ExclusionWindowDays, now)
	if err != nil {
		return nil, nil, fmt.Errorf("get recent story ids: %w", err)
	}

	rotationCompanies, err := s.slot1RotationCompanies(ctx, now)
	if err != nil {
		return nil, nil, fmt.Errorf("get slot 1 rotation companies: %w", err)
	}

	state := domain.NewSelectionState()
	issue := &domain.Issue{IssueDate: issueDate, Status: domain.IssuePending}

	for _, def := range slots.Definitions() {
		outcome := s.selectSlot(ctx, def, issueDate, state, recentIDs, rotationCompanies)
		switch outcome.Result {
		case domain.Selected:
			story := outcome.Story
			state.Record(story)
			issue.Slots = append(issue.Slots, domain.SlotAssignment{
				Slot:     def.Slot,
				StoryID:  story.StoryID,
				PivotID:  story.PivotID,
				Headline: story.Headline,
				Source:   story.Source,
				Company:  story.Company,
			})
			summary.Processed++
			lgr.Printf("[INFO] slot %d: selected %s (%s)", def.Slot, story.StoryID, story.Headline)
		case domain.NoneEligible:
			summary.AddError(fmt.Sprintf("slot %d", def.Slot), errors.New("no candidates available"))
			lgr.Printf("[WARN] slot %d: no candidates available", def.Slot)
		case domain.JudgeRejected:
			summary.AddError(fmt.Sprintf("slot %d", def.Slot), fmt.Errorf("judge declined: %s", outcome.Reason))
			lgr.Printf("[WARN] slot %d: judge declined, %s", def.Slot, outcome.Reason)
		case domain.JudgeFailed:
			summary.AddError(fmt.Sprintf("slot %d", def.Slot), errors.New(outcome.Reason))
			lgr.Printf("[WARN] slot %d: judge failed, %s", def.Slot, outcome.Reason)
		}
	}

	issue.Subject = s.writeSubject(ctx, issue.Slots, issueDate, summary)

	if err := s.issues.SaveIssue(ctx, issue); err != nil {
		return nil, nil, fmt.Errorf("save issue: %w", err)
	}

	if len(issue.Slots) < domain.SlotCount {
		lgr.Printf("[WARN] issue %s filled %d of %d slots", issueDate, len(issue.Slots), domain.SlotCount)
	}
	return issue, summary, nil
}

// selectSlot builds the pool for one slot and asks the judge for a pick
func (s *Selector) selectSlot(ctx context.Context, def slots.Definition, issueDate string, state *domain.SelectionState,
	recentIDs map[string]bool, rotationCompanies map[string]bool) domain.SelectionOutcome {

	entries, err := s.entries.GetEntriesForSlot(ctx, def.Slot, issueDate)
	if err != nil {
		return domain.SelectionOutcome{Result: domain.JudgeFailed, Slot: def.Slot, Reason: fmt.Sprintf("load entries: %v", err)}
	}

	var ids []string
	for _, e := range entries {
		if state.SelectedIDs[e.StoryID] || recentIDs[e.StoryID] {
			continue
		}
		ids = append(ids, e.StoryID)
	}
	if len(ids) == 0 {
		return domain.SelectionOutcome{Result: domain.NoneEligible, Slot: def.Slot}
	}

	byID, err := s.candidates.GetCandidatesByStoryIDs(ctx, ids)
	if err != nil {
		return domain.SelectionOutcome{Result: domain.JudgeFailed, Slot: def.Slot, Reason: fmt.Sprintf("load candidates: %v", err)}
	}

	pool := s.buildPool(def.Slot, ids, byID, state, rotationCompanies)
	if len(pool) == 0 {
		return domain.SelectionOutcome{Result: domain.NoneEligible, Slot: def.Slot}
	}

	sel, err := s.judge.Select(ctx, def, pool, state)
	switch {
	case errors.Is(err, llm.ErrNonePicked):
		return domain.SelectionOutcome{Result: domain.JudgeRejected, Slot: def.Slot, Reason: sel.Reason}
	case errors.Is(err, llm.ErrOutOfPool):
		// hallucinated id, never trust an out-of-pool pick
		return domain.SelectionOutcome{Result: domain.JudgeFailed, Slot: def.Slot, Reason: err.Error()}
	case err != nil:
		return domain.SelectionOutcome{Result: domain.JudgeFailed, Slot: def.Slot, Reason: err.Error()}
	}

	for i := range pool {
		if pool[i].StoryID == sel.StoryID {
			return domain.SelectionOutcome{Result: domain.Selected, Slot: def.Slot, Story: &pool[i], Reason: sel.Reason}
		}
	}
	// validated by the judge layer, but never write an unverified id
	return domain.SelectionOutcome{Result: domain.JudgeFailed, Slot: def.Slot, Reason: "pick not in pool"}
}

// buildPool orders eligible candidates by recency, caps the pool size and
// drops candidates that would break a diversity constraint. Company
// matching is exact-string on judge-extracted names, best-effort only.
func (s *Selector) buildPool(slot int, ids []string, byID map[string]*domain.Candidate,
	state *domain.SelectionState, rotationCompanies map[string]bool) []domain.Candidate {

	var pool []domain.Candidate
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		if c.Company != "" && state.Companies[c.Company] {
			continue
		}
		if state.SourceCounts[c.Source] >= domain.MaxPerSource {
			continue
		}
		if slot == 1 && c.Company != "" && rotationCompanies[c.Company] {
			continue
		}
		pool = append(pool, *c)
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].Published.After(pool[j].Published) })
	if len(pool) > slots.MaxPoolSize {
		pool = pool[:slots.MaxPoolSize]
	}
	return pool
}

// slot1RotationCompanies collects companies featured in slot 1 over the
// rotation window, excluded from today's slot 1 pool
func (s *Selector) slot1RotationCompanies(ctx context.Context, now time.Time) (map[string]bool, error) {
	out := make(map[string]bool)
	for d := 1; d < slots.Slot1RotationDays; d++ {
		date := now.AddDate(0, 0, -d).Format("2006-01-02")
		company, err := s.issues.GetSlot1Company(ctx, date)
		if err != nil {
			return nil, err
		}
		if company != "" {
			out[company] = true
		}
	}
	return out, nil
}

// writeSubject asks the subject judge for a line, falling back to a
// deterministic subject when the judge fails or no slots were filled
func (s *Selector) writeSubject(ctx context.Context, assignments []domain.SlotAssignment, issueDate string, summary *domain.RunSummary) string {
	fallback := fmt.Sprintf("%s: %s", s.cfg.Name, issueDate)
	if len(assignments) > 0 {
		fallback = fmt.Sprintf("%s: %s", s.cfg.Name, assignments[0].Headline)
	}
	if len(assignments) == 0 {
		return fallback
	}

	recent, err := s.issues.GetRecentSubjects(ctx, s.cfg.RecentSubjects)
	if err != nil {
		lgr.Printf("[WARN] failed to load recent subjects: %v", err)
		recent = nil
	}

	subject, err := s.subjects.Subject(ctx, assignments, recent)
	if err != nil {
		summary.AddError("subject", err)
		lgr.Printf("[WARN] subject judge failed, using fallback: %v", err)
		return fallback
	}
	return subject
}
