package newsletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressbrief/pkg/config"
	"pressbrief/pkg/domain"
	"pressbrief/pkg/llm"
	"pressbrief/pkg/slots"
)

type fakePreFilterStore struct{ bySlot map[int][]domain.PreFilterEntry }

func (f *fakePreFilterStore) GetEntriesForSlot(_ context.Context, slot int, _ string) ([]domain.PreFilterEntry, error) {
	return f.bySlot[slot], nil
}

type fakeCandidateStore struct{ byID map[string]*domain.Candidate }

func (f *fakeCandidateStore) GetCandidatesByStoryIDs(_ context.Context, storyIDs []string) (map[string]*domain.Candidate, error) {
	out := make(map[string]*domain.Candidate)
	for _, id := range storyIDs {
		if c, ok := f.byID[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeIssueStore struct {
	recent      map[string]bool
	slot1ByDate map[string]string
	subjects    []string
	saved       *domain.Issue
}

func (f *fakeIssueStore) GetRecentStoryIDs(_ context.Context, _ int, _ time.Time) (map[string]bool, error) {
	if f.recent == nil {
		return map[string]bool{}, nil
	}
	return f.recent, nil
}

func (f *fakeIssueStore) GetSlot1Company(_ context.Context, issueDate string) (string, error) {
	return f.slot1ByDate[issueDate], nil
}

func (f *fakeIssueStore) GetRecentSubjects(_ context.Context, _ int) ([]string, error) {
	return f.subjects, nil
}

func (f *fakeIssueStore) SaveIssue(_ context.Context, issue *domain.Issue) error {
	f.saved = issue
	return nil
}

// firstInPoolJudge deterministically picks the first candidate offered
type firstInPoolJudge struct{}

func (firstInPoolJudge) Select(_ context.Context, _ slots.Definition, pool []domain.Candidate, _ *domain.SelectionState) (llm.Selection, error) {
	return llm.Selection{StoryID: pool[0].StoryID, Reason: "first in pool"}, nil
}

type fixedSubjectJudge struct {
	subject string
	err     error
}

func (f fixedSubjectJudge) Subject(_ context.Context, _ []domain.SlotAssignment, _ []string) (string, error) {
	return f.subject, f.err
}

func selectorFixture() (*fakePreFilterStore, *fakeCandidateStore, *fakeIssueStore) {
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	// newest first by published time so the pool order is deterministic
	candidates := map[string]*domain.Candidate{
		"st-a": {StoryID: "st-a", Headline: "OpenAI launch", Company: "openai", Source: "verge", Published: now.Add(-1 * time.Hour)},
		"st-b": {StoryID: "st-b", Headline: "OpenAI follow-up", Company: "openai", Source: "wired", Published: now.Add(-2 * time.Hour)},
		"st-c": {StoryID: "st-c", Headline: "Open dataset drop", Company: "", Source: "verge", Published: now.Add(-3 * time.Hour)},
		"st-d": {StoryID: "st-d", Headline: "Meta research", Company: "meta", Source: "verge", Published: now.Add(-4 * time.Hour)},
		"st-e": {StoryID: "st-e", Headline: "Google tooling", Company: "google", Source: "ft", Published: now.Add(-5 * time.Hour)},
		"st-f": {StoryID: "st-f", Headline: "Quiet infra story", Company: "", Source: "ft", Published: now.Add(-6 * time.Hour)},
		"st-g": {StoryID: "st-g", Headline: "Mistral release", Company: "mistral", Source: "bloomberg", Published: now.Add(-7 * time.Hour)},
	}

	entries := make(map[int][]domain.PreFilterEntry)
	for slot := 1; slot <= domain.SlotCount; slot++ {
		for id := range candidates {
			entries[slot] = append(entries[slot], domain.PreFilterEntry{StoryID: id, Slot: slot})
		}
	}

	return &fakePreFilterStore{bySlot: entries}, &fakeCandidateStore{byID: candidates}, &fakeIssueStore{}
}

func selectorConfig() config.NewsletterConfig {
	return config.NewsletterConfig{Name: "Pressbrief Daily", RecentSubjects: 20}
}

func TestSelector_DiversityProperties(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	sel := NewSelector(firstInPoolJudge{}, fixedSubjectJudge{subject: "Today in AI"}, entries, candidates, issues, selectorConfig())

	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	issue, summary, err := sel.Run(context.Background(), now)
	require.NoError(t, err)
	require.NotNil(t, issues.saved)
	assert.Equal(t, "2026-08-25", issue.IssueDate)
	assert.Equal(t, "Today in AI", issue.Subject)
	assert.Equal(t, domain.SlotCount, summary.Processed)

	// no story appears in more than one slot
	seen := make(map[string]bool)
	for _, slot := range issue.Slots {
		assert.False(t, seen[slot.StoryID], "story %s duplicated across slots", slot.StoryID)
		seen[slot.StoryID] = true
	}
	assert.Len(t, seen, len(issue.Slots))

	// no company in more than one slot
	companies := make(map[string]int)
	for _, slot := range issue.Slots {
		if slot.Company != "" {
			companies[slot.Company]++
		}
	}
	for company, n := range companies {
		assert.Equal(t, 1, n, "company %s featured %d times", company, n)
	}

	// no source in more than two slots
	sources := make(map[string]int)
	for _, slot := range issue.Slots {
		sources[slot.Source]++
	}
	for source, n := range sources {
		assert.LessOrEqual(t, n, domain.MaxPerSource, "source %s used %d times", source, n)
	}
}

func TestSelector_SequentialExclusion(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	sel := NewSelector(firstInPoolJudge{}, fixedSubjectJudge{subject: "s"}, entries, candidates, issues, selectorConfig())

	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	issue, _, err := sel.Run(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, issue.Slots, 5)

	// slot 1 takes the newest story; slot 2 must skip st-b because openai
	// is already featured, landing on st-c
	assert.Equal(t, "st-a", issue.Slot(1).StoryID)
	assert.Equal(t, "st-c", issue.Slot(2).StoryID)
	// verge is exhausted after slots 1 and 2, so slot 3 skips st-d
	assert.Equal(t, "st-e", issue.Slot(3).StoryID)
	assert.Equal(t, "st-f", issue.Slot(4).StoryID)
	assert.Equal(t, "st-g", issue.Slot(5).StoryID)
}

func TestSelector_Slot1Rotation(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	issues.slot1ByDate = map[string]string{"2026-08-24": "openai"}
	sel := NewSelector(firstInPoolJudge{}, fixedSubjectJudge{subject: "s"}, entries, candidates, issues, selectorConfig())

	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	issue, _, err := sel.Run(context.Background(), now)
	require.NoError(t, err)

	slot1 := issue.Slot(1)
	require.NotNil(t, slot1)
	assert.NotEqual(t, "openai", slot1.Company, "yesterday's slot-1 company excluded from today's slot 1")
	assert.Equal(t, "st-c", slot1.StoryID, "next newest non-openai candidate takes the flagship slot")
}

func TestSelector_RecentExclusionWindow(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	issues.recent = map[string]bool{"st-a": true}
	sel := NewSelector(firstInPoolJudge{}, fixedSubjectJudge{subject: "s"}, entries, candidates, issues, selectorConfig())

	issue, _, err := sel.Run(context.Background(), time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	for _, slot := range issue.Slots {
		assert.NotEqual(t, "st-a", slot.StoryID, "recently featured story never re-selected")
	}
}

// hallucinatingJudge answers with an id that was never offered
type hallucinatingJudge struct{}

func (hallucinatingJudge) Select(_ context.Context, _ slots.Definition, _ []domain.Candidate, _ *domain.SelectionState) (llm.Selection, error) {
	return llm.Selection{StoryID: "st-invented", Reason: "sounds perfect"}, nil
}

func TestSelector_HallucinatedPickDiscarded(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	sel := NewSelector(hallucinatingJudge{}, fixedSubjectJudge{subject: "s"}, entries, candidates, issues, selectorConfig())

	issue, summary, err := sel.Run(context.Background(), time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err, "hallucination is a per-slot failure, not fatal")
	assert.Empty(t, issue.Slots, "out-of-pool ids never written into the issue")
	assert.Equal(t, domain.SlotCount, summary.Failed)
	require.NotNil(t, issues.saved, "partial issue still persisted")
}

// decliningJudge always answers none
type decliningJudge struct{}

func (decliningJudge) Select(_ context.Context, _ slots.Definition, _ []domain.Candidate, _ *domain.SelectionState) (llm.Selection, error) {
	return llm.Selection{Reason: "nothing strong enough"}, llm.ErrNonePicked
}

func TestSelector_PartialIssue(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	// drop all entries for slots 2 and 4 so those slots have no pool
	entries.bySlot[2] = nil
	entries.bySlot[4] = nil
	sel := NewSelector(firstInPoolJudge{}, fixedSubjectJudge{subject: "s"}, entries, candidates, issues, selectorConfig())

	issue, summary, err := sel.Run(context.Background(), time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err, "unfillable slots are expected outcomes")
	assert.Len(t, issue.Slots, 3)
	assert.Nil(t, issue.Slot(2))
	assert.Nil(t, issue.Slot(4))
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Failed)
}

func TestSelector_JudgeDeclines(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	sel := NewSelector(decliningJudge{}, fixedSubjectJudge{subject: "s"}, entries, candidates, issues, selectorConfig())

	issue, summary, err := sel.Run(context.Background(), time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, issue.Slots)
	assert.Equal(t, domain.SlotCount, summary.Failed)
}

func TestSelector_SubjectFallback(t *testing.T) {
	entries, candidates, issues := selectorFixture()
	sel := NewSelector(firstInPoolJudge{}, fixedSubjectJudge{err: errors.New("judge down")}, entries, candidates, issues, selectorConfig())

	issue, summary, err := sel.Run(context.Background(), time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Pressbrief Daily: OpenAI launch", issue.Subject, "deterministic fallback uses the lead headline")
	assert.NotZero(t, summary.Failed)
}
