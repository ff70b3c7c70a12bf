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
	"pressbrief/pkg/slots"
)

type stubSlotJudge struct {
	bySlot map[int][]string
	errs   map[int]error
	calls  []int
}

func (s *stubSlotJudge) Filter(_ context.Context, slot slots.Definition, _ []domain.Candidate, _ []string) ([]string, error) {
	s.calls = append(s.calls, slot.Slot)
	if err := s.errs[slot.Slot]; err != nil {
		return nil, err
	}
	return s.bySlot[slot.Slot], nil
}

type stubEntryStore struct {
	entries []domain.PreFilterEntry
	err     error
}

func (s *stubEntryStore) UpsertEntries(_ context.Context, entries []domain.PreFilterEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

type stubHeadlineStore struct {
	headlines []string
	gotLimit  int
}

func (s *stubHeadlineStore) GetRecentHeadlines(_ context.Context, limit int) ([]string, error) {
	s.gotLimit = limit
	return s.headlines, nil
}

// entriesForSlot filters recorded entries by slot number
func entriesForSlot(entries []domain.PreFilterEntry, slot int) []domain.PreFilterEntry {
	var out []domain.PreFilterEntry
	for _, e := range entries {
		if e.Slot == slot {
			out = append(out, e)
		}
	}
	return out
}

func TestPreFilter_Run(t *testing.T) {
	// Tuesday morning, all candidates 10h old, fresh for every slot
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	published := now.Add(-10 * time.Hour)

	candidates := []domain.Candidate{
		{StoryID: "st-1", Headline: "Anthropic ships new model", Source: "verge", Published: published},
		{StoryID: "st-2", Headline: "Indie lab publishes benchmark", Source: "arxiv", Published: published},
		{StoryID: "st-3", Headline: "New agent framework released", Source: "github", Published: published},
	}

	judge := &stubSlotJudge{bySlot: map[int][]string{
		1: {"st-1"},
		3: {"st-2"},
		5: {"st-3"},
	}}
	store := &stubEntryStore{}

	pf := NewPreFilter(judge, store, &stubHeadlineStore{headlines: []string{"Old headline"}}, config.NewsletterConfig{RecentSubjects: 20})
	summary, err := pf.Run(context.Background(), candidates, now)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, judge.calls, "one batched call per slot")
	assert.Len(t, entriesForSlot(store.entries, 1), 1)
	assert.Len(t, entriesForSlot(store.entries, 3), 1)
	assert.Equal(t, "st-2", entriesForSlot(store.entries, 3)[0].StoryID)
	assert.Equal(t, "2026-08-25", store.entries[0].RunDate)
	assert.Equal(t, 3, summary.Processed)
	assert.Zero(t, summary.Failed)
}

func TestPreFilter_Slot1KeywordUnion(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	candidates := []domain.Candidate{
		{StoryID: "s1", Headline: "OpenAI launches X", Source: "verge", Published: now.Add(-10 * time.Hour)},
		{StoryID: "s2", Headline: "Small tool update", Source: "blog", Published: now.Add(-10 * time.Hour)},
	}

	// judge returns nothing at all; the keyword net must still catch s1
	judge := &stubSlotJudge{bySlot: map[int][]string{}}
	store := &stubEntryStore{}

	pf := NewPreFilter(judge, store, &stubHeadlineStore{}, config.NewsletterConfig{})
	_, err := pf.Run(context.Background(), candidates, now)
	require.NoError(t, err)

	slot1 := entriesForSlot(store.entries, 1)
	require.Len(t, slot1, 1)
	assert.Equal(t, "s1", slot1[0].StoryID, "tier-1 company headline included despite empty judge answer")
}

func TestPreFilter_JudgeFailureIsolated(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	candidates := []domain.Candidate{
		{StoryID: "st-1", Headline: "Research result", Source: "arxiv", Published: now.Add(-10 * time.Hour)},
	}

	judge := &stubSlotJudge{
		bySlot: map[int][]string{3: {"st-1"}, 5: {"st-1"}},
		errs:   map[int]error{2: errors.New("judge timeout")},
	}
	store := &stubEntryStore{}

	pf := NewPreFilter(judge, store, &stubHeadlineStore{}, config.NewsletterConfig{})
	summary, err := pf.Run(context.Background(), candidates, now)
	require.NoError(t, err, "one slot's judge failure does not abort the run")

	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, entriesForSlot(store.entries, 3), 1)
	assert.Len(t, entriesForSlot(store.entries, 5), 1)
}

func TestPreFilter_FreshnessWindows(t *testing.T) {
	// Tuesday run; an 80h-old story is only fresh for slots 3 and 5
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	candidates := []domain.Candidate{
		{StoryID: "st-old", Headline: "Last week's research", Source: "arxiv", Published: now.Add(-80 * time.Hour)},
	}

	judge := &stubSlotJudge{bySlot: map[int][]string{
		1: {"st-old"}, 2: {"st-old"}, 3: {"st-old"}, 4: {"st-old"}, 5: {"st-old"},
	}}
	store := &stubEntryStore{}

	pf := NewPreFilter(judge, store, &stubHeadlineStore{}, config.NewsletterConfig{})
	_, err := pf.Run(context.Background(), candidates, now)
	require.NoError(t, err)

	assert.Empty(t, entriesForSlot(store.entries, 1))
	assert.Empty(t, entriesForSlot(store.entries, 2))
	assert.Len(t, entriesForSlot(store.entries, 3), 1)
	assert.Empty(t, entriesForSlot(store.entries, 4))
	assert.Len(t, entriesForSlot(store.entries, 5), 1)
	assert.Equal(t, []int{3, 5}, judge.calls, "stale-for-slot candidates never reach the judge")
}

func TestPreFilter_RecentHeadlineLimit(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	candidates := []domain.Candidate{
		{StoryID: "st-1", Headline: "Story", Source: "verge", Published: now.Add(-2 * time.Hour)},
	}

	t.Run("configured", func(t *testing.T) {
		headlines := &stubHeadlineStore{}
		pf := NewPreFilter(&stubSlotJudge{}, &stubEntryStore{}, headlines, config.NewsletterConfig{RecentSubjects: 40})
		_, err := pf.Run(context.Background(), candidates, now)
		require.NoError(t, err)
		assert.Equal(t, 40, headlines.gotLimit)
	})

	t.Run("default", func(t *testing.T) {
		headlines := &stubHeadlineStore{}
		pf := NewPreFilter(&stubSlotJudge{}, &stubEntryStore{}, headlines, config.NewsletterConfig{})
		_, err := pf.Run(context.Background(), candidates, now)
		require.NoError(t, err)
		assert.Equal(t, 20, headlines.gotLimit)
	})
}

func TestPreFilter_WeekendExtendedWindows(t *testing.T) {
	// Monday run; a 60h-old Friday story stays fresh for the extended
	// slots 1, 2 and 4 on top of the week-long windows
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, now.Weekday())

	candidates := []domain.Candidate{
		{StoryID: "st-fri", Headline: "Friday launch", Source: "verge", Published: now.Add(-60 * time.Hour)},
	}
	judge := &stubSlotJudge{bySlot: map[int][]string{
		1: {"st-fri"}, 2: {"st-fri"}, 3: {"st-fri"}, 4: {"st-fri"}, 5: {"st-fri"},
	}}
	store := &stubEntryStore{}

	pf := NewPreFilter(judge, store, &stubHeadlineStore{}, config.NewsletterConfig{})
	_, err := pf.Run(context.Background(), candidates, now)
	require.NoError(t, err)

	assert.Len(t, entriesForSlot(store.entries, 1), 1)
	assert.Len(t, entriesForSlot(store.entries, 2), 1)
	assert.Len(t, entriesForSlot(store.entries, 4), 1)
}

func TestPreFilter_NoCandidates(t *testing.T) {
	pf := NewPreFilter(&stubSlotJudge{}, &stubEntryStore{}, &stubHeadlineStore{}, config.NewsletterConfig{})
	_, err := pf.Run(context.Background(), nil, time.Now())
	require.Error(t, err, "an empty run is structural, not partial")
}
