package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressbrief/pkg/domain"
)

func TestPreFilterRepository_UpsertAndGet(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	entries := []domain.PreFilterEntry{
		{StoryID: "st-a", Slot: 1, Headline: "lead", Source: "verge", Company: "openai", Published: now.Add(-time.Hour), RunDate: "2026-08-28"},
		{StoryID: "st-a", Slot: 2, Headline: "lead", Source: "verge", Company: "openai", Published: now.Add(-time.Hour), RunDate: "2026-08-28"},
		{StoryID: "st-b", Slot: 1, Headline: "second", Source: "wired", Published: now.Add(-30 * time.Minute), RunDate: "2026-08-28"},
	}
	require.NoError(t, repos.PreFilter.UpsertEntries(ctx, entries))

	slot1, err := repos.PreFilter.GetEntriesForSlot(ctx, 1, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, slot1, 2)
	assert.Equal(t, "st-b", slot1[0].StoryID, "most recently published first")
	assert.Equal(t, "st-a", slot1[1].StoryID)

	slot2, err := repos.PreFilter.GetEntriesForSlot(ctx, 2, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, slot2, 1)

	// older run dates are excluded
	none, err := repos.PreFilter.GetEntriesForSlot(ctx, 1, "2026-08-29")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPreFilterRepository_UpsertReplaces(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repos.PreFilter.UpsertEntries(ctx, []domain.PreFilterEntry{
		{StoryID: "st-a", Slot: 1, Headline: "first pass", Published: now, RunDate: "2026-08-27"},
	}))
	require.NoError(t, repos.PreFilter.UpsertEntries(ctx, []domain.PreFilterEntry{
		{StoryID: "st-a", Slot: 1, Headline: "second pass", Published: now, RunDate: "2026-08-28"},
	}))

	entries, err := repos.PreFilter.GetEntriesForSlot(ctx, 1, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, entries, 1, "re-run updates instead of duplicating")
	assert.Equal(t, "second pass", entries[0].Headline)
	assert.Equal(t, "2026-08-28", entries[0].RunDate)
}

func TestPreFilterRepository_UpsertEmpty(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repos.PreFilter.UpsertEntries(context.Background(), nil))
}
