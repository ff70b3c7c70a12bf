package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/feed"
)

func TestFeedRepository_CreateAndGet(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	rss := &feed.Source{URL: "https://example.com/feed.xml", Title: "rss source", Kind: feed.KindRSS, Enabled: true}
	letter := &feed.Source{URL: "https://letter.example.com/archive", Title: "newsletter", Kind: feed.KindNewsletter, Enabled: true}
	disabled := &feed.Source{URL: "https://old.example.com/feed.xml", Title: "retired", Kind: feed.KindRSS, Enabled: false}

	for _, f := range []*feed.Source{rss, letter, disabled} {
		require.NoError(t, repos.Feed.CreateFeed(ctx, f))
		assert.NotZero(t, f.ID)
	}

	all, err := repos.Feed.GetFeeds(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	enabled, err := repos.Feed.GetFeeds(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, feed.KindRSS, enabled[0].Kind)
	assert.Equal(t, feed.KindNewsletter, enabled[1].Kind)
}

func TestFeedRepository_FetchStateTracking(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	src := &feed.Source{URL: "https://example.com/feed.xml", Title: "source", Kind: feed.KindRSS, Enabled: true}
	require.NoError(t, repos.Feed.CreateFeed(ctx, src))

	require.NoError(t, repos.Feed.UpdateFeedError(ctx, src.ID, "timeout"))
	require.NoError(t, repos.Feed.UpdateFeedError(ctx, src.ID, "connection refused"))

	feeds, err := repos.Feed.GetFeeds(ctx, true)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, 2, feeds[0].ErrorCount)
	assert.Equal(t, "connection refused", feeds[0].LastError)
	assert.Nil(t, feeds[0].LastFetched)

	// a successful fetch clears the error state
	require.NoError(t, repos.Feed.UpdateFeedFetched(ctx, src.ID))

	feeds, err = repos.Feed.GetFeeds(ctx, true)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Zero(t, feeds[0].ErrorCount)
	assert.Empty(t, feeds[0].LastError)
	assert.NotNil(t, feeds[0].LastFetched)
}

func TestSourceRepository_Ranks(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repos.Source.UpsertSourceRank(ctx, "verge", 8.0))
	require.NoError(t, repos.Source.UpsertSourceRank(ctx, "blogspam", 1.5))
	require.NoError(t, repos.Source.UpsertSourceRank(ctx, "verge", 8.5))

	ranks, err := repos.Source.GetSourceRanks(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"verge": 8.5, "blogspam": 1.5}, ranks)

	rank, err := repos.Source.GetSourceRank(ctx, "verge")
	require.NoError(t, err)
	assert.Equal(t, 8.5, rank)

	unknown, err := repos.Source.GetSourceRank(ctx, "never-seen")
	require.NoError(t, err)
	assert.Equal(t, domain.NeutralCredibility, unknown, "unknown sources are neutral")
}
