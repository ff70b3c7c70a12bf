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
)

type stubArticleStore struct {
	articles map[string]*domain.Article
	err      error
}

func (s *stubArticleStore) GetArticlesByPivotIDs(_ context.Context, _ []string) (map[string]*domain.Article, error) {
	return s.articles, s.err
}

type stubSourceStore struct {
	ranks map[string]float64
	err   error
}

func (s *stubSourceStore) GetSourceRanks(_ context.Context) (map[string]float64, error) {
	return s.ranks, s.err
}

type stubRecentStore struct {
	ids map[string]bool
	err error
}

func (s *stubRecentStore) GetRecentStoryIDs(_ context.Context, _ int, _ time.Time) (map[string]bool, error) {
	return s.ids, s.err
}

func aggregatorConfig() config.NewsletterConfig {
	return config.NewsletterConfig{Name: "Pressbrief Daily", MinCredibility: 3.0, CleanMaxChars: 2000}
}

func TestAggregator_QueuedPriority(t *testing.T) {
	agg := NewAggregator(
		&stubArticleStore{},
		&stubSourceStore{ranks: map[string]float64{}},
		&stubRecentStore{ids: map[string]bool{}},
		aggregatorConfig(),
	)

	primary := []domain.Candidate{
		{StoryID: "st-1", Headline: "Primary copy", Source: "verge", Score: 7},
		{StoryID: "st-2", Headline: "Only primary", Source: "wired", Score: 6},
	}
	queued := []domain.Candidate{
		{StoryID: "st-1", Headline: "Queued copy", Source: "verge", Queued: true},
	}

	out, summary, err := agg.Aggregate(context.Background(), primary, queued, time.Now())
	require.NoError(t, err)
	require.Len(t, out, 2, "shared story id collapses to one entry")
	assert.Equal(t, "Queued copy", out[0].Headline, "queued copy wins the dedup")
	assert.True(t, out[0].Queued)
	assert.Equal(t, "st-2", out[1].StoryID)
	assert.Equal(t, 2, summary.Processed)
}

func TestAggregator_CredibilityFilter(t *testing.T) {
	agg := NewAggregator(
		&stubArticleStore{},
		&stubSourceStore{ranks: map[string]float64{"tabloid": 1.5, "journal": 8.0}},
		&stubRecentStore{ids: map[string]bool{}},
		aggregatorConfig(),
	)

	primary := []domain.Candidate{
		{StoryID: "st-1", Source: "tabloid"},
		{StoryID: "st-2", Source: "journal"},
		{StoryID: "st-3", Source: "brand-new-blog"},
	}

	out, summary, err := agg.Aggregate(context.Background(), primary, nil, time.Now())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "st-2", out[0].StoryID)
	assert.InEpsilon(t, 8.0, out[0].Credibility, 0.001)
	assert.Equal(t, "st-3", out[1].StoryID, "unknown source gets the neutral default, not excluded")
	assert.InEpsilon(t, domain.NeutralCredibility, out[1].Credibility, 0.001)
	assert.Equal(t, 1, summary.Skipped, "low credibility dropped as skipped, not error")
	assert.Zero(t, summary.Failed)
}

func TestAggregator_ExclusionWindow(t *testing.T) {
	agg := NewAggregator(
		&stubArticleStore{},
		&stubSourceStore{ranks: map[string]float64{}},
		&stubRecentStore{ids: map[string]bool{"st-old": true}},
		aggregatorConfig(),
	)

	primary := []domain.Candidate{
		{StoryID: "st-old", Source: "verge"},
		{StoryID: "st-new", Source: "verge"},
	}

	out, summary, err := agg.Aggregate(context.Background(), primary, nil, time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "st-new", out[0].StoryID)
	assert.Equal(t, 1, summary.Skipped)
}

func TestAggregator_ArticleEnrichment(t *testing.T) {
	published := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(
		&stubArticleStore{articles: map[string]*domain.Article{
			"pv-1": {PivotID: "pv-1", URL: "https://example.com/story", Summary: "detail summary", Published: published},
		}},
		&stubSourceStore{ranks: map[string]float64{}},
		&stubRecentStore{ids: map[string]bool{}},
		aggregatorConfig(),
	)

	primary := []domain.Candidate{{StoryID: "st-1", PivotID: "pv-1", Source: "verge"}}

	out, _, err := agg.Aggregate(context.Background(), primary, nil, time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://example.com/story", out[0].URL)
	assert.Equal(t, "detail summary", out[0].Summary)
	assert.Equal(t, published, out[0].Published)
}

func TestAggregator_StructuralErrors(t *testing.T) {
	t.Run("source ranks unavailable", func(t *testing.T) {
		agg := NewAggregator(&stubArticleStore{}, &stubSourceStore{err: errors.New("store down")},
			&stubRecentStore{}, aggregatorConfig())
		_, _, err := agg.Aggregate(context.Background(), []domain.Candidate{{StoryID: "st-1"}}, nil, time.Now())
		require.Error(t, err)
	})

	t.Run("recent ids unavailable", func(t *testing.T) {
		agg := NewAggregator(&stubArticleStore{}, &stubSourceStore{ranks: map[string]float64{}},
			&stubRecentStore{err: errors.New("store down")}, aggregatorConfig())
		_, _, err := agg.Aggregate(context.Background(), []domain.Candidate{{StoryID: "st-1"}}, nil, time.Now())
		require.Error(t, err)
	})
}
