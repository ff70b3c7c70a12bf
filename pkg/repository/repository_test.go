package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory database with the schema applied
func setupTestDB(t *testing.T) (*Repositories, func()) {
	t.Helper()

	repos, err := NewRepositories(context.Background(), Config{
		DSN:             ":memory:",
		MaxOpenConns:    1, // in-memory databases need a single connection
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)

	return repos, func() {
		require.NoError(t, repos.Close())
	}
}

func TestNewRepositories(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NotNil(t, repos.Feed)
	assert.NotNil(t, repos.Article)
	assert.NotNil(t, repos.Candidate)
	assert.NotNil(t, repos.PreFilter)
	assert.NotNil(t, repos.Issue)
	assert.NotNil(t, repos.Decoration)
	assert.NotNil(t, repos.Source)

	require.NoError(t, repos.Ping(context.Background()))
}

func TestNewRepositories_BadDSN(t *testing.T) {
	_, err := NewRepositories(context.Background(), Config{DSN: "file:/nonexistent-dir/nope/db.sqlite?mode=rw"})
	require.Error(t, err)
}
