package clientdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db := testutil.NewTestDB(t, "cache")
	return NewRepository(db.Conn())
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	quote := domain.Quote{Symbol: "AAPL", Price: 187.25, Volume: 1200}
	require.NoError(t, repo.Store(ctx, TableQuotes, "AAPL", quote, time.Minute))

	var got domain.Quote
	found, err := repo.GetIfFresh(ctx, TableQuotes, "AAPL", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.InDelta(t, 187.25, got.Price, 1e-9)

	found, err = repo.GetIfFresh(ctx, TableQuotes, "MSFT", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiredEntriesServeAsStaleFallback(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	bars := []domain.Bar{{Close: 10}, {Close: 11}}
	require.NoError(t, repo.Store(ctx, TableBars, "AAPL:1Day", bars, time.Minute))

	// Move the clock past expiry
	repo.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	var got []domain.Bar
	found, err := repo.GetIfFresh(ctx, TableBars, "AAPL:1Day", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.Get(ctx, TableBars, "AAPL:1Day", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, got, 2)

	deleted, err := repo.DeleteAllExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted[TableBars])

	found, err = repo.Get(ctx, TableBars, "AAPL:1Day", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidTable(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	assert.Error(t, repo.Store(ctx, "quotes; DROP TABLE bars", "k", 1, time.Minute))
	_, err := repo.DeleteExpired(ctx, "accounts")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableNews, "AAPL", []domain.NewsItem{{Headline: "x"}}, time.Minute))
	require.NoError(t, repo.Delete(ctx, TableNews, "AAPL"))

	var got []domain.NewsItem
	found, err := repo.Get(ctx, TableNews, "AAPL", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCleanupJob(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.Store(context.Background(), TableQuotes, "OLD", domain.Quote{}, -time.Minute))

	job := NewCleanupJob(repo, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())

	var q domain.Quote
	found, err := repo.Get(context.Background(), TableQuotes, "OLD", &q)
	require.NoError(t, err)
	assert.False(t, found)
}
