package cache_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ratefeed/internal/provider"
	"ratefeed/internal/provider/cache"
	"ratefeed/internal/provider/providermock"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func quote(last string) provider.Quote {
	v := decimal.RequireFromString(last)
	return provider.Quote{Symbol: "BTCJPY", Bid: v, Ask: v, Last: v, Source: provider.Google}
}

func newCached(t *testing.T, policy cache.Policy) (*cache.Provider, *providermock.MockProvider, *clock) {
	t.Helper()
	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().Source().Return(provider.Google).AnyTimes()

	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryStore()
	store.Now = clk.Now
	return &cache.Provider{P: p, Store: store, TTL: 30 * time.Minute, Policy: policy, Now: clk.Now}, p, clk
}

func TestProvider_FreshEntrySkipsFetch(t *testing.T) {
	t.Parallel()

	// Arrange
	c, p, clk := newCached(t, cache.PolicyTTL)
	p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(quote("15000000"), nil).Times(1)

	// Act
	first, o1, err := c.FetchWithOutcome(t.Context(), "BTC/JPY")
	require.NoError(t, err)
	clk.Advance(10 * time.Minute)
	second, o2, err := c.FetchWithOutcome(t.Context(), "BTCJPY")
	require.NoError(t, err)

	// Assert
	require.Equal(t, cache.OutcomeLive, o1)
	require.Equal(t, cache.OutcomeCached, o2)
	require.True(t, first.Last.Equal(second.Last))
}

func TestProvider_ExpiredEntryRefetches(t *testing.T) {
	t.Parallel()

	c, p, clk := newCached(t, cache.PolicyTTL)
	gomock.InOrder(
		p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(quote("15000000"), nil),
		p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(quote("15100000"), nil),
	)

	_, err := c.Fetch(t.Context(), "BTCJPY")
	require.NoError(t, err)
	clk.Advance(31 * time.Minute)
	q, o, err := c.FetchWithOutcome(t.Context(), "BTCJPY")

	require.NoError(t, err)
	require.Equal(t, cache.OutcomeLive, o)
	require.Equal(t, "15100000", q.Last.String())
}

func TestProvider_StaleOnError(t *testing.T) {
	t.Parallel()

	// Arrange: prime the cache, then let it age far past the TTL
	c, p, clk := newCached(t, cache.PolicyTTL)
	gomock.InOrder(
		p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(quote("15000000"), nil),
		p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(provider.Quote{},
			provider.Unavailable(provider.Google, "BTCJPY", 429, errors.New("rate limited"))),
	)
	_, err := c.Fetch(t.Context(), "BTCJPY")
	require.NoError(t, err)
	clk.Advance(48 * time.Hour)

	// Act
	q, o, err := c.FetchWithOutcome(t.Context(), "BTCJPY")

	// Assert
	require.NoError(t, err)
	require.Equal(t, cache.OutcomeStale, o)
	require.Equal(t, "15000000", q.Last.String())
}

func TestProvider_ErrorWithoutEntry(t *testing.T) {
	t.Parallel()

	c, p, _ := newCached(t, cache.PolicyTTL)
	parseErr := &provider.QuoteParseError{Source: provider.Google, Field: "price", Err: provider.ErrMissingField}
	p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(provider.Quote{}, parseErr)

	_, err := c.Fetch(t.Context(), "BTCJPY")

	require.Error(t, err)
	require.True(t, provider.IsUnavailable(err))
	var pe *provider.QuoteParseError
	require.ErrorAs(t, err, &pe)
}

func TestProvider_InvalidSymbolPassesThrough(t *testing.T) {
	t.Parallel()

	c, p, _ := newCached(t, cache.PolicyTTL)
	p.EXPECT().Fetch(gomock.Any(), "FOOJPY").
		Return(provider.Quote{}, &provider.InvalidSymbolError{Source: provider.Google, Symbol: "FOOJPY"})

	_, err := c.Fetch(t.Context(), "FOOJPY")

	require.True(t, provider.IsInvalidSymbol(err))
	require.False(t, provider.IsUnavailable(err))
}

func TestProvider_AlwaysPolicyIgnoresAge(t *testing.T) {
	t.Parallel()

	c, p, clk := newCached(t, cache.PolicyAlways)
	p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(quote("15000000"), nil).Times(1)

	_, err := c.Fetch(t.Context(), "BTCJPY")
	require.NoError(t, err)
	clk.Advance(72 * time.Hour)
	_, o, err := c.FetchWithOutcome(t.Context(), "BTCJPY")

	require.NoError(t, err)
	require.Equal(t, cache.OutcomeCached, o)
}

// blockingProvider answers only after release is closed or its ctx ends.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingProvider) Source() provider.Source { return provider.Google }

func (b *blockingProvider) Fetch(ctx context.Context, _ string) (provider.Quote, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return quote("15000000"), nil
	case <-ctx.Done():
		return provider.Quote{}, provider.Unavailable(provider.Google, "BTCJPY", 0, ctx.Err())
	}
}

func TestProvider_CancelledCallerDoesNotCancelSharedFetch(t *testing.T) {
	t.Parallel()

	// Arrange
	bp := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	store := cache.NewMemoryStore()
	c := &cache.Provider{P: bp, Store: store, TTL: time.Hour, FetchTimeout: 5 * time.Second}

	ctxA, cancelA := context.WithCancel(t.Context())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, "BTCJPY")
		errA <- err
	}()
	<-bp.started

	type result struct {
		q   provider.Quote
		err error
	}
	resB := make(chan result, 1)
	go func() {
		q, err := c.Fetch(context.Background(), "BTCJPY")
		resB <- result{q, err}
	}()

	// Act: the first caller gives up while the upstream call is in flight
	cancelA()
	err := <-errA
	close(bp.release)
	b := <-resB

	// Assert
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, b.err)
	require.Equal(t, "15000000", b.q.Last.String())
	e, err := store.Read(t.Context(), "BTCJPY")
	require.NoError(t, err)
	require.NotNil(t, e, "shared fetch still warms the cache")
}

func TestProvider_SharedFetchIsBounded(t *testing.T) {
	t.Parallel()

	bp := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	c := &cache.Provider{P: bp, Store: cache.NewMemoryStore(), TTL: time.Hour, FetchTimeout: 20 * time.Millisecond}

	_, err := c.Fetch(context.Background(), "BTCJPY")

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, provider.IsUnavailable(err))
}

type brokenStore struct{}

func (brokenStore) Read(context.Context, string) (*cache.Entry, error) {
	return nil, errors.New("disk gone")
}

func (brokenStore) Write(context.Context, string, provider.Quote) error {
	return errors.New("disk gone")
}

func TestProvider_StoreFailureIsAMiss(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().Source().Return(provider.Google).AnyTimes()
	p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(quote("1"), nil).Times(2)
	c := &cache.Provider{P: p, Store: brokenStore{}, TTL: time.Hour}

	for range 2 {
		_, o, err := c.FetchWithOutcome(t.Context(), "BTCJPY")
		require.NoError(t, err)
		require.Equal(t, cache.OutcomeLive, o)
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache", "google.json")
	fs, err := cache.NewFileStore(path)
	require.NoError(t, err)

	e, err := fs.Read(t.Context(), "BTCJPY")
	require.NoError(t, err)
	require.Nil(t, e)

	require.NoError(t, fs.Write(t.Context(), "BTCJPY", quote("15123456.78")))

	reopened, err := cache.NewFileStore(path)
	require.NoError(t, err)
	e, err = reopened.Read(t.Context(), "BTCJPY")
	require.NoError(t, err)
	require.NotNil(t, e)
	require.Equal(t, "15123456.78", e.Quote.Last.String())
	require.Equal(t, provider.Google, e.Quote.Source)
	require.False(t, e.StoredAt.IsZero())
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisStore(client, "ratefeed:quote:")
	t.Cleanup(func() { _ = store.Close() })

	e, err := store.Read(t.Context(), "BTCJPY")
	require.NoError(t, err)
	require.Nil(t, e)

	require.NoError(t, store.Write(t.Context(), "BTCJPY", quote("15000000.5")))
	require.True(t, mr.Exists("ratefeed:quote:BTCJPY"))
	require.Zero(t, mr.TTL("ratefeed:quote:BTCJPY"))

	e, err = store.Read(t.Context(), "BTCJPY")
	require.NoError(t, err)
	require.Equal(t, "15000000.5", e.Quote.Last.String())
}

func TestRedisStore_CorruptValue(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("q:BTCJPY", "not json"))
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "q:")

	_, err := store.Read(t.Context(), "BTCJPY")
	require.Error(t, err)
}

func TestIsFresh(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &cache.Entry{StoredAt: now.Add(-29 * time.Minute)}
	require.True(t, cache.IsFresh(e, 30*time.Minute, now))
	require.False(t, cache.IsFresh(e, 29*time.Minute, now))
	require.False(t, cache.IsFresh(nil, time.Hour, now))
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := cache.ParsePolicy("ALWAYS")
	require.NoError(t, err)
	require.Equal(t, cache.PolicyAlways, p)

	p, err = cache.ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, cache.PolicyTTL, p)

	_, err = cache.ParsePolicy("sometimes")
	require.Error(t, err)
}
