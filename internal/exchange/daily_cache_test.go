package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/repository"
)

type stubProvider struct {
	calls atomic.Int32
	rate  decimal.Decimal
	err   error
	delay time.Duration
}

func (p *stubProvider) LatestRate(ctx context.Context) (decimal.Decimal, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}
	return p.rate, p.err
}

type memRateStore struct {
	mu      sync.Mutex
	rates   map[string]decimal.Decimal
	writes  int
	reads   int
	readErr error
}

func newMemRateStore() *memRateStore {
	return &memRateStore{rates: make(map[string]decimal.Decimal)}
}

func (s *memRateStore) put(date time.Time, rate string) {
	s.rates[date.Format(time.DateOnly)] = decimal.RequireFromString(rate)
}

func (s *memRateStore) GetByDate(_ context.Context, date time.Time) (*models.ExchangeRateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	rate, ok := s.rates[date.Format(time.DateOnly)]
	if !ok {
		return nil, fmt.Errorf("failed to get exchange rate: %w", repository.ErrNotFound)
	}
	return &models.ExchangeRateSnapshot{FetchDate: date, Rate: rate}, nil
}

func (s *memRateStore) GetLatest(context.Context) (*models.ExchangeRateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var latest string
	for d := range s.rates {
		if d > latest {
			latest = d
		}
	}
	if latest == "" {
		return nil, repository.ErrNotFound
	}
	date, _ := time.Parse(time.DateOnly, latest)
	return &models.ExchangeRateSnapshot{FetchDate: date, Rate: s.rates[latest]}, nil
}

func (s *memRateStore) Upsert(_ context.Context, date time.Time, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.rates[date.Format(time.DateOnly)] = rate
	return nil
}

var cacheToday = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestCache(p RateProvider, s RateStore, opts ...CacheOption) *DailyRateCache {
	opts = append([]CacheOption{WithCacheClock(func() time.Time { return cacheToday })}, opts...)
	return NewDailyRateCache(p, s, opts...)
}

func TestDailyRateCache_GetLatestRate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("today's snapshot skips the provider", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		store.put(cacheToday, "132.8")
		provider := &stubProvider{rate: decimal.RequireFromString("140")}

		got := newTestCache(provider, store).GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("132.8").Equal(got))
		require.Zero(t, provider.calls.Load())
	})

	t.Run("miss fetches and stores today's rate", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{rate: decimal.RequireFromString("133.2")}

		got := newTestCache(provider, store).GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("133.2").Equal(got))
		require.Equal(t, int32(1), provider.calls.Load())
		require.Equal(t, 1, store.writes)
		require.True(t, decimal.RequireFromString("133.2").Equal(store.rates["2026-06-15"]))
	})

	t.Run("provider timeout falls back to last known rate without writing", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		store.put(cacheToday.AddDate(0, 0, -3), "130.5")
		provider := &stubProvider{rate: decimal.RequireFromString("133.2"), delay: time.Second}

		cache := newTestCache(provider, store, WithFetchTimeout(20*time.Millisecond))
		got := cache.GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("130.5").Equal(got))
		require.Zero(t, store.writes)
	})

	t.Run("remote rate is rounded to stored precision", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{rate: decimal.RequireFromString("133.123456")}
		cache := newTestCache(provider, store)

		got := cache.GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("133.1235").Equal(got), "got %s", got)
		require.True(t, decimal.RequireFromString("133.1235").Equal(store.rates["2026-06-15"]))

		// The memoized value is the rounded one too.
		require.True(t, decimal.RequireFromString("133.1235").Equal(cache.GetLatestRate(ctx)))
	})

	t.Run("provider rate that rounds to zero is a failure", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{rate: decimal.RequireFromString("0.00004")}

		got := newTestCache(provider, store).GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("133.0").Equal(got))
		require.Zero(t, store.writes)
	})

	t.Run("empty store and failing provider return the default", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{err: errors.New("connection refused")}

		got := newTestCache(provider, store).GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("133.0").Equal(got))
		require.Zero(t, store.writes)
	})

	t.Run("configured default", func(t *testing.T) {
		t.Parallel()
		provider := &stubProvider{err: errors.New("down")}

		got := newTestCache(provider, newMemRateStore(), WithDefaultRate(decimal.RequireFromString("131.25"))).
			GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("131.25").Equal(got))
	})

	t.Run("non-positive provider rate is a failure", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{rate: decimal.Zero}

		got := newTestCache(provider, store).GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("133.0").Equal(got))
		require.Zero(t, store.writes)
	})

	t.Run("store errors degrade like misses", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		store.readErr = errors.New("connection reset")
		provider := &stubProvider{rate: decimal.RequireFromString("133.2")}

		got := newTestCache(provider, store).GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("133.2").Equal(got))
	})

	t.Run("nil provider uses stored history", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		store.put(cacheToday.AddDate(0, 0, -1), "132.1")

		got := newTestCache(nil, store).GetLatestRate(ctx)
		require.True(t, decimal.RequireFromString("132.1").Equal(got))
	})
}

func TestDailyRateCache_Memo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("today's rate is remembered", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{rate: decimal.RequireFromString("133.2")}
		cache := newTestCache(provider, store)

		for range 5 {
			cache.GetLatestRate(ctx)
		}
		require.Equal(t, int32(1), provider.calls.Load())
		require.Equal(t, 1, store.reads)
	})

	t.Run("fallback rates are not remembered", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{err: errors.New("down")}
		cache := newTestCache(provider, store)

		cache.GetLatestRate(ctx)
		cache.GetLatestRate(ctx)
		require.Equal(t, int32(2), provider.calls.Load())
	})

	t.Run("memo is discarded at day change", func(t *testing.T) {
		t.Parallel()
		store := newMemRateStore()
		provider := &stubProvider{rate: decimal.RequireFromString("133.2")}

		var mu sync.Mutex
		now := cacheToday
		cache := NewDailyRateCache(provider, store, WithCacheClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}))

		cache.GetLatestRate(ctx)
		mu.Lock()
		now = now.AddDate(0, 0, 1)
		mu.Unlock()
		cache.GetLatestRate(ctx)

		require.Equal(t, int32(2), provider.calls.Load())
		require.Len(t, store.rates, 2)
	})
}

func TestDailyRateCache_SingleFlight(t *testing.T) {
	t.Parallel()

	store := newMemRateStore()
	provider := &stubProvider{rate: decimal.RequireFromString("133.2"), delay: 50 * time.Millisecond}
	cache := newTestCache(provider, store)

	var wg sync.WaitGroup
	results := make([]decimal.Decimal, 20)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.GetLatestRate(context.Background())
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), provider.calls.Load())
	for _, r := range results {
		require.True(t, decimal.RequireFromString("133.2").Equal(r))
	}
}

func TestDailyRateCache_CallerDeadline(t *testing.T) {
	t.Parallel()

	store := newMemRateStore()
	provider := &stubProvider{rate: decimal.RequireFromString("133.2"), delay: 100 * time.Millisecond}
	cache := newTestCache(provider, store)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	got := cache.GetLatestRate(ctx)
	require.True(t, decimal.RequireFromString("133.0").Equal(got))

	// The detached fetch still completes and is shared with later callers.
	require.Eventually(t, func() bool {
		return decimal.RequireFromString("133.2").Equal(cache.GetLatestRate(context.Background()))
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), provider.calls.Load())
}
