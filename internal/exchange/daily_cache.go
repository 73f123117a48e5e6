package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/logger"
	"gitlab.com/yelinaung/paywatch/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Rate sources, recorded on the resolution counter.
const (
	sourceMemo     = "memo"
	sourceStore    = "store"
	sourceRemote   = "remote"
	sourceStale    = "stale"
	sourceFallback = "fallback"
)

const defaultFetchTimeout = 10 * time.Second

// rateScale is the precision of exchange_rates.rate. Remote rates are rounded to
// it before use so every process sees the value the store holds.
const rateScale = 4

type inFlightCall struct {
	done chan struct{}
	rate decimal.Decimal
}

// DailyRateCache resolves today's rate from the store, then the remote
// provider, then the newest stored snapshot, then a fixed default. Only a
// rate that belongs to today is remembered in memory.
type DailyRateCache struct {
	provider     RateProvider
	store        RateStore
	defaultRate  decimal.Decimal
	fetchTimeout time.Duration
	now          func() time.Time
	resolutions  metric.Int64Counter

	mu       sync.Mutex
	memoDate string
	memoRate decimal.Decimal
	inFlight map[string]*inFlightCall
}

// CacheOption configures a DailyRateCache.
type CacheOption func(*DailyRateCache)

// WithDefaultRate sets the rate returned when nothing else is available.
func WithDefaultRate(rate decimal.Decimal) CacheOption {
	return func(c *DailyRateCache) {
		if rate = rate.Round(rateScale); rate.IsPositive() {
			c.defaultRate = rate
		}
	}
}

// WithFetchTimeout bounds each remote fetch.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *DailyRateCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithCacheClock sets the clock whose calendar date keys the snapshots.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *DailyRateCache) {
		c.now = now
	}
}

// NewDailyRateCache creates a rate cache over provider and store.
func NewDailyRateCache(provider RateProvider, store RateStore, opts ...CacheOption) *DailyRateCache {
	c := &DailyRateCache{
		provider:     provider,
		store:        store,
		defaultRate:  decimal.RequireFromString("133.0"),
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		inFlight:     make(map[string]*inFlightCall),
	}
	for _, opt := range opts {
		opt(c)
	}

	counter, err := otel.Meter("paywatch/exchange").Int64Counter(
		"exchange_rate.resolutions",
		metric.WithDescription("Exchange rate lookups by the source that answered them"),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create exchange rate counter")
	}
	c.resolutions = counter
	return c
}

// GetLatestRate returns the USD to NPR rate to use now. It never fails.
// Concurrent callers that miss the memo share one resolution.
func (c *DailyRateCache) GetLatestRate(ctx context.Context) decimal.Decimal {
	today := c.now()
	key := today.Format(time.DateOnly)

	c.mu.Lock()
	if c.memoDate == key {
		rate := c.memoRate
		c.mu.Unlock()
		c.record(ctx, sourceMemo)
		return rate
	}
	if call, waiting := c.inFlight[key]; waiting {
		c.mu.Unlock()
		return c.wait(ctx, call)
	}

	call := &inFlightCall{done: make(chan struct{})}
	c.inFlight[key] = call
	c.mu.Unlock()

	// Detached from the first caller so its deadline cannot fail the waiters.
	go c.resolveAndBroadcast(context.WithoutCancel(ctx), today, key, call)
	return c.wait(ctx, call)
}

func (c *DailyRateCache) wait(ctx context.Context, call *inFlightCall) decimal.Decimal {
	select {
	case <-ctx.Done():
		logger.Log.Warn().Err(ctx.Err()).Msg("Gave up waiting for exchange rate, using default")
		return c.defaultRate
	case <-call.done:
		return call.rate
	}
}

func (c *DailyRateCache) resolveAndBroadcast(ctx context.Context, today time.Time, key string, call *inFlightCall) {
	rate, source := c.resolve(ctx, today)
	c.record(ctx, source)

	c.mu.Lock()
	if source == sourceStore || source == sourceRemote {
		c.memoDate = key
		c.memoRate = rate
	}
	call.rate = rate
	delete(c.inFlight, key)
	close(call.done)
	c.mu.Unlock()
}

func (c *DailyRateCache) resolve(ctx context.Context, today time.Time) (decimal.Decimal, string) {
	snap, err := c.store.GetByDate(ctx, today)
	switch {
	case err == nil && validateRate(snap.Rate) == nil:
		return snap.Rate, sourceStore
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		logger.Log.Warn().Err(err).Msg("Failed to read today's exchange rate")
	}

	rate, err := c.fetch(ctx)
	if err == nil {
		if err := c.store.Upsert(ctx, today, rate); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to save exchange rate")
		}
		logger.Log.Info().Str("rate", rate.String()).Msg("Fetched exchange rate")
		return rate, sourceRemote
	}
	logger.Log.Warn().Err(err).Msg("Exchange rate fetch failed, using last known rate")

	latest, err := c.store.GetLatest(ctx)
	if err == nil && validateRate(latest.Rate) == nil {
		return latest.Rate, sourceStale
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Log.Warn().Err(err).Msg("Failed to read last known exchange rate")
	}
	return c.defaultRate, sourceFallback
}

func (c *DailyRateCache) fetch(ctx context.Context) (decimal.Decimal, error) {
	if c.provider == nil {
		return decimal.Zero, errors.New("no exchange rate provider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	rate, err := c.provider.LatestRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	rate = rate.Round(rateScale)
	if err := validateRate(rate); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

func (c *DailyRateCache) record(ctx context.Context, source string) {
	if c.resolutions == nil {
		return
	}
	c.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
