// Package loader produces clean, time-ordered price series. It is the only
// component that talks to the external data provider: it checks the cache,
// fetches on a miss, validates, and caches only validated-clean data.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"galileo/internal/cache"
	"galileo/internal/domain"
	"galileo/internal/validate"
)

// Provider is the external historical-data collaborator. Any implementation
// with this signature is acceptable: REST API, local files, another cache.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Fetch returns raw OHLCV bars for the symbol and range, or
	// domain.ErrDataUnavailable when it has nothing.
	Fetch(ctx context.Context, symbol string, start, end time.Time, granularity domain.Granularity) ([]domain.Bar, error)
}

// Loader orchestrates cache, provider, and validator.
type Loader struct {
	cache     *cache.Store
	provider  Provider
	validator *validate.Validator
	ttl       time.Duration
	log       *slog.Logger
}

// New creates a Loader. Cleanly validated series are cached with the given
// TTL.
func New(c *cache.Store, p Provider, v *validate.Validator, ttl time.Duration) *Loader {
	return &Loader{
		cache:     c,
		provider:  p,
		validator: v,
		ttl:       ttl,
		log:       slog.Default().With("component", "loader"),
	}
}

// Load returns a validated series for the symbol and range. On a cache miss
// it fetches from the provider and validates; a hard validation failure is
// retried once against the provider (transient corrupt responses), then
// surfaced as a *domain.DataQualityError. A corrupt fetch is never cached.
func (l *Loader) Load(ctx context.Context, symbol string, start, end time.Time, granularity domain.Granularity) (*domain.Series, error) {
	key := cache.Key{Symbol: symbol, Start: start, End: end, Granularity: granularity}

	if series, hit, err := l.cache.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("cache lookup for %s: %w", symbol, err)
	} else if hit {
		l.log.Debug("cache hit", "symbol", symbol, "bars", series.Len())
		return series, nil
	}

	series, report, err := l.fetchAndValidate(ctx, symbol, start, end, granularity)
	if err != nil {
		return nil, err
	}
	if !report.IsValid {
		// One retry against the provider handles transient corruption.
		l.log.Warn("series failed validation, retrying fetch",
			"symbol", symbol, "issues", len(report.Issues))
		series, report, err = l.fetchAndValidate(ctx, symbol, start, end, granularity)
		if err != nil {
			return nil, err
		}
		if !report.IsValid {
			return nil, &domain.DataQualityError{Symbol: symbol, Report: report}
		}
	}

	for _, w := range report.Warnings {
		l.log.Warn("validation warning",
			"symbol", symbol, "kind", string(w.Kind), "bar", w.BarIndex, "detail", w.Detail)
	}

	if err := l.cache.Put(ctx, key, series, l.ttl); err != nil {
		// Caching is best-effort; the validated series is still good.
		l.log.Warn("caching series failed", "symbol", symbol, "err", err)
	}

	return series, nil
}

// fetchAndValidate performs one provider fetch, normalizes the rows into the
// fixed bar shape at this boundary, and validates the result.
func (l *Loader) fetchAndValidate(ctx context.Context, symbol string, start, end time.Time, granularity domain.Granularity) (*domain.Series, domain.ValidationReport, error) {
	bars, err := l.provider.Fetch(ctx, symbol, start, end, granularity)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return nil, domain.ValidationReport{}, fmt.Errorf("%s %s..%s: %w",
				symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), err)
		}
		return nil, domain.ValidationReport{}, fmt.Errorf("provider %s fetch for %s: %w", l.provider.Name(), symbol, err)
	}
	if len(bars) == 0 {
		return nil, domain.ValidationReport{}, fmt.Errorf("%s %s..%s: %w",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), domain.ErrDataUnavailable)
	}

	normalized := make([]domain.Bar, len(bars))
	for i, b := range bars {
		b.Symbol = symbol
		b.Timestamp = b.Timestamp.UTC()
		normalized[i] = b
	}

	series := &domain.Series{Symbol: symbol, Bars: normalized}
	report := l.validator.Validate(series)
	return series, report, nil
}

// Result is the outcome of loading one symbol in LoadMany.
type Result struct {
	Symbol string
	Series *domain.Series
	Err    error
}

// LoadMany loads several symbols concurrently, one worker per symbol. Each
// symbol operates on a distinct cache key, so workers are independent; one
// symbol's failure never aborts the others.
func (l *Loader) LoadMany(ctx context.Context, symbols []string, start, end time.Time, granularity domain.Granularity) []Result {
	results := make([]Result, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			series, err := l.Load(ctx, symbol, start, end, granularity)
			results[i] = Result{Symbol: symbol, Series: series, Err: err}
		}(i, symbol)
	}
	wg.Wait()

	return results
}
