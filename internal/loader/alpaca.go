package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"galileo/internal/domain"
	"galileo/internal/util"
)

// Compile-time interface check.
var _ Provider = (*AlpacaProvider)(nil)

// AlpacaProvider fetches historical OHLCV bars from the Alpaca market-data
// API. Requests are throttled through a token-bucket limiter to stay inside
// the account's per-minute quota.
type AlpacaProvider struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	feed    marketdata.Feed
}

// NewAlpacaProvider creates an AlpacaProvider with the given credentials and
// rate limit.
func NewAlpacaProvider(apiKey, apiSecret, dataURL string, rateLimitPerMin int) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaProvider{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(rateLimitPerMin),
		feed:    marketdata.IEX,
	}
}

// Name returns "alpaca".
func (p *AlpacaProvider) Name() string { return "alpaca" }

// Fetch returns daily, weekly, or hourly bars for the symbol within
// [start, end]. An empty response maps to domain.ErrDataUnavailable.
func (p *AlpacaProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, granularity domain.Granularity) ([]domain.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeframe, err := timeframeFor(granularity)
	if err != nil {
		return nil, err
	}

	var alpacaBars []marketdata.Bar
	err = util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var err error
		alpacaBars, err = p.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: timeframe,
			Start:     start,
			End:       end,
			Feed:      p.feed,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	if len(alpacaBars) == 0 {
		return nil, domain.ErrDataUnavailable
	}

	bars := make([]domain.Bar, len(alpacaBars))
	for i, ab := range alpacaBars {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: ab.Timestamp,
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		}
	}
	return bars, nil
}

func timeframeFor(granularity domain.Granularity) (marketdata.TimeFrame, error) {
	switch granularity {
	case domain.GranularityDaily:
		return marketdata.OneDay, nil
	case domain.GranularityWeekly:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case domain.GranularityHourly:
		return marketdata.OneHour, nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported granularity %q", granularity)
}
