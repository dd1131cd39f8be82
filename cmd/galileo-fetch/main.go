package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"galileo/internal/cache"
	"galileo/internal/config"
	"galileo/internal/domain"
	"galileo/internal/loader"
	"galileo/internal/util"
	"galileo/internal/validate"
)

// galileo-fetch warms the series cache for a list of symbols so later
// backtests run offline. It can also snapshot fetched series to per-symbol
// CSV files for use with the csv provider.
func main() {
	symbolsStr := flag.String("symbols", "", "comma-separated symbols to fetch (required)")
	startStr := flag.String("start", "", "range start, YYYY-MM-DD (required)")
	endStr := flag.String("end", "", "range end, YYYY-MM-DD (required)")
	granStr := flag.String("granularity", "daily", "bar granularity: daily, weekly, hourly")
	snapshot := flag.Bool("snapshot-csv", false, "also write fetched series to <data_dir>/<SYMBOL>.csv")
	flag.Parse()

	cfgPath := "config/galileo.yaml"
	if p := os.Getenv("GALILEO_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	if *symbolsStr == "" || *startStr == "" || *endStr == "" {
		flag.Usage()
		os.Exit(2)
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	var symbols []string
	for _, s := range strings.Split(*symbolsStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}

	store, err := cache.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening cache: %v", err)
	}
	defer store.Close()

	provider := loader.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Data.RateLimitPerMin)
	validator := validate.New(cfg.Data.GapToleranceDays, cfg.Data.OutlierThreshold, cfg.Data.OutlierMinReturns)
	ld := loader.New(store, provider, validator, time.Duration(cfg.Data.CacheTTLHours)*time.Hour)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("warming cache", "symbols", len(symbols), "start", start, "end", end)
	results := ld.LoadMany(ctx, symbols, start, end, domain.Granularity(*granStr))

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			slog.Error("fetch failed", "symbol", r.Symbol, "err", r.Err)
			continue
		}
		slog.Info("fetched", "symbol", r.Symbol, "bars", r.Series.Len())

		if *snapshot {
			if err := loader.WriteSymbolCSV(cfg.Storage.DataDir, r.Symbol, r.Series.Bars); err != nil {
				slog.Error("csv snapshot failed", "symbol", r.Symbol, "err", err)
			}
		}
	}

	if failed > 0 {
		slog.Warn("cache warm-up finished with failures", "failed", failed, "total", len(symbols))
		os.Exit(1)
	}
	slog.Info("cache warm-up complete", "symbols", len(symbols))
}
