package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galileo/internal/cache"
	"galileo/internal/config"
	"galileo/internal/domain"
	"galileo/internal/loader"
	"galileo/internal/perf"
	"galileo/internal/predict"
	"galileo/internal/report"
	"galileo/internal/sim"
	"galileo/internal/util"
	"galileo/internal/validate"
)

func main() {
	symbol := flag.String("symbol", "", "symbol to backtest (required)")
	startStr := flag.String("start", "", "range start, YYYY-MM-DD (required)")
	endStr := flag.String("end", "", "range end, YYYY-MM-DD (required)")
	granStr := flag.String("granularity", "daily", "bar granularity: daily, weekly, hourly")
	providerName := flag.String("provider", "alpaca", "data provider: alpaca or csv")
	outDir := flag.String("out", "results", "output directory for result tables")
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

	if *symbol == "" || *startStr == "" || *endStr == "" {
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
	if !end.After(start) {
		log.Fatalf("-end %s must be after -start %s", *endStr, *startStr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *symbol, start, end, domain.Granularity(*granStr), *providerName, *outDir); err != nil {
		var dqErr *domain.DataQualityError
		if errors.As(err, &dqErr) {
			for _, issue := range dqErr.Report.Issues {
				slog.Error("data quality issue",
					"symbol", dqErr.Symbol, "kind", string(issue.Kind), "bar", issue.BarIndex, "detail", issue.Detail)
			}
		}
		log.Fatalf("backtest failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, symbol string, start, end time.Time, granularity domain.Granularity, providerName, outDir string) error {
	store, err := cache.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := buildProvider(cfg, providerName)
	if err != nil {
		return err
	}

	validator := validate.New(cfg.Data.GapToleranceDays, cfg.Data.OutlierThreshold, cfg.Data.OutlierMinReturns)
	ttl := time.Duration(cfg.Data.CacheTTLHours) * time.Hour
	ld := loader.New(store, provider, validator, ttl)

	slog.Info("loading series", "symbol", symbol, "start", start, "end", end, "provider", provider.Name())
	series, err := ld.Load(ctx, symbol, start, end, granularity)
	if err != nil {
		return err
	}

	freq, err := predict.ParseFrequency(cfg.Prediction.Frequency)
	if err != nil {
		return err
	}
	sources := []predict.SignalSource{
		predict.NewSMACrossSource(10, 30),
		predict.NewMeanReversionSource(20),
	}
	engine := predict.NewEngine(cfg.Prediction.MinBars, cfg.Prediction.ConfidenceThreshold, cfg.Prediction.EnsembleWeights)

	preds, err := engine.WalkForward(ctx, series, start, end, freq, cfg.Prediction.LookbackWindow, sources)
	if err != nil {
		return err
	}
	slog.Info("walk-forward complete", "symbol", symbol, "predictions", len(preds))

	simulator := sim.New(sim.Config{
		InitialCapital:           cfg.Simulation.InitialCapital,
		CommissionRate:           cfg.Simulation.CommissionRate,
		SlippageRate:             cfg.Simulation.SlippageRate,
		MaxPositionSize:          cfg.Simulation.MaxPositionSize,
		EntryConfidenceThreshold: cfg.Simulation.EntryConfidenceThreshold,
		ExitConfidenceThreshold:  cfg.Simulation.ExitConfidenceThreshold,
	})

	for _, p := range preds {
		idx := series.IndexAtOrAfter(p.Timestamp)
		bar := series.Bars[idx]
		if _, err := simulator.ExecuteSignal(p, bar.Close); err != nil {
			return fmt.Errorf("executing signal at %s: %w", p.Timestamp, err)
		}
	}

	// Close whatever is still open at the last bar so the ledger is complete.
	if simulator.PositionOpen() {
		last := series.Bars[series.Len()-1]
		closeTime := last.Timestamp
		if !closeTime.After(simulator.EquityCurve()[len(simulator.EquityCurve())-1].Timestamp) {
			closeTime = closeTime.Add(time.Second)
		}
		if _, err := simulator.CloseAll(closeTime, last.Close); err != nil {
			return fmt.Errorf("closing final position: %w", err)
		}
	}

	metrics := perf.Analyze(cfg.Simulation.InitialCapital, simulator.Trades(), simulator.EquityCurve())

	exporter := report.NewExporter(outDir)
	if err := exporter.WriteAll(preds, simulator.Trades(), simulator.EquityCurve()); err != nil {
		return fmt.Errorf("writing result tables: %w", err)
	}
	report.RenderSummary(os.Stdout, symbol, metrics)

	slog.Info("backtest complete",
		"symbol", symbol,
		"trades", metrics.TradeCount,
		"final_equity", metrics.FinalEquity,
		"out_dir", outDir)
	return nil
}

func buildProvider(cfg *config.Config, name string) (loader.Provider, error) {
	switch name {
	case "alpaca":
		return loader.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Data.RateLimitPerMin), nil
	case "csv":
		return loader.NewCSVProvider(cfg.Storage.DataDir), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}
