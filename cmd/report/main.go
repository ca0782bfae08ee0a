// Command report generates a static HTML report: it runs a few warm-up polls
// to build enough history for baselines, ranks the markets, applies the
// publish filter, and writes a self-contained page.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/oddsflow/scanner/internal/config"
	"github.com/oddsflow/scanner/internal/connector"
	"github.com/oddsflow/scanner/internal/ingest"
	"github.com/oddsflow/scanner/internal/logger"
	"github.com/oddsflow/scanner/internal/ranker"
	"github.com/oddsflow/scanner/internal/report"
	"github.com/oddsflow/scanner/internal/storage"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer store.Close() //nolint:errcheck

	conn := buildConnector(cfg)
	poller := ingest.New(conn, store)

	ctx := context.Background()
	for i := 0; i < cfg.Report.WarmupPolls; i++ {
		n, err := poller.PollOnce(ctx)
		if err != nil {
			logger.Fatal("Warm-up poll %d failed: %v", i+1, err)
		}
		logger.Info("Warm-up poll %d/%d ingested %d snapshots", i+1, cfg.Report.WarmupPolls, n)
	}

	rk := ranker.New(store)
	results, err := rk.Top(ranker.Options{
		Limit:      cfg.Report.Limit,
		MaxP:       cfg.Ranking.MaxP,
		MinScore:   cfg.Ranking.MinScore,
		MinHistory: cfg.Ranking.MinHistory,
		Window:     cfg.Ranking.Window,
	})
	if err != nil {
		logger.Fatal("Ranking failed: %v", err)
	}

	thresholds := ranker.PublishThresholds{
		ZMin:          cfg.Publish.ZMin,
		DepthRatioMin: cfg.Publish.DepthRatioMin,
		EntropyMin:    cfg.Publish.EntropyMin,
		PMin:          cfg.Publish.PMin,
		PMax:          cfg.Publish.PMax,
	}
	published := ranker.ApplyPublishFilter(results, thresholds)

	if err := report.Write(cfg.Report.OutputPath, cfg.Connector.Source, thresholds, published); err != nil {
		logger.Fatal("Failed to write report: %v", err)
	}
	logger.Info("Wrote %s with %d results", cfg.Report.OutputPath, len(published))
}

func buildConnector(cfg *config.Config) connector.Connector {
	if cfg.Connector.Source == "kalshi" {
		return connector.NewKalshi(connector.KalshiConfig{
			BaseURL:      cfg.Kalshi.BaseURL,
			SeriesPages:  cfg.Kalshi.SeriesPages,
			EventsPages:  cfg.Kalshi.EventsPages,
			PageSize:     cfg.Kalshi.PageSize,
			LimitMarkets: cfg.Kalshi.LimitMarkets,
			BandCents:    cfg.Kalshi.BandCents,
			MaxRetries:   cfg.Kalshi.MaxRetries,
			Timeout:      cfg.Kalshi.Timeout,
		})
	}
	return connector.NewMock(cfg.Mock.Markets, cfg.Mock.Seed)
}
