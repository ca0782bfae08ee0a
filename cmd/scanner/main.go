package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oddsflow/scanner/internal/config"
	"github.com/oddsflow/scanner/internal/connector"
	"github.com/oddsflow/scanner/internal/ingest"
	"github.com/oddsflow/scanner/internal/logger"
	"github.com/oddsflow/scanner/internal/ranker"
	"github.com/oddsflow/scanner/internal/server"
	"github.com/oddsflow/scanner/internal/storage"
	"github.com/oddsflow/scanner/internal/telegram"
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
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// One long-lived connector instance is shared across ticks so volume
	// deltas stay correct.
	conn := buildConnector(cfg)
	poller := ingest.New(conn, store)
	rk := ranker.New(store)

	rankOpts := ranker.Options{
		Limit:      cfg.Ranking.Limit,
		MaxP:       cfg.Ranking.MaxP,
		MinScore:   cfg.Ranking.MinScore,
		MinHistory: cfg.Ranking.MinHistory,
		Window:     cfg.Ranking.Window,
	}
	thresholds := ranker.PublishThresholds{
		ZMin:          cfg.Publish.ZMin,
		DepthRatioMin: cfg.Publish.DepthRatioMin,
		EntropyMin:    cfg.Publish.EntropyMin,
		PMin:          cfg.Publish.PMin,
		PMax:          cfg.Publish.PMax,
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Addr, rk, rankOpts)
		srv.Start()
	}

	logger.Info("Starting ingestion loop (connector: %s, interval: %v, window: %d, min_history: %d)",
		cfg.Connector.Source, cfg.Connector.PollInterval, cfg.Ranking.Window, cfg.Ranking.MinHistory)

	ticker := time.NewTicker(cfg.Connector.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Poll cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	// Run initial poll immediately
	logger.Debug("Running initial poll cycle")
	handleCycleResult(runCycle(ctx, poller, rk, rankOpts, thresholds, telegramClient))

	for {
		select {
		case <-ctx.Done():
			if srv != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("HTTP server shutdown: %v", err)
				}
				shutdownCancel()
			}
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled poll cycle")
			handleCycleResult(runCycle(ctx, poller, rk, rankOpts, thresholds, telegramClient))
		}
	}
}

// runCycle performs one fetch-append pass, then computes the current ranking
// and sends the publish-filtered survivors to Telegram when any remain.
func runCycle(
	ctx context.Context,
	poller *ingest.Poller,
	rk *ranker.Ranker,
	rankOpts ranker.Options,
	thresholds ranker.PublishThresholds,
	telegramClient *telegram.Client,
) error {
	startTime := time.Now()

	n, err := poller.PollOnce(ctx)
	if err != nil {
		if connector.IsRateLimit(err) {
			logger.Error("Rate-limit budget exhausted this cycle")
		}
		return err
	}
	logger.Info("Ingested %d snapshots", n)

	results, err := rk.Top(rankOpts)
	if err != nil {
		return err
	}
	published := ranker.ApplyPublishFilter(results, thresholds)
	logger.Info("Ranked %d markets, %d passed the publish filter", len(results), len(published))

	if len(published) > 0 && telegramClient != nil {
		if err := telegramClient.Send(published); err != nil {
			logger.Error("Failed to send Telegram notification: %v", err)
		} else {
			logger.Info("Sent Telegram notification with %d markets", len(published))
		}
	}

	logger.Info("Poll cycle completed in %v", time.Since(startTime))
	return nil
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
