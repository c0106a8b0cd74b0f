package main

import (
	"context"
	"log"

	"optionScalpBot/config"
	"optionScalpBot/internal/adapters/alpaca"
	"optionScalpBot/internal/adapters/logger"
	"optionScalpBot/internal/adapters/sqlite"
	"optionScalpBot/internal/adapters/webhook"
	"optionScalpBot/internal/app"
	"optionScalpBot/internal/risk"
	"optionScalpBot/internal/strategy"
	"optionScalpBot/internal/stream"
)

func main() {
	// Configuration first; the structured logger needs the configured level.
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting option scalp bot", map[string]interface{}{
		"underlying": cfg.Symbol,
		"combine":    cfg.CombineRule,
		"logLevel":   cfg.LogLevel.String(),
	})

	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize exit journal")
		log.Fatalf("FATAL: Failed to initialize exit journal: %v", err)
	}
	defer journal.Close()

	dataClient, err := alpaca.New(alpaca.Config{
		BaseURL:   cfg.DataBaseURL,
		APIKey:    cfg.APIKey,
		SecretKey: cfg.SecretKey,
		Feed:      cfg.BarFeed,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize market data client")
		log.Fatalf("FATAL: Failed to initialize market data client: %v", err)
	}

	notifier, err := webhook.New(webhook.Config{
		CallURL: cfg.CallWebhookURL,
		PutURL:  cfg.PutWebhookURL,
		Logger:  appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize order notifier")
		log.Fatalf("FATAL: Failed to initialize order notifier: %v", err)
	}

	streamClient, err := stream.New(stream.Config{
		URL:                  cfg.StreamURL,
		Key:                  cfg.APIKey,
		Secret:               cfg.SecretKey,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize quote stream client")
		log.Fatalf("FATAL: Failed to initialize quote stream client: %v", err)
	}

	tracker, err := risk.New(risk.Config{
		Tiers: risk.TierConfig{
			TP1Pct:      cfg.TP1Pct,
			TP1Size:     cfg.TP1Size,
			TP2Pct:      cfg.TP2Pct,
			TP2Size:     cfg.TP2Size,
			TrailingPct: cfg.TrailingPct,
			HardStopPct: cfg.HardStopPct,
			MaxHold:     cfg.MaxHold,
		},
		Logger:       appLogger,
		Unsubscriber: streamClient,
		Reporter:     journal,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize exit tracker")
		log.Fatalf("FATAL: Failed to initialize exit tracker: %v", err)
	}
	streamClient.SetTickHandler(tracker)

	var combiner strategy.Combiner
	if cfg.CombineRule == "unanimous" {
		combiner = strategy.UnanimousCombiner{}
	} else {
		combiner = strategy.MajorityCombiner{Threshold: cfg.CombineThreshold}
	}
	aggregator, err := strategy.New(strategy.Config{
		Lookback:             cfg.Lookback,
		EMAShort:             cfg.EMAShortPeriod,
		EMALong:              cfg.EMALongPeriod,
		HMAPeriod:            cfg.HullPeriod,
		SupertrendATRPeriod:  cfg.SupertrendATRPeriod,
		SupertrendMultiplier: cfg.SupertrendMultiplier,
		MACDFast:             cfg.MACDFastPeriod,
		MACDSlow:             cfg.MACDSlowPeriod,
		MACDSignal:           cfg.MACDSignalPeriod,
		RSILength:            cfg.RSIPeriod,
		RSILower:             cfg.RSILongLevel,
		RSIUpper:             cfg.RSIShortLevel,
	}, combiner, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize signal aggregator")
		log.Fatalf("FATAL: Failed to initialize signal aggregator: %v", err)
	}

	service, err := app.NewTradingService(app.Config{
		Underlying:    cfg.Symbol,
		HistoryWindow: cfg.SessionWindow,
		Logger:        appLogger,
		MarketData:    dataClient,
		OptionQuotes:  dataClient,
		Orders:        notifier,
		Stream:        streamClient,
		Tracker:       tracker,
		Signals:       aggregator,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	if err := service.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service terminated with error")
		log.Fatalf("FATAL: Trading service terminated: %v", err)
	}
	appLogger.Info(ctx, "Option scalp bot stopped")
}
