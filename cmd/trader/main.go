package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/database"
	"tweet-sentiment-trader-go/internal/extractor"
	"tweet-sentiment-trader-go/internal/kite"
	"tweet-sentiment-trader-go/internal/logger"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/sentiment"
	"tweet-sentiment-trader-go/internal/simulator"
	"tweet-sentiment-trader-go/internal/trader"
	"tweet-sentiment-trader-go/internal/twitter"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}
	if err := cfg.Validate(config.ModeLive); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	session, err := market.NewSession(cfg.Market)
	if err != nil {
		log.Fatal("Invalid market session", zap.Error(err))
	}

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := kite.NewClient(cfg.Kite, session, log)
	if cfg.Kite.AccessToken == "" {
		if _, err := broker.GenerateSession(ctx, cfg.Kite.RequestToken); err != nil {
			log.Fatal("Failed to establish Kite session", zap.Error(err))
		}
	}

	ext := extractor.NewFromRegistry(ctx, broker, log)
	if ext.Size() == 0 {
		log.Fatal("Symbol registry is empty, refusing to trade")
	}
	log.Info("Successfully connected to Kite API.", zap.Int("symbols", ext.Size()))

	var files *twitter.FileCache
	if cfg.Twitter.CacheEnabled {
		files = twitter.NewFileCache(cfg.Twitter.CacheDir)
	}

	engine := trader.NewEngine(trader.Deps{
		Logger:     log,
		Cfg:        cfg,
		Session:    session,
		Feed:       twitter.NewFeed(twitter.NewClient(cfg.Twitter, log), files, session, log),
		Classifier: sentiment.NewHTTPClassifier(cfg.Sentiment, log),
		Extractor:  ext,
		Broker:     broker,
		Store:      database.NewRepository(db),
		Sizing: simulator.New(simulator.Params{
			Allocation: cfg.Trading.TradeAmount,
			StopPct:    cfg.Trading.StopLossPercentage / 100,
			TargetPct:  cfg.Trading.TargetPercentage / 100,
		}),
	})
	engine.Run(ctx)

	log.Info("Trader has been shut down.")
}
