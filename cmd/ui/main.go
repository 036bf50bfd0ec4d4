package main

import (
	"fmt"
	"net/http"
	"os"
	_ "time/tzdata"

	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/database"
	"tweet-sentiment-trader-go/internal/logger"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/metrics"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(config.ModeUI); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	session, err := market.NewSession(cfg.Market)
	if err != nil {
		log.Fatal("Invalid market session", zap.Error(err))
	}

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	mux := http.NewServeMux()
	NewAPIHandler(log, database.NewRepository(db), metrics.NewAggregator(session)).Routes(mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
