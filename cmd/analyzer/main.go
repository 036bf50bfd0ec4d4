package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"tweet-sentiment-trader-go/internal/analysis"
	"tweet-sentiment-trader-go/internal/backtest"
	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/database"
	"tweet-sentiment-trader-go/internal/extractor"
	"tweet-sentiment-trader-go/internal/kite"
	"tweet-sentiment-trader-go/internal/logger"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/metrics"
	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/report"
	"tweet-sentiment-trader-go/internal/sentiment"
	"tweet-sentiment-trader-go/internal/simulator"
	"tweet-sentiment-trader-go/internal/twitter"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	handles := pflag.StringSlice("handles", nil, "Twitter handles to analyze (comma separated)")
	startDate := pflag.String("start-date", "", "First day to replay (YYYY-MM-DD)")
	endDate := pflag.String("end-date", "", "Last day to replay (YYYY-MM-DD), defaults to today")
	days := pflag.Int("days", 0, "Number of days to replay when --start-date is not set")
	output := pflag.String("output", "handle_rankings.csv", "Path of the ranked CSV")
	configDir := pflag.String("config", "./configs", "Directory containing config.yml")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(config.ModeBacktest); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if len(*handles) == 0 {
		*handles = cfg.Trading.Handles
	}
	if len(*handles) == 0 {
		fmt.Fprintln(os.Stderr, "No handles given, use --handles")
		os.Exit(2)
	}

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

	if *startDate == "" {
		*startDate = cfg.Backtest.StartDate
	}
	if *endDate == "" {
		*endDate = cfg.Backtest.EndDate
	}
	if *days <= 0 {
		*days = cfg.Backtest.Days
	}
	start, end, err := dateRange(session, *startDate, *endDate, *days, time.Now())
	if err != nil {
		log.Fatal("Invalid date range", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kiteClient := kite.NewClient(cfg.Kite, session, log)
	if cfg.Kite.AccessToken == "" {
		if _, err := kiteClient.GenerateSession(ctx, cfg.Kite.RequestToken); err != nil {
			log.Fatal("Failed to establish Kite session", zap.Error(err))
		}
	}

	var files *twitter.FileCache
	if cfg.Twitter.CacheEnabled {
		files = twitter.NewFileCache(cfg.Twitter.CacheDir)
	}
	feed := twitter.NewFeed(twitter.NewClient(cfg.Twitter, log), files, session, log)

	ext := extractor.NewFromRegistry(ctx, kiteClient, log)
	log.Info("Symbol registry loaded", zap.Int("symbols", ext.Size()))

	runner := backtest.NewRunner(backtest.Deps{
		Logger:     log,
		Session:    session,
		Feed:       feed,
		Classifier: sentiment.NewHTTPClassifier(cfg.Sentiment, log),
		Prices:     kiteClient,
		Extractor:  ext,
		Simulator: simulator.New(simulator.Params{
			Allocation: cfg.Trading.TradeAmount,
			StopPct:    cfg.Trading.StopLossPercentage / 100,
			TargetPct:  cfg.Trading.TargetPercentage / 100,
		}),
		Aggregator: metrics.NewAggregator(session),
	}, backtest.Options{
		Start:               start,
		End:                 end,
		PostsPerDay:         cfg.Backtest.PostsPerDay,
		ConfidenceThreshold: cfg.Trading.ConfidenceThreshold,
		Mode:                models.FeedBacktest,
	})

	var store analysis.RunStore
	if cfg.Database.DSN != "" {
		db, err := database.NewDatabase(cfg.Database.DSN)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		store = database.NewRepository(db)
	}

	analyzer := analysis.NewAnalyzer(log, runner, store, cfg.Backtest.Parallelism)
	res, err := analyzer.Analyze(ctx, *handles, start, end)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Analysis interrupted")
			os.Exit(130)
		}
		log.Fatal("Analysis failed", zap.Error(err))
	}

	fmt.Print(report.RenderText(res))

	table, err := report.RenderCSV(res.Rankings)
	if err != nil {
		log.Fatal("Failed to render rankings", zap.Error(err))
	}
	if err := os.WriteFile(*output, []byte(table), 0o644); err != nil {
		log.Fatal("Failed to write rankings", zap.String("path", *output), zap.Error(err))
	}
	log.Info("Rankings written", zap.String("path", *output), zap.Int("handles", len(res.Rankings)))
}

// dateRange resolves the replay range. Without an explicit start the range covers
// the last days days up to end.
func dateRange(session *market.Session, startDate, endDate string, days int, now time.Time) (time.Time, time.Time, error) {
	end := session.Day(now)
	if endDate != "" {
		d, err := session.ParseDate(endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
		}
		end = d
	}

	var start time.Time
	if startDate != "" {
		d, err := session.ParseDate(startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
		}
		start = d
	} else {
		if days <= 0 {
			days = 30
		}
		start = end.AddDate(0, 0, -days)
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s",
			start.Format(market.DateLayout), end.Format(market.DateLayout))
	}
	return start, end, nil
}
