package trader

import (
	"context"
	"fmt"
	"time"

	"tweet-sentiment-trader-go/internal/backtest"
	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/database"
	"tweet-sentiment-trader-go/internal/kite"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/simulator"
	"tweet-sentiment-trader-go/internal/twitter"

	"go.uber.org/zap"
)

// Broker places orders and quotes prices.
type Broker interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
	PlaceOrder(ctx context.Context, symbol string, quantity int, side string) (string, error)
}

// LiveFeed returns the latest posts of a handle for a day.
type LiveFeed interface {
	Refresh(ctx context.Context, handle string, day time.Time, mode models.FeedMode) ([]models.Post, error)
}

// TradeStore records opened positions.
type TradeStore interface {
	CreateTrade(ctx context.Context, trade *models.Trade) error
	CountOpenTrades(ctx context.Context) (int, error)
	HasTradeForPost(ctx context.Context, postID string) (bool, error)
}

var (
	_ Broker     = (*kite.Client)(nil)
	_ LiveFeed   = (*twitter.Feed)(nil)
	_ TradeStore = (*database.Repository)(nil)
)

// Deps are the collaborators of the Engine.
type Deps struct {
	Logger     *zap.Logger
	Cfg        *config.Config
	Session    *market.Session
	Feed       LiveFeed
	Classifier backtest.Classifier
	Extractor  backtest.CandidateExtractor
	Broker     Broker
	Store      TradeStore
	Sizing     *simulator.Simulator
	Now        func() time.Time
}

// Engine polls the monitored handles during the market windows and opens a long
// position for every qualifying post.
type Engine struct {
	Deps
	seen map[string]struct{}
}

// NewEngine creates a new trading engine.
func NewEngine(deps Deps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine{Deps: deps, seen: make(map[string]struct{})}
}

// Run starts the polling loop and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.Cfg.Trading.TickInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Logger.Info("Starting live trading loop",
		zap.Duration("interval", interval),
		zap.Strings("handles", e.Cfg.Trading.Handles),
		zap.Bool("dry_run", e.Cfg.Trading.DryRun),
	)

	for {
		select {
		case <-ctx.Done():
			e.Logger.Info("Stopping trading engine...")
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.Logger.Error("Tick failed", zap.Error(err))
			}
		}
	}
}

// Tick performs one polling round. Outside the monitored windows it does nothing.
// Errors of single handles and posts are logged; collaborator unavailability is returned.
func (e *Engine) Tick(ctx context.Context) error {
	now := e.Now()
	if !e.Session.InMonitoredWindow(now) {
		e.Logger.Debug("Outside monitored windows, skipping tick", zap.Time("now", now))
		return nil
	}

	for _, handle := range e.Cfg.Trading.Handles {
		l := e.Logger.With(zap.String("handle", handle))
		posts, err := e.Feed.Refresh(ctx, handle, now, models.FeedLive)
		if err != nil {
			if backtest.IsFatal(err) {
				return fmt.Errorf("poll %s: %w", handle, err)
			}
			l.Warn("Failed to poll handle", zap.Error(err))
			continue
		}

		for _, post := range posts {
			if _, ok := e.seen[post.ID]; ok {
				continue
			}

			// A failed post stays unseen and is retried on the next tick.
			if err := e.handlePost(ctx, l, post); err != nil {
				if backtest.IsFatal(err) {
					return err
				}
				l.Warn("Failed to act on post", zap.String("post_id", post.ID), zap.Error(err))
				continue
			}
			e.seen[post.ID] = struct{}{}
		}
	}
	return nil
}

func (e *Engine) handlePost(ctx context.Context, l *zap.Logger, post models.Post) error {
	done, err := e.Store.HasTradeForPost(ctx, post.ID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	label, err := e.Classifier.Classify(ctx, post.Text)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	post = post.WithSentiment(label)
	if !label.Qualifies() {
		l.Debug("Post does not qualify", zap.String("post_id", post.ID), zap.String("sentiment", string(label)))
		return nil
	}

	var pick *models.Candidate
	for _, c := range e.Extractor.Analyze(post.Text) {
		if c.Confidence >= e.Cfg.Trading.ConfidenceThreshold {
			pick = &c
			break
		}
	}
	if pick == nil {
		l.Debug("No confident symbol in post", zap.String("post_id", post.ID))
		return nil
	}

	open, err := e.Store.CountOpenTrades(ctx)
	if err != nil {
		return err
	}
	if limit := e.Cfg.Trading.MaxPositions; limit > 0 && open >= limit {
		l.Warn("Max positions reached, skipping signal", zap.String("symbol", pick.Symbol), zap.Int("open", open))
		return nil
	}

	return e.executeTrade(ctx, l, post, *pick)
}

func (e *Engine) executeTrade(ctx context.Context, l *zap.Logger, post models.Post, c models.Candidate) error {
	price, err := e.Broker.LastPrice(ctx, c.Symbol)
	if err != nil {
		return err
	}
	qty := e.Sizing.Quantity(price)
	stop, target := e.Sizing.Levels(price)

	l = l.With(
		zap.String("symbol", c.Symbol),
		zap.Float64("confidence", c.Confidence),
		zap.Float64("price", price),
		zap.Int("quantity", qty),
	)
	if qty <= 0 {
		l.Warn("Allocation too small for price, skipping trade")
		return nil
	}

	l.Info("Executing trade...", zap.Float64("stop_loss", stop), zap.Float64("target", target))

	var orderID string
	if e.Cfg.Trading.DryRun {
		l.Warn("Dry run enabled. No real order will be placed.")
	} else {
		orderID, err = e.Broker.PlaceOrder(ctx, c.Symbol, qty, kite.TransactionTypeBuy)
		if err != nil {
			return err
		}
	}

	trade := &models.Trade{
		Symbol:     c.Symbol,
		EntryPrice: price,
		EntryTime:  e.Now(),
		Quantity:   qty,
		Status:     models.TradeStatusOpen,
		PostID:     post.ID,
		Handle:     post.Author,
		Sentiment:  post.Sentiment,
		OrderID:    orderID,
		DryRun:     e.Cfg.Trading.DryRun,
	}
	if err := e.Store.CreateTrade(ctx, trade); err != nil {
		// The order is live even if the record is lost.
		l.Error("Failed to save trade record to database", zap.Error(err))
		return nil
	}
	l.Info("Successfully saved trade record", zap.Uint("trade_id", trade.ID))
	return nil
}
