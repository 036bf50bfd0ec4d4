package backtest

import (
	"context"
	"fmt"
	"time"

	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/metrics"
	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/simulator"

	"go.uber.org/zap"
)

// DefaultConfidenceThreshold is the minimum extractor confidence for a candidate to be traded.
const DefaultConfidenceThreshold = 0.7

// Feed yields the posts of a handle for one day in chronological order without duplicates.
type Feed interface {
	Posts(ctx context.Context, handle string, day time.Time, mode models.FeedMode) ([]models.Post, error)
}

// Classifier labels the sentiment of a post's text.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Sentiment, error)
}

// PriceProvider returns the bars around the open and the close of a day.
// Empty windows mean no data; they are not an error.
type PriceProvider interface {
	Bars(ctx context.Context, symbol string, day time.Time, windowMinutes int) (models.WindowBars, error)
}

// CandidateExtractor proposes ticker symbols for a post.
type CandidateExtractor interface {
	Analyze(text string) []models.Candidate
}

// Deps are the collaborators a Runner uses. They are shared read-only between runs.
type Deps struct {
	Logger     *zap.Logger
	Session    *market.Session
	Feed       Feed
	Classifier Classifier
	Prices     PriceProvider
	Extractor  CandidateExtractor
	Simulator  *simulator.Simulator
	Aggregator *metrics.Aggregator
}

// Options select what a Runner replays. WindowMinutes overrides the width of both
// price windows; zero uses the session's configured opening and closing widths.
type Options struct {
	Start               time.Time
	End                 time.Time
	PostsPerDay         int
	ConfidenceThreshold float64
	WindowMinutes       int
	Mode                models.FeedMode
}

// Stats counts what happened during a run.
type Stats struct {
	Days            int             `json:"days"`
	FailedDays      int             `json:"failed_days"`
	Posts           int             `json:"posts"`
	QualifyingPosts int             `json:"qualifying_posts"`
	BudgetExhausted int             `json:"budget_exhausted"`
	Outcomes        map[Outcome]int `json:"-"`
}

// Run is the replay of one handle over a date range.
type Run struct {
	Handle    string
	Start     time.Time
	End       time.Time
	Trades    []*models.Trade
	Symbols   *SymbolSet
	Stats     Stats
	Overall   metrics.Performance
	BySymbol  map[string]metrics.Performance
	Finalized bool
}

// Runner replays the posts of a handle against historical prices.
type Runner struct {
	deps Deps
	opts Options
}

// NewRunner creates a Runner.
func NewRunner(deps Deps, opts Options) *Runner {
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &Runner{deps: deps, opts: opts}
}

// Run replays every day in the range for handle, one post and one candidate at a time,
// then aggregates the trades once overall and once per traded symbol.
// Per-day and per-signal failures are logged and skipped. Collaborator unavailability
// and context cancellation abort the run, and so does a range in which every day failed.
func (r *Runner) Run(ctx context.Context, handle string) (*Run, error) {
	l := r.deps.Logger.With(zap.String("handle", handle))

	run := &Run{
		Handle:  handle,
		Start:   r.deps.Session.Day(r.opts.Start),
		End:     r.deps.Session.Day(r.opts.End),
		Symbols: NewSymbolSet(),
		Stats:   Stats{Outcomes: make(map[Outcome]int)},
	}

	var lastErr error
	for _, day := range r.deps.Session.Days(run.Start, run.End) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.Stats.Days++
		if err := r.replayDay(ctx, l, run, day); err != nil {
			if IsFatal(err) {
				return nil, fmt.Errorf("replay %s %s: %w", handle, day.Format(market.DateLayout), err)
			}
			run.Stats.FailedDays++
			lastErr = err
			l.Warn("Skipping day", zap.String("date", day.Format(market.DateLayout)), zap.Error(err))
		}
	}
	if run.Stats.Days > 0 && run.Stats.FailedDays == run.Stats.Days {
		return nil, fmt.Errorf("%w: %s over %d days: %w", ErrNoUsableDays, handle, run.Stats.Days, lastErr)
	}

	run.Overall = r.deps.Aggregator.Aggregate(run.Trades)
	run.BySymbol = r.deps.Aggregator.BySymbol(run.Trades)
	run.Finalized = true

	l.Info("Backtest complete",
		zap.Int("days", run.Stats.Days),
		zap.Int("posts", run.Stats.Posts),
		zap.Int("trades", len(run.Trades)),
		zap.Float64("total_pnl", run.Overall.TotalPnL),
	)
	return run, nil
}

func (r *Runner) replayDay(ctx context.Context, l *zap.Logger, run *Run, day time.Time) error {
	date := day.Format(market.DateLayout)
	l.Info("Replaying day", zap.String("date", date))

	posts, err := r.deps.Feed.Posts(ctx, run.Handle, day, r.opts.Mode)
	if err != nil {
		return fmt.Errorf("fetch posts: %w", err)
	}

	budget := newDayBudget(r.opts.PostsPerDay)
	for _, post := range posts {
		if budget.exhausted() {
			run.Stats.BudgetExhausted++
			l.Info("Daily post budget exhausted", zap.String("date", date), zap.Int("limit", budget.limit))
			break
		}
		budget.consume()
		run.Stats.Posts++

		if err := r.processPost(ctx, l, run, day, post); err != nil {
			if IsFatal(err) {
				return err
			}
			l.Warn("Skipping post", zap.String("post_id", post.ID), zap.Error(err))
		}
	}
	return nil
}

func (r *Runner) processPost(ctx context.Context, l *zap.Logger, run *Run, day time.Time, post models.Post) error {
	label, err := r.deps.Classifier.Classify(ctx, post.Text)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if post.Author == "" {
		post.Author = run.Handle
	}
	post = post.WithSentiment(label)
	if !label.Qualifies() {
		return nil
	}
	run.Stats.QualifyingPosts++

	for _, candidate := range r.deps.Extractor.Analyze(post.Text) {
		outcome, trade, err := r.processCandidate(ctx, day, post, candidate)
		if err != nil {
			if IsFatal(err) {
				return err
			}
			l.Warn("Skipping candidate", zap.String("symbol", candidate.Symbol), zap.Error(err))
			continue
		}
		run.Stats.Outcomes[outcome]++
		if trade == nil {
			l.Debug("No trade for signal",
				zap.String("post_id", post.ID),
				zap.String("symbol", candidate.Symbol),
				zap.Float64("confidence", candidate.Confidence),
				zap.Stringer("outcome", outcome),
			)
			continue
		}
		run.Trades = append(run.Trades, trade)
		run.Symbols.Add(trade.Symbol)
		l.Info("Simulated trade",
			zap.String("symbol", trade.Symbol),
			zap.Float64("entry_price", trade.EntryPrice),
			zap.Float64("exit_price", trade.ExitPrice),
			zap.String("exit_reason", trade.ExitReason),
			zap.Float64("pnl", trade.PnL),
		)
	}
	return nil
}

func (r *Runner) processCandidate(ctx context.Context, day time.Time, post models.Post, c models.Candidate) (Outcome, *models.Trade, error) {
	if c.Confidence < r.opts.ConfidenceThreshold {
		return OutcomeBelowThreshold, nil, nil
	}

	bars, err := r.deps.Prices.Bars(ctx, c.Symbol, day, r.opts.WindowMinutes)
	if err != nil {
		return 0, nil, fmt.Errorf("price data for %s: %w", c.Symbol, err)
	}
	if bars.Empty() {
		return OutcomeMissingData, nil, nil
	}

	trade, err := r.deps.Simulator.Simulate(c, post, r.windowFor(day, post, bars))
	outcome, ok := outcomeOf(err)
	if !ok {
		return 0, nil, err
	}
	return outcome, trade, nil
}

// windowFor picks the opening bars for posts made before the opening window ends
// and the closing bars otherwise.
func (r *Runner) windowFor(day time.Time, post models.Post, bars models.WindowBars) []models.Bar {
	opening := r.deps.Session.OpeningWindow(day)
	if r.opts.WindowMinutes > 0 {
		opening = r.deps.Session.OpeningWindowOf(day, time.Duration(r.opts.WindowMinutes)*time.Minute)
	}
	if post.CreatedAt.Before(opening.To) {
		return bars.Opening
	}
	return bars.Closing
}
