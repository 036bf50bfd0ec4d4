package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"tweet-sentiment-trader-go/internal/backtest"
	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/ranking"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAllHandlesFailed is returned when no handle could be analyzed.
var ErrAllHandlesFailed = errors.New("all handles failed")

// HandleRunner replays one handle.
type HandleRunner interface {
	Run(ctx context.Context, handle string) (*backtest.Run, error)
}

// RunStore persists the output of a run.
type RunStore interface {
	SaveRun(ctx context.Context, trades []*models.Trade, summary *models.RunSummary) error
}

// Failure records a handle that could not be analyzed.
type Failure struct {
	Handle string
	Err    error
}

// Results is the output of analyzing several handles.
type Results struct {
	RunID    string
	Start    time.Time
	End      time.Time
	Runs     []*backtest.Run // successful runs in input order
	Failed   []Failure
	Rankings []ranking.Row
}

// Run returns the successful run for handle.
func (r *Results) Run(handle string) (*backtest.Run, bool) {
	for _, run := range r.Runs {
		if run.Handle == handle {
			return run, true
		}
	}
	return nil, false
}

// Analyzer runs the backtest for many handles and ranks them.
type Analyzer struct {
	logger      *zap.Logger
	runner      HandleRunner
	store       RunStore
	parallelism int
}

// NewAnalyzer creates an Analyzer. store may be nil to skip persistence.
// parallelism < 2 replays handles one after another.
func NewAnalyzer(logger *zap.Logger, runner HandleRunner, store RunStore, parallelism int) *Analyzer {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Analyzer{logger: logger, runner: runner, store: store, parallelism: parallelism}
}

// Analyze replays every handle. A failing handle is logged and left out of the ranking.
// An error is returned only when the context is cancelled or every handle failed.
func (a *Analyzer) Analyze(ctx context.Context, handles []string, start, end time.Time) (*Results, error) {
	res := &Results{RunID: uuid.NewString(), Start: start, End: end}
	l := a.logger.With(zap.String("run_id", res.RunID))
	l.Info("Starting analysis", zap.Strings("handles", handles), zap.Int("parallelism", a.parallelism))

	runs := make([]*backtest.Run, len(handles))
	errs := make([]error, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, handle := range handles {
		i, handle := i, handle
		g.Go(func() error {
			run, err := a.runner.Run(gctx, handle)
			if err != nil {
				errs[i] = err
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []ranking.Entry
	for i, handle := range handles {
		if errs[i] != nil {
			l.Error("Handle analysis failed", zap.String("handle", handle), zap.Error(errs[i]))
			res.Failed = append(res.Failed, Failure{Handle: handle, Err: errs[i]})
			continue
		}
		run := runs[i]
		for _, t := range run.Trades {
			t.RunID = res.RunID
		}
		res.Runs = append(res.Runs, run)
		entries = append(entries, ranking.Entry{
			Handle:  handle,
			Summary: run.Overall.Summary,
			Symbols: run.Symbols.Slice(),
		})
	}

	if len(handles) > 0 && len(res.Runs) == 0 {
		return res, fmt.Errorf("%w: %d handles", ErrAllHandlesFailed, len(handles))
	}

	res.Rankings = ranking.Rank(entries)
	a.persist(ctx, l, res)

	l.Info("Analysis complete", zap.Int("analyzed", len(res.Runs)), zap.Int("failed", len(res.Failed)))
	return res, nil
}

func (a *Analyzer) persist(ctx context.Context, l *zap.Logger, res *Results) {
	if a.store == nil {
		return
	}
	for _, row := range res.Rankings {
		run, ok := res.Run(row.Handle)
		if !ok {
			continue
		}
		summary := SummaryFor(res, run, row)
		if err := a.store.SaveRun(ctx, run.Trades, summary); err != nil {
			// The ranked report is still produced.
			l.Error("Failed to persist run", zap.String("handle", row.Handle), zap.Error(err))
		}
	}
}

// SummaryFor converts a ranked row into its persisted form.
func SummaryFor(res *Results, run *backtest.Run, row ranking.Row) *models.RunSummary {
	pf := row.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = math.MaxFloat64
	}
	return &models.RunSummary{
		RunID:             res.RunID,
		Handle:            row.Handle,
		StartDate:         res.Start,
		EndDate:           res.End,
		TotalTrades:       row.TotalTrades,
		ProfitableTrades:  run.Overall.ProfitableTrades,
		WinRate:           row.WinRate,
		TotalPnL:          row.TotalPnL,
		ProfitFactor:      pf,
		MaxDrawdown:       row.MaxDrawdown,
		SharpeRatio:       row.SharpeRatio,
		AvgProfitPerTrade: row.AvgProfitPerTrade,
		SymbolsTraded:     strings.Join(row.SymbolsTraded, ","),
		Score:             row.Score,
	}
}
