package simulator

import (
	"errors"
	"math"

	"tweet-sentiment-trader-go/internal/models"
)

// Non-fatal outcomes of Simulate. None of them produces a trade.
var (
	ErrEmptyPricePath = errors.New("no price data")
	ErrNoEntryBar     = errors.New("no bar after signal")
	ErrZeroQuantity   = errors.New("allocation too small for entry price")
)

// Params sizes and bounds every simulated position. Percentages are fractions (0.02 = 2%).
type Params struct {
	Allocation float64
	StopPct    float64
	TargetPct  float64
}

// Simulator replays a long position against a bar series.
type Simulator struct {
	params Params
}

// New creates a Simulator.
func New(params Params) *Simulator {
	return &Simulator{params: params}
}

// Params returns the simulator parameters.
func (s *Simulator) Params() Params { return s.params }

// Levels returns the stop-loss and target prices for an entry.
func (s *Simulator) Levels(entry float64) (stop, target float64) {
	return entry * (1 - s.params.StopPct), entry * (1 + s.params.TargetPct)
}

// Quantity returns how many whole shares the allocation buys at price.
func (s *Simulator) Quantity(price float64) int {
	if price <= 0 {
		return 0
	}
	return int(math.Floor(s.params.Allocation / price))
}

// Simulate opens a position at the open of the first bar strictly after the post and
// closes it at the stop, the target or the close of the last bar, whichever comes first.
// A bar touching both levels exits at the stop. Bars must be in ascending time order.
// Callers gate on sentiment and confidence before calling.
func (s *Simulator) Simulate(c models.Candidate, post models.Post, path []models.Bar) (*models.Trade, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPricePath
	}

	entryIdx := -1
	for i, bar := range path {
		if bar.Time.After(post.CreatedAt) {
			entryIdx = i
			break
		}
	}
	if entryIdx < 0 {
		return nil, ErrNoEntryBar
	}
	entryBar := path[entryIdx]

	qty := s.Quantity(entryBar.Open)
	if qty <= 0 {
		return nil, ErrZeroQuantity
	}

	stop, target := s.Levels(entryBar.Open)

	exitPrice := entryBar.Close
	exitTime := entryBar.Time
	reason := models.ExitReasonTimeout
	remaining := path[entryIdx+1:]
	if len(remaining) > 0 {
		last := remaining[len(remaining)-1]
		exitPrice, exitTime = last.Close, last.Time
	}
	for _, bar := range remaining {
		if bar.Low <= stop {
			exitPrice, exitTime, reason = stop, bar.Time, models.ExitReasonStopLoss
			break
		}
		if bar.High >= target {
			exitPrice, exitTime, reason = target, bar.Time, models.ExitReasonTarget
			break
		}
	}

	// Without a later bar there is no exit after entry.
	if !exitTime.After(entryBar.Time) {
		return nil, ErrNoEntryBar
	}

	return &models.Trade{
		Symbol:     c.Symbol,
		EntryPrice: entryBar.Open,
		EntryTime:  entryBar.Time,
		ExitPrice:  exitPrice,
		ExitTime:   exitTime,
		Quantity:   qty,
		PnL:        (exitPrice - entryBar.Open) * float64(qty),
		Status:     models.TradeStatusClosed,
		ExitReason: reason,
		PostID:     post.ID,
		Handle:     post.Author,
		Sentiment:  post.Sentiment,
	}, nil
}
