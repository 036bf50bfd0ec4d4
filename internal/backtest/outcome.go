package backtest

import (
	"context"
	"errors"

	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/simulator"
)

// ErrNoUsableDays is returned when every day of a run failed, so the handle has no results.
var ErrNoUsableDays = errors.New("no day could be replayed")

// Outcome is the recoverable result of processing one candidate signal.
type Outcome int

const (
	OutcomeTraded Outcome = iota
	OutcomeBelowThreshold
	OutcomeMissingData
	OutcomeNoEntryBar
	OutcomeZeroQuantity
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTraded:
		return "traded"
	case OutcomeBelowThreshold:
		return "below_threshold"
	case OutcomeMissingData:
		return "missing_data"
	case OutcomeNoEntryBar:
		return "no_entry_bar"
	case OutcomeZeroQuantity:
		return "zero_quantity"
	default:
		return "unknown"
	}
}

// outcomeOf maps a simulator error onto an Outcome.
func outcomeOf(err error) (Outcome, bool) {
	switch {
	case err == nil:
		return OutcomeTraded, true
	case errors.Is(err, simulator.ErrEmptyPricePath):
		return OutcomeMissingData, true
	case errors.Is(err, simulator.ErrNoEntryBar):
		return OutcomeNoEntryBar, true
	case errors.Is(err, simulator.ErrZeroQuantity):
		return OutcomeZeroQuantity, true
	default:
		return 0, false
	}
}

// IsFatal reports whether err must abort the run instead of being recovered locally.
func IsFatal(err error) bool {
	return errors.Is(err, models.ErrCollaboratorUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
