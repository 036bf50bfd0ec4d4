package simulator

import (
	"testing"
	"time"

	"tweet-sentiment-trader-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

func minute(n int) time.Time { return base.Add(time.Duration(n) * time.Minute) }

func bar(n int, open, high, low, closePrice float64) models.Bar {
	return models.Bar{Time: minute(n), Open: open, High: high, Low: low, Close: closePrice}
}

func testPost() models.Post {
	return models.Post{ID: "p1", Author: "trader", CreatedAt: minute(0).Add(30 * time.Second), Sentiment: models.SentimentSuperPositive}
}

func newSimulator() *Simulator {
	return New(Params{Allocation: 10000, StopPct: 0.02, TargetPct: 0.04})
}

func assertTradeInvariants(t *testing.T, trade *models.Trade) {
	t.Helper()
	assert.True(t, trade.ExitTime.After(trade.EntryTime))
	assert.Greater(t, trade.Quantity, 0)
	assert.InDelta(t, (trade.ExitPrice-trade.EntryPrice)*float64(trade.Quantity), trade.PnL, 1e-9)
	assert.Equal(t, models.TradeStatusClosed, trade.Status)
}

func TestLevels(t *testing.T) {
	stop, target := newSimulator().Levels(2500)
	assert.InDelta(t, 2450, stop, 1e-9)
	assert.InDelta(t, 2600, target, 1e-9)
}

func TestSimulate(t *testing.T) {
	candidate := models.Candidate{Symbol: "TCS", Confidence: 0.8}

	tests := []struct {
		name       string
		path       []models.Bar
		wantExit   float64
		wantTime   time.Time
		wantReason string
		wantQty    int
	}{
		{
			name: "stop loss hit before target",
			path: []models.Bar{
				bar(0, 2490, 2495, 2485, 2490), // at or before the post, ignored
				bar(1, 2500, 2510, 2495, 2505),
				bar(2, 2505, 2520, 2440, 2450),
				bar(3, 2450, 2610, 2450, 2600),
			},
			wantExit: 2450, wantTime: minute(2), wantReason: models.ExitReasonStopLoss, wantQty: 4,
		},
		{
			name: "target hit",
			path: []models.Bar{
				bar(1, 2500, 2510, 2495, 2505),
				bar(2, 2505, 2550, 2460, 2540),
				bar(3, 2540, 2610, 2530, 2600),
				bar(4, 2600, 2700, 2400, 2650),
			},
			wantExit: 2600, wantTime: minute(3), wantReason: models.ExitReasonTarget, wantQty: 4,
		},
		{
			name: "same bar touches both levels exits at stop",
			path: []models.Bar{
				bar(1, 2500, 2510, 2495, 2505),
				bar(2, 2505, 2650, 2400, 2500),
			},
			wantExit: 2450, wantTime: minute(2), wantReason: models.ExitReasonStopLoss, wantQty: 4,
		},
		{
			name: "timeout exits at last close",
			path: []models.Bar{
				bar(1, 2500, 2510, 2495, 2505),
				bar(2, 2505, 2550, 2460, 2540),
				bar(3, 2540, 2580, 2530, 2570),
			},
			wantExit: 2570, wantTime: minute(3), wantReason: models.ExitReasonTimeout, wantQty: 4,
		},
		{
			name: "entry bar levels are not checked",
			path: []models.Bar{
				bar(1, 100, 200, 50, 100),
				bar(2, 100, 101, 99, 100.5),
			},
			wantExit: 100.5, wantTime: minute(2), wantReason: models.ExitReasonTimeout, wantQty: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade, err := newSimulator().Simulate(candidate, testPost(), tt.path)

			require.NoError(t, err)
			assertTradeInvariants(t, trade)
			assert.Equal(t, "TCS", trade.Symbol)
			assert.Equal(t, "p1", trade.PostID)
			assert.Equal(t, "trader", trade.Handle)
			assert.Equal(t, models.SentimentSuperPositive, trade.Sentiment)
			assert.Equal(t, tt.wantQty, trade.Quantity)
			assert.InDelta(t, tt.wantExit, trade.ExitPrice, 1e-9)
			assert.Equal(t, tt.wantTime, trade.ExitTime)
			assert.Equal(t, tt.wantReason, trade.ExitReason)
		})
	}
}

func TestSimulateScenarioPnL(t *testing.T) {
	candidate := models.Candidate{Symbol: "TCS", Confidence: 0.8}

	loss, err := newSimulator().Simulate(candidate, testPost(), []models.Bar{
		bar(1, 2500, 2500, 2500, 2500),
		bar(2, 2500, 2500, 2440, 2445),
	})
	require.NoError(t, err)
	assert.InDelta(t, (2450-2500)*4, loss.PnL, 1e-9)
	assert.Less(t, loss.PnL, 0.0)

	win, err := newSimulator().Simulate(candidate, testPost(), []models.Bar{
		bar(1, 2500, 2500, 2500, 2500),
		bar(2, 2500, 2610, 2460, 2605),
	})
	require.NoError(t, err)
	assert.InDelta(t, (2600-2500)*4, win.PnL, 1e-9)
	assert.Greater(t, win.PnL, 0.0)
}

func TestSimulateNoTrade(t *testing.T) {
	candidate := models.Candidate{Symbol: "MRF", Confidence: 0.9}

	t.Run("EmptyPath", func(t *testing.T) {
		trade, err := newSimulator().Simulate(candidate, testPost(), nil)
		assert.Nil(t, trade)
		assert.ErrorIs(t, err, ErrEmptyPricePath)
	})

	t.Run("NoBarAfterPost", func(t *testing.T) {
		trade, err := newSimulator().Simulate(candidate, testPost(), []models.Bar{bar(-1, 100, 100, 100, 100), bar(0, 100, 100, 100, 100)})
		assert.Nil(t, trade)
		assert.ErrorIs(t, err, ErrNoEntryBar)
	})

	t.Run("EntryIsLastBar", func(t *testing.T) {
		trade, err := newSimulator().Simulate(candidate, testPost(), []models.Bar{bar(1, 100, 100, 100, 100)})
		assert.Nil(t, trade)
		assert.ErrorIs(t, err, ErrNoEntryBar)
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		trade, err := newSimulator().Simulate(candidate, testPost(), []models.Bar{
			bar(1, 120000, 120000, 120000, 120000),
			bar(2, 120000, 120000, 120000, 120000),
		})
		assert.Nil(t, trade)
		assert.ErrorIs(t, err, ErrZeroQuantity)
	})
}
