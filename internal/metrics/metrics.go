package metrics

import (
	"math"
	"sort"
	"time"

	"tweet-sentiment-trader-go/internal/models"

	"gonum.org/v1/gonum/stat"
)

// Summary is the aggregate of a set of closed trades.
type Summary struct {
	TotalTrades      int     `json:"total_trades"`
	ProfitableTrades int     `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalPnL         float64 `json:"total_pnl"`
	// ProfitFactor is +Inf when there are winning trades and no losing ones,
	// and 0 when there are neither.
	ProfitFactor float64 `json:"profit_factor"`
	// MaxDrawdown is the largest peak-to-trough fall of cumulative pnl, as a value <= 0.
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
}

// Performance is the overall summary plus the near-open and near-close segments.
type Performance struct {
	Summary
	Open  Summary `json:"open"`
	Close Summary `json:"close"`
}

// Segmenter decides which segment a trade's entry time belongs to.
type Segmenter interface {
	IsOpenSegment(t time.Time) bool
	IsCloseSegment(t time.Time) bool
}

// Aggregator computes performance metrics. It holds no state between calls.
type Aggregator struct {
	segments Segmenter
}

// NewAggregator creates an Aggregator.
func NewAggregator(segments Segmenter) *Aggregator {
	return &Aggregator{segments: segments}
}

// Aggregate computes the overall and segment metrics of trades.
func (a *Aggregator) Aggregate(trades []*models.Trade) Performance {
	var open, closing []*models.Trade
	for _, t := range trades {
		switch {
		case a.segments.IsOpenSegment(t.EntryTime):
			open = append(open, t)
		case a.segments.IsCloseSegment(t.EntryTime):
			closing = append(closing, t)
		}
	}
	return Performance{
		Summary: Summarize(trades),
		Open:    Summarize(open),
		Close:   Summarize(closing),
	}
}

// BySymbol computes metrics for each symbol's subset of trades.
func (a *Aggregator) BySymbol(trades []*models.Trade) map[string]Performance {
	groups := make(map[string][]*models.Trade)
	for _, t := range trades {
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}
	out := make(map[string]Performance, len(groups))
	for symbol, group := range groups {
		out[symbol] = a.Aggregate(group)
	}
	return out
}

// Summarize computes a Summary. Trades are ordered by entry time before the
// drawdown is measured; the input slice is not modified.
func Summarize(trades []*models.Trade) Summary {
	n := len(trades)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]*models.Trade, n)
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryTime.Before(sorted[j].EntryTime)
	})

	pnls := make([]float64, n)
	var s Summary
	var grossProfit, grossLoss float64
	for i, t := range sorted {
		pnls[i] = t.PnL
		s.TotalPnL += t.PnL
		switch {
		case t.PnL > 0:
			s.ProfitableTrades++
			grossProfit += t.PnL
		case t.PnL < 0:
			grossLoss += t.PnL
		}
	}

	s.TotalTrades = n
	s.WinRate = float64(s.ProfitableTrades) / float64(n)
	s.ProfitFactor = profitFactor(grossProfit, grossLoss)
	s.MaxDrawdown = maxDrawdown(pnls)
	s.SharpeRatio = sharpe(pnls)
	return s
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / math.Abs(grossLoss)
}

// maxDrawdown walks the cumulative pnl curve starting from a flat equity of 0.
func maxDrawdown(pnls []float64) float64 {
	var cum, peak, worst float64
	for _, p := range pnls {
		cum += p
		if cum > peak {
			peak = cum
		}
		if dd := cum - peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(pnls, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std
}
