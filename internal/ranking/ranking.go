package ranking

import (
	"math"
	"sort"

	"tweet-sentiment-trader-go/internal/metrics"
)

// Entry is the input for one handle.
type Entry struct {
	Handle  string
	Summary metrics.Summary
	Symbols []string
}

// Row is one line of the ranked table.
type Row struct {
	Handle            string   `json:"handle"`
	TotalPnL          float64  `json:"total_pnl"`
	WinRate           float64  `json:"win_rate"`
	SharpeRatio       float64  `json:"sharpe_ratio"`
	ProfitFactor      float64  `json:"profit_factor"`
	MaxDrawdown       float64  `json:"max_drawdown"`
	TotalTrades       int      `json:"total_trades"`
	SymbolsTraded     []string `json:"symbols_traded"`
	AvgProfitPerTrade float64  `json:"avg_profit_per_trade"`
	Score             float64  `json:"score"`
}

// Rank scores every handle by
//
//	(rank(sharpe) + rank(profit_factor) + rank(win_rate) - rank(|max_drawdown|)) / 4
//
// using ascending ranks where ties share their average rank, and returns the rows
// sorted by score, highest first. Equal scores are ordered by handle.
func Rank(entries []Entry) []Row {
	n := len(entries)
	if n == 0 {
		return nil
	}

	sharpe := make([]float64, n)
	pf := make([]float64, n)
	wr := make([]float64, n)
	dd := make([]float64, n)
	for i, e := range entries {
		sharpe[i] = e.Summary.SharpeRatio
		pf[i] = e.Summary.ProfitFactor
		wr[i] = e.Summary.WinRate
		dd[i] = math.Abs(e.Summary.MaxDrawdown)
	}
	rSharpe, rPF, rWR, rDD := AverageRanks(sharpe), AverageRanks(pf), AverageRanks(wr), AverageRanks(dd)

	rows := make([]Row, n)
	for i, e := range entries {
		s := e.Summary
		var avg float64
		if s.TotalTrades > 0 {
			avg = s.TotalPnL / float64(s.TotalTrades)
		}
		rows[i] = Row{
			Handle:            e.Handle,
			TotalPnL:          s.TotalPnL,
			WinRate:           s.WinRate,
			SharpeRatio:       s.SharpeRatio,
			ProfitFactor:      s.ProfitFactor,
			MaxDrawdown:       s.MaxDrawdown,
			TotalTrades:       s.TotalTrades,
			SymbolsTraded:     e.Symbols,
			AvgProfitPerTrade: avg,
			Score:             (rSharpe[i] + rPF[i] + rWR[i] - rDD[i]) / 4,
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Handle < rows[j].Handle
	})
	return rows
}

// AverageRanks returns the 1-based ascending rank of every value. Tied values
// receive the mean of the ranks they span.
func AverageRanks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for start := 0; start < n; {
		end := start + 1
		for end < n && values[idx[end]] == values[idx[start]] {
			end++
		}
		// positions start..end-1 hold ranks start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			ranks[idx[k]] = avg
		}
		start = end
	}
	return ranks
}
