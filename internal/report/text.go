package report

import (
	"math"
	"sort"
	"strings"

	"tweet-sentiment-trader-go/internal/analysis"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/metrics"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	topHandles = 5
	topSymbols = 3
)

// RenderText renders the human readable analysis report.
func RenderText(res *analysis.Results) string {
	p := message.NewPrinter(language.English)
	var sb strings.Builder

	sb.WriteString("=== Twitter Handle Analysis Report ===\n")
	if res == nil || (len(res.Rankings) == 0 && len(res.Failed) == 0) {
		sb.WriteString("\nNo analysis results available.\n")
		return sb.String()
	}
	if !res.Start.IsZero() {
		sb.WriteString(p.Sprintf("Period: %s to %s\n", res.Start.Format(market.DateLayout), res.End.Format(market.DateLayout)))
	}

	sb.WriteString("\nTop Performing Handles:\n")
	for i, row := range res.Rankings {
		if i == topHandles {
			break
		}
		sb.WriteString(p.Sprintf("\n%s:\n", row.Handle))
		sb.WriteString(p.Sprintf("  Total P&L: ₹%.2f\n", row.TotalPnL))
		sb.WriteString(p.Sprintf("  Win Rate: %.2f%%\n", row.WinRate*100))
		sb.WriteString(p.Sprintf("  Sharpe Ratio: %.2f\n", row.SharpeRatio))
		sb.WriteString(p.Sprintf("  Profit Factor: %s\n", formatFactor(row.ProfitFactor)))
		sb.WriteString(p.Sprintf("  Symbols Traded: %d\n", len(row.SymbolsTraded)))
	}

	sb.WriteString("\nSymbol Analysis:\n")
	for _, run := range res.Runs {
		sb.WriteString(p.Sprintf("\n%s - Top Symbols:\n", run.Handle))
		for _, sym := range bestSymbols(run.BySymbol, topSymbols) {
			perf := run.BySymbol[sym]
			sb.WriteString(p.Sprintf("  %s:\n", sym))
			sb.WriteString(p.Sprintf("    P&L: ₹%.2f\n", perf.TotalPnL))
			sb.WriteString(p.Sprintf("    Win Rate: %.2f%%\n", perf.WinRate*100))
		}
	}

	if len(res.Failed) > 0 {
		sb.WriteString("\nSkipped Handles:\n")
		for _, f := range res.Failed {
			sb.WriteString(p.Sprintf("  %s: %v\n", f.Handle, f.Err))
		}
	}

	return sb.String()
}

// bestSymbols returns up to n symbols ordered by P&L, highest first.
func bestSymbols(bySymbol map[string]metrics.Performance, n int) []string {
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		pi, pj := bySymbol[symbols[i]].TotalPnL, bySymbol[symbols[j]].TotalPnL
		if pi != pj {
			return pi > pj
		}
		return symbols[i] < symbols[j]
	})
	if len(symbols) > n {
		symbols = symbols[:n]
	}
	return symbols
}

func formatFactor(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return message.NewPrinter(language.English).Sprintf("%.2f", v)
}
