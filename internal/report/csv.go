package report

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"tweet-sentiment-trader-go/internal/ranking"
)

// CSVHeader lists the columns of the ranked table.
var CSVHeader = []string{
	"handle", "total_pnl", "win_rate", "sharpe_ratio", "profit_factor", "max_drawdown",
	"total_trades", "symbols_traded", "avg_profit_per_trade", "score",
}

// RenderCSV renders the ranked rows as CSV. symbols_traded is the number of distinct symbols.
func RenderCSV(rows []ranking.Row) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(CSVHeader); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Handle,
			fmt.Sprintf("%.2f", r.TotalPnL),
			fmt.Sprintf("%.6f", r.WinRate),
			fmt.Sprintf("%.6f", r.SharpeRatio),
			fmt.Sprintf("%.6f", r.ProfitFactor),
			fmt.Sprintf("%.2f", r.MaxDrawdown),
			strconv.Itoa(r.TotalTrades),
			strconv.Itoa(len(r.SymbolsTraded)),
			fmt.Sprintf("%.2f", r.AvgProfitPerTrade),
			fmt.Sprintf("%.4f", r.Score),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write row %s: %w", r.Handle, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return sb.String(), nil
}
