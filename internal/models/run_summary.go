package models

import (
	"time"

	"gorm.io/gorm"
)

// RunSummary is the persisted ranking row of one handle in one analysis run.
type RunSummary struct {
	gorm.Model
	RunID             string    `json:"run_id" gorm:"index"`
	Handle            string    `json:"handle"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	TotalTrades       int       `json:"total_trades"`
	ProfitableTrades  int       `json:"profitable_trades"`
	WinRate           float64   `json:"win_rate"`
	TotalPnL          float64   `json:"total_pnl"`
	ProfitFactor      float64   `json:"profit_factor"`
	MaxDrawdown       float64   `json:"max_drawdown"`
	SharpeRatio       float64   `json:"sharpe_ratio"`
	AvgProfitPerTrade float64   `json:"avg_profit_per_trade"`
	SymbolsTraded     string    `json:"symbols_traded"` // comma separated, first-traded order
	Score             float64   `json:"score"`
}
