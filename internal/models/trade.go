package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade status values.
const (
	TradeStatusOpen   = "OPEN"
	TradeStatusClosed = "CLOSED"
)

// Exit reason codes.
const (
	ExitReasonStopLoss = "STOP_LOSS"
	ExitReasonTarget   = "TARGET"
	ExitReasonTimeout  = "TIMEOUT"
)

// Trade is a simulated or live long position opened from a post.
// Backtest trades are always CLOSED; OPEN is only used by the live trader.
type Trade struct {
	gorm.Model
	RunID      string    `json:"run_id" gorm:"index"`
	Symbol     string    `json:"symbol" gorm:"index"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	ExitPrice  float64   `json:"exit_price"`
	ExitTime   time.Time `json:"exit_time"`
	Quantity   int       `json:"quantity" gorm:"not null"`
	PnL        float64   `json:"pnl"`
	Status     string    `json:"status"`
	ExitReason string    `json:"exit_reason,omitempty"`
	PostID     string    `json:"post_id"`
	Handle     string    `json:"handle" gorm:"index"`
	Sentiment  Sentiment `json:"sentiment"`
	OrderID    string    `json:"order_id,omitempty"`
	DryRun     bool      `json:"dry_run"`
}

// Closed reports whether the trade has an exit.
func (t *Trade) Closed() bool {
	return t.Status == TradeStatusClosed
}
