package database

import (
	"context"
	"fmt"
	"time"

	"tweet-sentiment-trader-go/internal/models"

	"gorm.io/gorm"
)

// TradeFilter narrows a trade query. Zero fields match everything.
type TradeFilter struct {
	RunID  string
	Handle string
	Symbol string
	Status string
	Since  time.Time
	Limit  int
}

// Repository reads and writes run output.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveRun stores the trades and the summary of one handle in a single transaction.
func (r *Repository) SaveRun(ctx context.Context, trades []*models.Trade, summary *models.RunSummary) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(trades) > 0 {
			for _, t := range trades {
				if t.RunID == "" {
					t.RunID = summary.RunID
				}
			}
			if err := tx.CreateInBatches(trades, 100).Error; err != nil {
				return fmt.Errorf("failed to save trades: %w", err)
			}
		}
		if err := tx.Create(summary).Error; err != nil {
			return fmt.Errorf("failed to save run summary: %w", err)
		}
		return nil
	})
}

// CreateTrade stores a single trade.
func (r *Repository) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// Trades returns the trades matching f, most recent entry first.
func (r *Repository) Trades(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	q := r.db.WithContext(ctx).Model(&models.Trade{})
	if f.RunID != "" {
		q = q.Where("run_id = ?", f.RunID)
	}
	if f.Handle != "" {
		q = q.Where("handle = ?", f.Handle)
	}
	if f.Symbol != "" {
		q = q.Where("symbol = ?", f.Symbol)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		q = q.Where("entry_time >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var trades []models.Trade
	if err := q.Order("entry_time desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	return trades, nil
}

// CountOpenTrades returns the number of positions still open.
func (r *Repository) CountOpenTrades(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Trade{}).Where("status = ?", models.TradeStatusOpen).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count open trades: %w", err)
	}
	return int(n), nil
}

// HasTradeForPost reports whether a trade was already opened from postID.
func (r *Repository) HasTradeForPost(ctx context.Context, postID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Trade{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to look up post: %w", err)
	}
	return n > 0, nil
}

// Runs returns the summaries of runID ordered by score, or every summary newest first
// when runID is empty.
func (r *Repository) Runs(ctx context.Context, runID string) ([]models.RunSummary, error) {
	q := r.db.WithContext(ctx).Model(&models.RunSummary{})
	if runID != "" {
		q = q.Where("run_id = ?", runID).Order("score desc")
	} else {
		q = q.Order("id desc")
	}
	var runs []models.RunSummary
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	return runs, nil
}
