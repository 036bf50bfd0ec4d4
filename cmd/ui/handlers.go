package main

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"tweet-sentiment-trader-go/internal/database"
	"tweet-sentiment-trader-go/internal/metrics"
	"tweet-sentiment-trader-go/internal/models"

	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log        *zap.Logger
	repo       *database.Repository
	aggregator *metrics.Aggregator
	now        func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, repo *database.Repository, aggregator *metrics.Aggregator) *APIHandler {
	return &APIHandler{log: log, repo: repo, aggregator: aggregator, now: time.Now}
}

// Routes registers the API endpoints on mux.
func (h *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/trades", h.TradesHandler)
	mux.HandleFunc("GET /api/statistics", h.StatisticsHandler)
	mux.HandleFunc("GET /api/runs", h.RunsHandler)
}

// TradesHandler returns trades, most recent first. Query parameters run_id, handle,
// symbol, status and limit narrow the result.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.TradeFilter{
		RunID:  q.Get("run_id"),
		Handle: q.Get("handle"),
		Symbol: q.Get("symbol"),
		Status: q.Get("status"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	trades, err := h.repo.Trades(r.Context(), filter)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, trades)
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h metrics.Performance `json:"since_24h"`
	AllTime  metrics.Performance `json:"all_time"`
}

// StatisticsHandler recomputes performance over the closed trades, optionally for one
// run_id or handle.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trades, err := h.repo.Trades(r.Context(), database.TradeFilter{
		RunID:  q.Get("run_id"),
		Handle: q.Get("handle"),
		Status: models.TradeStatusClosed,
	})
	if err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	since24h := h.now().Add(-24 * time.Hour)
	all := make([]*models.Trade, 0, len(trades))
	var recent []*models.Trade
	for i := range trades {
		t := &trades[i]
		all = append(all, t)
		if t.EntryTime.After(since24h) {
			recent = append(recent, t)
		}
	}

	writeJSON(w, h.log, StatisticsResponse{
		Since24h: finite(h.aggregator.Aggregate(recent)),
		AllTime:  finite(h.aggregator.Aggregate(all)),
	})
}

// RunsHandler returns persisted run summaries, ranked when run_id is given.
func (h *APIHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repo.Runs(r.Context(), r.URL.Query().Get("run_id"))
	if err != nil {
		h.log.Error("Failed to get runs from database", zap.Error(err))
		http.Error(w, "Failed to get runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, runs)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", zap.Error(err))
	}
}

// finite replaces an infinite profit factor, which JSON cannot carry.
func finite(p metrics.Performance) metrics.Performance {
	for _, s := range []*metrics.Summary{&p.Summary, &p.Open, &p.Close} {
		if math.IsInf(s.ProfitFactor, 1) {
			s.ProfitFactor = math.MaxFloat64
		}
	}
	return p
}
