package kite

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tweet-sentiment-trader-go/internal/backtest"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/models"

	"go.uber.org/zap"
)

const (
	candleTimeLayout = "2006-01-02T15:04:05-0700"
	queryTimeLayout  = "2006-01-02 15:04:05"
)

type candleKey struct {
	Symbol   string
	Date     string
	Interval string
}

// Candles returns the OHLCV bars of the instrument with token between from and to, oldest first.
func (c *Client) Candles(ctx context.Context, token int64, from, to time.Time) ([]models.Bar, error) {
	var out envelope[struct {
		Candles [][]any `json:"candles"`
	}]
	loc := c.session.Location()
	req := c.authorized(ctx).
		SetPathParams(map[string]string{
			"token":    strconv.FormatInt(token, 10),
			"interval": c.interval,
		}).
		SetQueryParams(map[string]string{
			"from": from.In(loc).Format(queryTimeLayout),
			"to":   to.In(loc).Format(queryTimeLayout),
		}).
		SetResult(&out)

	if _, err := c.rest.Do(ctx, http.MethodGet, "/instruments/historical/{token}/{interval}", req); err != nil {
		return nil, fmt.Errorf("fetch candles %d: %w", token, err)
	}

	bars := make([]models.Bar, 0, len(out.Data.Candles))
	for _, raw := range out.Data.Candles {
		bar, err := parseCandle(raw)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseCandle(raw []any) (models.Bar, error) {
	if len(raw) < 5 {
		return models.Bar{}, fmt.Errorf("candle has %d fields", len(raw))
	}
	ts, ok := raw[0].(string)
	if !ok {
		return models.Bar{}, fmt.Errorf("candle timestamp %v is not a string", raw[0])
	}
	t, err := time.Parse(candleTimeLayout, ts)
	if err != nil {
		return models.Bar{}, fmt.Errorf("parse candle time: %w", err)
	}
	nums := make([]float64, len(raw)-1)
	for i, v := range raw[1:] {
		f, ok := v.(float64)
		if !ok {
			return models.Bar{}, fmt.Errorf("candle field %d is %T", i+1, v)
		}
		nums[i] = f
	}
	bar := models.Bar{Time: t, Open: nums[0], High: nums[1], Low: nums[2], Close: nums[3]}
	if len(nums) > 4 {
		bar.Volume = int64(nums[4])
	}
	return bar, nil
}

// DayBars returns the bars of symbol for the whole of day. Results are cached by
// symbol, date and interval for the life of the client. An unknown symbol yields no bars.
func (c *Client) DayBars(ctx context.Context, symbol string, day time.Time) ([]models.Bar, error) {
	day = c.session.Day(day)
	key := candleKey{Symbol: symbol, Date: day.Format(market.DateLayout), Interval: c.interval}
	return c.candles.GetOrLoad(ctx, key, func(ctx context.Context) ([]models.Bar, error) {
		token, ok, err := c.Token(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.logger.Debug("Unknown instrument", zap.String("symbol", symbol))
			return nil, nil
		}
		return c.Candles(ctx, token, day, day.AddDate(0, 0, 1).Add(-time.Second))
	})
}

// Bars returns the bars within windowMinutes of the open and of the close on day.
// windowMinutes <= 0 uses the session's configured opening and closing widths.
// Missing data gives empty windows. Only collaborator unavailability and
// cancellation are returned as errors.
func (c *Client) Bars(ctx context.Context, symbol string, day time.Time, windowMinutes int) (models.WindowBars, error) {
	bars, err := c.DayBars(ctx, symbol, day)
	if err != nil {
		if backtest.IsFatal(err) {
			return models.WindowBars{}, err
		}
		c.logger.Warn("No price data", zap.String("symbol", symbol), zap.Error(err))
		return models.WindowBars{}, nil
	}

	if windowMinutes <= 0 {
		return SplitWindows(bars, c.session.OpeningWindow(day), c.session.ClosingWindow(day)), nil
	}
	width := time.Duration(windowMinutes) * time.Minute
	return SplitWindows(bars, c.session.OpeningWindowOf(day, width), c.session.ClosingWindowOf(day, width)), nil
}

// SplitWindows keeps the bars that fall inside the opening and the closing window.
func SplitWindows(bars []models.Bar, opening, closing market.Window) models.WindowBars {
	var w models.WindowBars
	for _, b := range bars {
		if opening.Contains(b.Time) {
			w.Opening = append(w.Opening, b)
		}
		if closing.Contains(b.Time) {
			w.Closing = append(w.Closing, b)
		}
	}
	return w
}

var _ backtest.PriceProvider = (*Client)(nil)
