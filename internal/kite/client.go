package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tweet-sentiment-trader-go/internal/cache"
	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/restclient"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	apiVersion = "3"

	OrderTypeMarket     = "MARKET"
	TransactionTypeBuy  = "BUY"
	TransactionTypeSell = "SELL"
)

type envelope[T any] struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
	Data      T      `json:"data"`
}

// Client talks to the Kite Connect REST API. It serves as the valid-symbol registry,
// the historical price provider and, in live mode, the broker.
type Client struct {
	rest      *restclient.Client
	logger    *zap.Logger
	session   *market.Session
	apiKey    string
	apiSecret string
	exchange  string
	interval  string
	product   string

	mu          sync.RWMutex
	accessToken string

	instruments *cache.Store[string, map[string]Instrument]
	candles     *cache.Store[candleKey, []models.Bar]
}

// NewClient creates a new Client.
func NewClient(cfg config.Kite, session *market.Session, logger *zap.Logger) *Client {
	rest := restclient.New(restclient.Options{
		BaseURL:    cfg.BaseURL,
		RateLimit:  cfg.RateLimit,
		Burst:      cfg.RateLimitBurst,
		MaxRetries: cfg.MaxRetries,
		Timeout:    30 * time.Second,
	}, logger.Named("kite-rest"))
	rest.SetHeader("X-Kite-Version", apiVersion)

	return &Client{
		rest:        rest,
		logger:      logger,
		session:     session,
		apiKey:      cfg.ApiKey,
		apiSecret:   cfg.ApiSecret,
		accessToken: cfg.AccessToken,
		exchange:    cfg.Exchange,
		interval:    cfg.Interval,
		product:     cfg.Product,
		instruments: cache.NewStore[string, map[string]Instrument](),
		candles:     cache.NewStore[candleKey, []models.Bar](),
	}
}

func (c *Client) authorized(ctx context.Context) *resty.Request {
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	return c.rest.R(ctx).SetHeader("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, token))
}

// Checksum is the SHA-256 of api_key + request_token + api_secret, hex encoded.
func Checksum(apiKey, requestToken, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

// GenerateSession exchanges a request token for an access token and uses it from then on.
func (c *Client) GenerateSession(ctx context.Context, requestToken string) (string, error) {
	var out envelope[struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
	}]
	req := c.rest.R(ctx).
		SetFormData(map[string]string{
			"api_key":       c.apiKey,
			"request_token": requestToken,
			"checksum":      Checksum(c.apiKey, requestToken, c.apiSecret),
		}).
		SetResult(&out)

	if _, err := c.rest.Do(ctx, http.MethodPost, "/session/token", req); err != nil {
		return "", fmt.Errorf("generate session: %w", err)
	}
	if out.Data.AccessToken == "" {
		return "", fmt.Errorf("generate session: %w: empty access token", models.ErrCollaboratorUnavailable)
	}

	c.mu.Lock()
	c.accessToken = out.Data.AccessToken
	c.mu.Unlock()
	c.logger.Info("Kite session established", zap.String("user_id", out.Data.UserID))
	return out.Data.AccessToken, nil
}

// LastPrice returns the last traded price of symbol on the configured exchange.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	key := c.exchange + ":" + symbol
	var out envelope[map[string]struct {
		InstrumentToken int64   `json:"instrument_token"`
		LastPrice       float64 `json:"last_price"`
	}]
	req := c.authorized(ctx).
		SetQueryParam("i", key).
		SetResult(&out)

	if _, err := c.rest.Do(ctx, http.MethodGet, "/quote/ltp", req); err != nil {
		return 0, fmt.Errorf("last price of %s: %w", symbol, err)
	}
	quote, ok := out.Data[key]
	if !ok || quote.LastPrice <= 0 {
		return 0, fmt.Errorf("no last price for %s", symbol)
	}
	return quote.LastPrice, nil
}

// PlaceOrder places a regular market order and returns its order id.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, quantity int, side string) (string, error) {
	var out envelope[struct {
		OrderID string `json:"order_id"`
	}]
	req := c.authorized(ctx).
		SetFormData(map[string]string{
			"tradingsymbol":    symbol,
			"exchange":         c.exchange,
			"transaction_type": side,
			"order_type":       OrderTypeMarket,
			"quantity":         fmt.Sprint(quantity),
			"product":          c.product,
			"validity":         "DAY",
		}).
		SetResult(&out)

	if _, err := c.rest.Do(ctx, http.MethodPost, "/orders/regular", req); err != nil {
		c.logger.Error("Failed to place order", zap.String("symbol", symbol), zap.Error(err))
		return "", fmt.Errorf("place order %s: %w", symbol, err)
	}
	c.logger.Info("Order placed",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Int("quantity", quantity),
		zap.String("order_id", out.Data.OrderID),
	)
	return out.Data.OrderID, nil
}
