package restclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tweet-sentiment-trader-go/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	RateLimit  float64 // requests per second, <= 0 disables limiting
	Burst      int
	MaxRetries int
	Timeout    time.Duration
}

// Client wraps resty with a rate limiter and a retry policy shared by every upstream API.
type Client struct {
	client     *resty.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	maxRetries int
	// initialInterval is the first backoff delay, kept small in tests.
	initialInterval time.Duration
}

// New creates a new Client for opts.BaseURL.
func New(opts Options, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(opts.BaseURL)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		client:          client,
		limiter:         rate.NewLimiter(limit, burst),
		logger:          logger,
		maxRetries:      opts.MaxRetries,
		initialInterval: time.Second,
	}
}

// R returns a new request bound to ctx.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.client.R().SetContext(ctx)
}

// SetHeader sets a header sent with every request.
func (c *Client) SetHeader(key, value string) *Client {
	c.client.SetHeader(key, value)
	return c
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Do executes req with rate limiting and retries.
// 429/418, 5xx and transport errors are retried with exponential backoff, honouring Retry-After.
// 401/403 are wrapped in models.ErrCollaboratorUnavailable. Other 4xx fail immediately.
func (c *Client) Do(ctx context.Context, method, path string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	attempt := 0

	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter wait failed: %w", err))
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+path))

		var err error
		resp, err = req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("Request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if !resp.IsError() {
			return nil
		}

		statusErr := &StatusError{Method: method, Path: path, Status: resp.StatusCode(), Body: resp.String()}
		switch code := resp.StatusCode(); {
		case code == http.StatusTooManyRequests || code == 418:
			if wait := retryAfter(resp); wait > 0 {
				c.logger.Warn("Rate limited, honouring Retry-After", zap.Duration("retry_after", wait))
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return statusErr
		case code >= http.StatusInternalServerError:
			c.logger.Warn("Server error, retrying", zap.Int("attempt", attempt), zap.Int("status", code))
			return statusErr
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: %w", models.ErrCollaboratorUnavailable, statusErr))
		default:
			return backoff.Permanent(statusErr)
		}
	}

	if err := backoff.Retry(op, c.policy(ctx)); err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.initialInterval
	exp.MaxElapsedTime = 0

	var b backoff.BackOff = exp
	if c.maxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}
	return backoff.WithContext(b, ctx)
}

func retryAfter(resp *resty.Response) time.Duration {
	if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// IsStatus reports whether err carries an upstream response with the given status.
func IsStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}
