package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/restclient"

	"go.uber.org/zap"
)

// ErrUserNotFound is returned when a handle does not resolve to an account.
var ErrUserNotFound = errors.New("user not found")

// Tweet is a post as returned by the API.
type Tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type userResponse struct {
	Data *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

type tweetsResponse struct {
	Data []Tweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// Client is a minimal client for the v2 REST API using app-only bearer auth.
type Client struct {
	rest     *restclient.Client
	pageSize int
	logger   *zap.Logger
}

// NewClient creates a new Client.
func NewClient(cfg config.Twitter, logger *zap.Logger) *Client {
	rest := restclient.New(restclient.Options{
		BaseURL:    cfg.BaseURL,
		RateLimit:  cfg.RateLimit,
		Burst:      cfg.RateLimitBurst,
		MaxRetries: cfg.MaxRetries,
		Timeout:    30 * time.Second,
	}, logger.Named("twitter-rest"))
	rest.SetHeader("Authorization", "Bearer "+cfg.BearerToken)

	pageSize := cfg.PageSize
	if pageSize < 5 || pageSize > 100 {
		pageSize = 100
	}
	return &Client{rest: rest, pageSize: pageSize, logger: logger}
}

// UserID resolves a handle to its account id.
func (c *Client) UserID(ctx context.Context, handle string) (string, error) {
	var out userResponse
	req := c.rest.R(ctx).
		SetPathParam("username", handle).
		SetResult(&out)

	if _, err := c.rest.Do(ctx, http.MethodGet, "/users/by/username/{username}", req); err != nil {
		return "", fmt.Errorf("lookup user %s: %w", handle, err)
	}
	if out.Data == nil || out.Data.ID == "" {
		detail := ""
		if len(out.Errors) > 0 {
			detail = out.Errors[0].Detail
		}
		return "", fmt.Errorf("%w: %s %s", ErrUserNotFound, handle, detail)
	}
	return out.Data.ID, nil
}

// Tweets returns every tweet of userID created in [from, to), following pagination.
func (c *Client) Tweets(ctx context.Context, userID string, from, to time.Time) ([]Tweet, error) {
	var all []Tweet
	token := ""
	for {
		var page tweetsResponse
		req := c.rest.R(ctx).
			SetPathParam("id", userID).
			SetQueryParams(map[string]string{
				"start_time":   from.UTC().Format(time.RFC3339),
				"end_time":     to.UTC().Format(time.RFC3339),
				"max_results":  strconv.Itoa(c.pageSize),
				"tweet.fields": "created_at",
			}).
			SetResult(&page)
		if token != "" {
			req.SetQueryParam("pagination_token", token)
		}

		if _, err := c.rest.Do(ctx, http.MethodGet, "/users/{id}/tweets", req); err != nil {
			return nil, fmt.Errorf("fetch tweets of %s: %w", userID, err)
		}
		all = append(all, page.Data...)

		if page.Meta.NextToken == "" {
			break
		}
		token = page.Meta.NextToken
	}

	c.logger.Debug("Fetched tweets", zap.String("user_id", userID), zap.Int("count", len(all)))
	return all, nil
}
