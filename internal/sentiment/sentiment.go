package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tweet-sentiment-trader-go/internal/backtest"
	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/restclient"

	"go.uber.org/zap"
)

// Thresholds map a positivity score in [0, 1] onto a label.
type Thresholds config.Thresholds

// Label returns the sentiment label for score.
func (t Thresholds) Label(score float64) models.Sentiment {
	switch {
	case score >= t.SuperPositive:
		return models.SentimentSuperPositive
	case score >= t.Positive:
		return models.SentimentPositive
	case score <= t.SuperNegative:
		return models.SentimentSuperNegative
	case score <= t.Negative:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// LabelScore is one class probability returned by the inference endpoint.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Positivity collapses class probabilities into a single score: P(positive) + P(neutral)/2.
func Positivity(scores []LabelScore) float64 {
	var pos, neu float64
	for _, s := range scores {
		switch strings.ToUpper(s.Label) {
		case "POS", "POSITIVE", "LABEL_2":
			pos += s.Score
		case "NEU", "NEUTRAL", "LABEL_1":
			neu += s.Score
		}
	}
	return pos + neu/2
}

// HTTPClassifier classifies text with a hosted text-classification model.
type HTTPClassifier struct {
	client     *restclient.Client
	thresholds Thresholds
	logger     *zap.Logger
}

var _ backtest.Classifier = (*HTTPClassifier)(nil)

// NewHTTPClassifier creates a classifier for cfg.Endpoint.
func NewHTTPClassifier(cfg config.Sentiment, logger *zap.Logger) *HTTPClassifier {
	client := restclient.New(restclient.Options{
		BaseURL:    cfg.Endpoint,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		Timeout:    30 * time.Second,
	}, logger.Named("sentiment"))
	if cfg.ApiToken != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.ApiToken)
	}
	return &HTTPClassifier{client: client, thresholds: Thresholds(cfg.Thresholds), logger: logger}
}

// Classify returns the sentiment label of text.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (models.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return models.SentimentNeutral, nil
	}

	req := c.client.R(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"inputs": text})

	resp, err := c.client.Do(ctx, http.MethodPost, "", req)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	scores, err := decodeScores(resp.Body())
	if err != nil {
		return "", err
	}
	score := Positivity(scores)
	label := c.thresholds.Label(score)
	c.logger.Debug("Classified post", zap.Float64("score", score), zap.String("label", string(label)))
	return label, nil
}

// decodeScores accepts both [[{label,score}...]] and [{label,score}...].
func decodeScores(body []byte) ([]LabelScore, error) {
	var nested [][]LabelScore
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("empty classification response")
		}
		return nested[0], nil
	}
	var flat []LabelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("decode classification response: %w", err)
	}
	return flat, nil
}
