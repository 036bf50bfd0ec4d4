package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var defaultThresholds = Thresholds{SuperPositive: 0.8, Positive: 0.6, Negative: 0.4, SuperNegative: 0.2}

func TestLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Sentiment
	}{
		{0.95, models.SentimentSuperPositive},
		{0.8, models.SentimentSuperPositive},
		{0.7, models.SentimentPositive},
		{0.5, models.SentimentNeutral},
		{0.4, models.SentimentNegative},
		{0.3, models.SentimentNegative},
		{0.2, models.SentimentSuperNegative},
		{0.0, models.SentimentSuperNegative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultThresholds.Label(tt.score), "score %v", tt.score)
	}
}

func TestPositivity(t *testing.T) {
	score := Positivity([]LabelScore{{"POS", 0.7}, {"NEU", 0.2}, {"NEG", 0.1}})
	assert.InDelta(t, 0.8, score, 1e-12)
}

func newTestClassifier(t *testing.T, handler http.HandlerFunc) *HTTPClassifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClassifier(config.Sentiment{
		Endpoint:   server.URL,
		ApiToken:   "hf_test",
		Thresholds: config.Thresholds(defaultThresholds),
	}, zap.NewNop())
}

func TestClassify(t *testing.T) {
	t.Run("NestedResponse", func(t *testing.T) {
		c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "to the moon $TCS", body["inputs"])
			_, _ = w.Write([]byte(`[[{"label":"POS","score":0.9},{"label":"NEU","score":0.08},{"label":"NEG","score":0.02}]]`))
		})

		label, err := c.Classify(context.Background(), "to the moon $TCS")

		require.NoError(t, err)
		assert.Equal(t, models.SentimentSuperPositive, label)
	})

	t.Run("FlatResponse", func(t *testing.T) {
		c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"label":"NEG","score":0.85},{"label":"NEU","score":0.1},{"label":"POS","score":0.05}]`))
		})

		label, err := c.Classify(context.Background(), "dumping everything")

		require.NoError(t, err)
		assert.Equal(t, models.SentimentSuperNegative, label)
	})

	t.Run("EmptyText", func(t *testing.T) {
		c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Fail(t, "unexpected request")
		})

		label, err := c.Classify(context.Background(), "   ")

		require.NoError(t, err)
		assert.Equal(t, models.SentimentNeutral, label)
	})

	t.Run("BadPayload", func(t *testing.T) {
		c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Model is loading"}`))
		})

		_, err := c.Classify(context.Background(), "anything")

		assert.Error(t, err)
	})
}
