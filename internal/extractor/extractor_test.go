package extractor

import (
	"context"
	"errors"
	"testing"

	"tweet-sentiment-trader-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Symbols(ctx context.Context) (map[string]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func symbolSet(symbols ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

func find(candidates []models.Candidate, symbol string) (models.Candidate, bool) {
	for _, c := range candidates {
		if c.Symbol == symbol {
			return c, true
		}
	}
	return models.Candidate{}, false
}

func TestAnalyzeCashtagWithContext(t *testing.T) {
	e := New(symbolSet("TATASTEEL"))

	got := e.Analyze("Bullish on $TATASTEEL, buy target 150")

	require.Len(t, got, 1)
	assert.Equal(t, "TATASTEEL", got[0].Symbol)
	assert.GreaterOrEqual(t, got[0].Confidence, 0.6-1e-9)
	assert.InDelta(t, 0.6, got[0].Confidence, 1e-9)
}

func TestAnalyzeRules(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		symbol string
		want   float64
	}{
		{"cashtag", "watching $TCS closely", "TCS", 0.4},
		{"exchange qualified", "NSE:INFY looks strong", "INFY", 0.4},
		{"bse qualified", "BSE:INFY looks strong", "INFY", 0.4},
		{"suffix with hyphen", "RELIANCE-EQ breaking out", "RELIANCE", 0.5},
		{"suffix as separate word", "RELIANCE NSE breaking out", "RELIANCE", 0.5},
		{"suffix without hyphen", "TCSEQ breaking out", "TCS", 0.3},
		{"standalone", "TCS results today", "TCS", 0.2},
		{"cashtag and standalone", "$TCS and TCS again", "TCS", 0.6},
		{"all rules and boosts capped", "$TCS NSE:TCS TCS-EQ buy stop", "TCS", 1.0},
		{"action word only", "sell $TCS", "TCS", 0.5},
		{"risk word only", "$TCS sl 3400", "TCS", 0.5},
	}
	e := New(symbolSet("TCS", "INFY", "RELIANCE"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := find(e.Analyze(tt.text), tt.symbol)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got.Confidence, 1e-9)
		})
	}
}

func TestAnalyzeHyphenJoinedSymbols(t *testing.T) {
	e := New(symbolSet("TCS", "INFY"))

	got := e.Analyze("TCS-INFY pair trade, buy TCS- sell")

	require.Len(t, got, 2)
	assert.Equal(t, "TCS", got[0].Symbol)
	assert.InDelta(t, 0.3, got[0].Confidence, 1e-9)
	assert.Equal(t, "INFY", got[1].Symbol)
	assert.InDelta(t, 0.3, got[1].Confidence, 1e-9)
}

func TestAnalyzeFiltersUnknownSymbols(t *testing.T) {
	e := New(symbolSet("TCS"))

	got := e.Analyze("$ABCXYZ and CEO of $TCS said Q3 was 100 percent better")

	require.Len(t, got, 1)
	assert.Equal(t, "TCS", got[0].Symbol)
}

func TestAnalyzeIgnoresUrlsMentionsHashtags(t *testing.T) {
	e := New(symbolSet("TCS", "INFY", "WIPRO"))

	got := e.Analyze("@TCS #INFY see https://example.com/WIPRO")

	assert.Empty(t, got)
}

func TestAnalyzeOrdering(t *testing.T) {
	e := New(symbolSet("TCS", "INFY", "WIPRO"))

	got := e.Analyze("INFY WIPRO and $TCS")

	require.Len(t, got, 3)
	assert.Equal(t, "TCS", got[0].Symbol)
	// equal confidence keeps first-found order
	assert.Equal(t, "INFY", got[1].Symbol)
	assert.Equal(t, "WIPRO", got[2].Symbol)
}

func TestAnalyzeIdempotentAndBounded(t *testing.T) {
	e := New(symbolSet("TCS", "INFY", "HDFCBANK", "SBIN"))
	texts := []string{
		"",
		"$TCS $TCS $TCS NSE:TCS TCS-EQ TCSNSE TCS buy sell target stop",
		"HDFCBANK!!! SBIN?? INFY... buy buy buy",
		"lowercase tcs $infy",
		"$ : - $$ NSE: -EQ",
	}
	for _, text := range texts {
		first := e.Analyze(text)
		second := e.Analyze(text)
		assert.Equal(t, first, second)
		for _, c := range first {
			assert.GreaterOrEqual(t, c.Confidence, 0.0)
			assert.LessOrEqual(t, c.Confidence, 1.0)
		}
	}
}

func TestNewFromRegistry(t *testing.T) {
	t.Run("Loaded", func(t *testing.T) {
		registry := new(MockRegistry)
		registry.On("Symbols", mock.Anything).Return(symbolSet("TCS"), nil)

		e := NewFromRegistry(context.Background(), registry, zap.NewNop())

		assert.Equal(t, 1, e.Size())
		assert.Len(t, e.Analyze("$TCS"), 1)
		registry.AssertExpectations(t)
	})

	t.Run("RegistryFailure", func(t *testing.T) {
		registry := new(MockRegistry)
		registry.On("Symbols", mock.Anything).Return(nil, errors.New("instruments unavailable"))

		e := NewFromRegistry(context.Background(), registry, zap.NewNop())

		assert.Empty(t, e.Analyze("$TCS buy target"))
	})
}

func TestClean(t *testing.T) {
	assert.Equal(t, "buy $TCS  NSE:INFY RELIANCE EQ", Clean("buy $TCS! NSE:INFY RELIANCE-EQ @someone #stocks"))
}
