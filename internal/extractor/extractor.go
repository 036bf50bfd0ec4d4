package extractor

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"tweet-sentiment-trader-go/internal/models"

	"go.uber.org/zap"
)

// Rule weights. A symbol's confidence is the sum of the weights of every rule it matched,
// plus the context boosts, capped at 1.
const (
	WeightCashtag           = 0.4
	WeightExchangeQualified = 0.4
	WeightSuffixQualified   = 0.3
	WeightStandalone        = 0.2
	BoostActionWord         = 0.1
	BoostRiskWord           = 0.1
)

// SymbolRegistry returns the set of tradable tickers.
type SymbolRegistry interface {
	Symbols(ctx context.Context) (map[string]struct{}, error)
}

type rule int

const (
	ruleCashtag rule = iota
	ruleExchange
	ruleSuffix
	ruleStandalone
	ruleCount
)

var (
	urlPattern     = regexp.MustCompile(`https?\S+|www\S+`)
	mentionPattern = regexp.MustCompile(`@\w+`)
	hashtagPattern = regexp.MustCompile(`#\w+`)
	punctPattern   = regexp.MustCompile(`[^\w\s$:]`)

	// The suffix pattern covers SYMBOLEQ. Cleaning splits SYMBOL-EQ into a token pair,
	// which matchRule handles with suffixMarkers.
	rulePatterns = [ruleCount]*regexp.Regexp{
		ruleCashtag:    regexp.MustCompile(`^\$([A-Z0-9]+)`),
		ruleExchange:   regexp.MustCompile(`^(?:NSE|BSE):([A-Z0-9]+)`),
		ruleSuffix:     regexp.MustCompile(`^([A-Z0-9]+)(?:EQ|NSE|BSE)$`),
		ruleStandalone: regexp.MustCompile(`^([A-Z0-9]{2,})$`),
	}
	suffixMarkers = map[string]struct{}{"EQ": {}, "NSE": {}, "BSE": {}}

	ruleWeights = [ruleCount]float64{
		ruleCashtag:    WeightCashtag,
		ruleExchange:   WeightExchangeQualified,
		ruleSuffix:     WeightSuffixQualified,
		ruleStandalone: WeightStandalone,
	}

	actionWords = map[string]struct{}{"buy": {}, "buying": {}, "sell": {}, "selling": {}, "accumulate": {}}
	riskWords   = map[string]struct{}{"target": {}, "targets": {}, "tgt": {}, "stop": {}, "stoploss": {}, "sl": {}}
)

// Extractor proposes candidate ticker symbols for a post.
type Extractor struct {
	symbols map[string]struct{}
}

// New creates an Extractor that accepts only the given symbols.
func New(symbols map[string]struct{}) *Extractor {
	if symbols == nil {
		symbols = map[string]struct{}{}
	}
	return &Extractor{symbols: symbols}
}

// NewFromRegistry loads the valid-symbol set from registry. A registry failure is logged
// and yields an Extractor that never returns candidates.
func NewFromRegistry(ctx context.Context, registry SymbolRegistry, logger *zap.Logger) *Extractor {
	symbols, err := registry.Symbols(ctx)
	if err != nil {
		logger.Error("Failed to load valid symbols, extraction disabled", zap.Error(err))
		return New(nil)
	}
	logger.Info("Loaded valid symbols", zap.Int("count", len(symbols)))
	return New(symbols)
}

// Size returns the number of valid symbols.
func (e *Extractor) Size() int { return len(e.symbols) }

// Analyze returns the valid symbols mentioned in text sorted by confidence, highest first.
// Equal confidences keep the order in which the symbols were first found.
func (e *Extractor) Analyze(text string) []models.Candidate {
	if len(e.symbols) == 0 {
		return nil
	}

	tokens := strings.Fields(Clean(text))

	var order []string
	matched := make(map[string]*[ruleCount]bool)
	for r := rule(0); r < ruleCount; r++ {
		for i := range tokens {
			sym, ok := matchRule(r, tokens, i)
			if !ok {
				continue
			}
			hits, ok := matched[sym]
			if !ok {
				hits = new([ruleCount]bool)
				matched[sym] = hits
				order = append(order, sym)
			}
			hits[r] = true
		}
	}

	boost := contextBoost(tokens)
	candidates := make([]models.Candidate, 0, len(order))
	for _, sym := range order {
		if _, ok := e.symbols[sym]; !ok {
			continue
		}
		confidence := boost
		for r, hit := range matched[sym] {
			if hit {
				confidence += ruleWeights[r]
			}
		}
		candidates = append(candidates, models.Candidate{Symbol: sym, Confidence: clamp(confidence)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

// matchRule applies rule r to tokens[i]. The suffix rule also accepts a symbol
// followed by a separate EQ, NSE or BSE token.
func matchRule(r rule, tokens []string, i int) (string, bool) {
	if m := rulePatterns[r].FindStringSubmatch(tokens[i]); m != nil {
		return m[1], true
	}
	if r != ruleSuffix || i+1 >= len(tokens) {
		return "", false
	}
	if _, ok := suffixMarkers[tokens[i+1]]; !ok {
		return "", false
	}
	if m := rulePatterns[ruleStandalone].FindStringSubmatch(tokens[i]); m != nil {
		return m[1], true
	}
	return "", false
}

// Clean strips URLs, @-mentions, hashtags and punctuation other than '$' and ':'.
func Clean(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	text = hashtagPattern.ReplaceAllString(text, "")
	text = punctPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func contextBoost(tokens []string) float64 {
	var action, risk bool
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if _, ok := actionWords[lower]; ok {
			action = true
		}
		if _, ok := riskWords[lower]; ok {
			risk = true
		}
	}
	var boost float64
	if action {
		boost += BoostActionWord
	}
	if risk {
		boost += BoostRiskWord
	}
	return boost
}

// clamp bounds v to [0, 1] and rounds away float noise from summing the weights.
func clamp(v float64) float64 {
	v = math.Round(v*100) / 100
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
