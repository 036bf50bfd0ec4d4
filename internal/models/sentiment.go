package models

// Sentiment is the categorical label assigned to a post by the classifier.
type Sentiment string

const (
	SentimentSuperPositive Sentiment = "SUPER_POSITIVE"
	SentimentPositive      Sentiment = "POSITIVE"
	SentimentNeutral       Sentiment = "NEUTRAL"
	SentimentNegative      Sentiment = "NEGATIVE"
	SentimentSuperNegative Sentiment = "SUPER_NEGATIVE"
)

// Qualifies reports whether the label is strong enough to attempt a trade.
// Only the most positive category qualifies.
func (s Sentiment) Qualifies() bool {
	return s == SentimentSuperPositive
}
