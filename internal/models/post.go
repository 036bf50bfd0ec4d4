package models

import "time"

// Post is a single timestamped text post from a social-media account.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
}

// WithSentiment returns a copy of the post carrying label.
func (p Post) WithSentiment(label Sentiment) Post {
	p.Sentiment = label
	return p
}

// FeedMode controls how the feed filters posts by time of day.
type FeedMode int

const (
	// FeedBacktest returns every post of the day.
	FeedBacktest FeedMode = iota
	// FeedLive keeps only posts inside the monitored open/close windows.
	FeedLive
)

func (m FeedMode) String() string {
	if m == FeedLive {
		return "live"
	}
	return "backtest"
}
