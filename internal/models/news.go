package models

import "time"

// SentimentLabel classifies an article's tone.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// NewsSentiment is the per-article sentiment annotation, when the backend
// provides one.
type NewsSentiment struct {
	Score      float64        `json:"score"` // -1.0 to 1.0
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"` // 0.0 to 1.0
}

// NewsArticle is a single news item for a symbol.
type NewsArticle struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	URL         string         `json:"link"`
	Source      string         `json:"source"`
	PublishedAt time.Time      `json:"published_at"`
	ImageURL    string         `json:"image_url,omitempty"`
	Sentiment   *NewsSentiment `json:"sentiment,omitempty"`
	Summary     string         `json:"summary,omitempty"`
}

// NewsResponse is the news payload for one symbol.
type NewsResponse struct {
	Articles     []NewsArticle `json:"articles"`
	HasSentiment bool          `json:"has_sentiment"`
}
