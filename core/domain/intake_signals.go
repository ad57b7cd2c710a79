package domain

// =============================================================================
// Extracted Signals
// =============================================================================

// UrgencyLevel buckets the urgency keyword score.
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

// UrgencySignal is the result of urgency keyword scoring.
type UrgencySignal struct {
	Level           UrgencyLevel `json:"level"`
	IsUrgent        bool         `json:"is_urgent"`
	Score           int          `json:"score"`
	MatchedKeywords []string     `json:"matched_keywords,omitempty"`
}

// SentimentSignal is the result of sentiment/tone keyword scoring.
type SentimentSignal struct {
	Sentiment     string `json:"sentiment"` // negative | positive | neutral
	Tone          string `json:"tone"`      // formal | casual
	NegativeCount int    `json:"negative_count"`
	PositiveCount int    `json:"positive_count"`
	FormalCount   int    `json:"formal_count"`
}

// DetectedEntities are the structured mentions pulled out of the email text.
type DetectedEntities struct {
	Products     []string `json:"products,omitempty"`
	Quantities   []string `json:"quantities,omitempty"`
	OrderNumbers []string `json:"order_numbers,omitempty"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
}

// SignalBundle is everything the AI classifier and the webhook payload see
// about one email beyond its raw text. Persisted as the AI-factors column.
type SignalBundle struct {
	Entities       DetectedEntities `json:"entities"`
	Urgency        UrgencySignal    `json:"urgency"`
	Sentiment      SentimentSignal  `json:"sentiment"`
	SenderHistory  *SenderHistory   `json:"sender_history,omitempty"`
	Thread         []ThreadMessage  `json:"thread,omitempty"`
	HasAttachments bool             `json:"has_attachments"`
}
