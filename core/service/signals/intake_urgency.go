package signals

import (
	"strings"

	"intake_server/core/domain"
)

// =============================================================================
// Urgency & Sentiment Scoring
// =============================================================================

var urgencyKeywords = []string{
	"urgent", "asap", "as soon as possible", "immediately", "right away",
	"rush", "emergency", "critical", "expedite", "today", "deadline",
	"time sensitive", "overnight",
}

var negativeKeywords = []string{
	"complaint", "disappointed", "unacceptable", "wrong", "damaged",
	"missing", "late", "delayed", "frustrated", "angry", "refund",
	"cancel", "terrible", "poor", "never received", "leaking",
}

var positiveKeywords = []string{
	"thank you", "thanks", "appreciate", "great", "excellent",
	"pleased", "happy", "perfect", "wonderful",
}

var formalMarkers = []string{
	"dear", "sincerely", "regards", "respectfully",
	"to whom it may concern", "please find attached", "pursuant",
}

// ScoreUrgency counts urgency keyword hits in text. Score thresholds:
// 3+ high, 1+ medium, otherwise low. Any hit marks the email urgent.
func ScoreUrgency(text string) domain.UrgencySignal {
	lower := strings.ToLower(text)

	var matched []string
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}

	score := len(matched)
	level := domain.UrgencyLow
	switch {
	case score >= 3:
		level = domain.UrgencyHigh
	case score >= 1:
		level = domain.UrgencyMedium
	}

	return domain.UrgencySignal{
		Level:           level,
		IsUrgent:        score >= 1,
		Score:           score,
		MatchedKeywords: matched,
	}
}

// ScoreSentiment counts negative/positive keyword hits and formality
// markers. Sentiment is negative when negative hits outnumber positive
// ones, positive when any positive hit exists, neutral otherwise. Two or
// more formal markers make the tone formal.
func ScoreSentiment(text string) domain.SentimentSignal {
	lower := strings.ToLower(text)

	neg := countHits(lower, negativeKeywords)
	pos := countHits(lower, positiveKeywords)
	formal := countHits(lower, formalMarkers)

	sentiment := "neutral"
	if neg > pos {
		sentiment = "negative"
	} else if pos > 0 {
		sentiment = "positive"
	}

	tone := "casual"
	if formal >= 2 {
		tone = "formal"
	}

	return domain.SentimentSignal{
		Sentiment:     sentiment,
		Tone:          tone,
		NegativeCount: neg,
		PositiveCount: pos,
		FormalCount:   formal,
	}
}

func countHits(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
