package signals

import (
	"reflect"
	"testing"

	"intake_server/core/domain"
)

func TestScoreUrgency(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		level    domain.UrgencyLevel
		isUrgent bool
		score    int
	}{
		{
			name:     "urgent quote request",
			text:     "URGENT - need quote for 5 drums of acetone ASAP",
			level:    domain.UrgencyMedium,
			isUrgent: true,
			score:    2,
		},
		{
			name:     "high urgency",
			text:     "urgent emergency, need this immediately",
			level:    domain.UrgencyHigh,
			isUrgent: true,
			score:    3,
		},
		{
			name:  "calm message",
			text:  "Could you send the certificate of analysis when convenient?",
			level: domain.UrgencyLow,
		},
		{
			name:  "empty input",
			text:  "",
			level: domain.UrgencyLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreUrgency(tt.text)
			if got.Level != tt.level {
				t.Errorf("level = %s, want %s", got.Level, tt.level)
			}
			if got.IsUrgent != tt.isUrgent {
				t.Errorf("isUrgent = %v, want %v", got.IsUrgent, tt.isUrgent)
			}
			if got.Score != tt.score {
				t.Errorf("score = %d, want %d", got.Score, tt.score)
			}
		})
	}
}

func TestScoreUrgency_Deterministic(t *testing.T) {
	text := "rush order, deadline is today"
	if !reflect.DeepEqual(ScoreUrgency(text), ScoreUrgency(text)) {
		t.Error("urgency scoring not deterministic")
	}
}

func TestScoreSentiment(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		sentiment string
		tone      string
	}{
		{
			name:      "complaint",
			text:      "The drums arrived damaged and late. This is unacceptable.",
			sentiment: "negative",
			tone:      "casual",
		},
		{
			name:      "thank you note",
			text:      "Thanks for the quick turnaround, much appreciated!",
			sentiment: "positive",
			tone:      "casual",
		},
		{
			name:      "formal neutral",
			text:      "Dear sir, please find attached our purchase order. Regards, Pat",
			sentiment: "neutral",
			tone:      "formal",
		},
		{
			name:      "negative outweighs positive",
			text:      "Thanks, but the shipment was damaged and is still missing items.",
			sentiment: "negative",
			tone:      "casual",
		},
		{
			name:      "empty input",
			text:      "",
			sentiment: "neutral",
			tone:      "casual",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreSentiment(tt.text)
			if got.Sentiment != tt.sentiment {
				t.Errorf("sentiment = %s, want %s", got.Sentiment, tt.sentiment)
			}
			if got.Tone != tt.tone {
				t.Errorf("tone = %s, want %s", got.Tone, tt.tone)
			}
		})
	}
}
