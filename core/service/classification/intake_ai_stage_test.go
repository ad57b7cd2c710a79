package classification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"intake_server/core/domain"
)

type stubCompletion struct {
	response string
	err      error

	lastSystem string
	lastUser   string
}

func (s *stubCompletion) CompleteJSON(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	return s.response, s.err
}

func aiStage(client *stubCompletion) *AIStage {
	return NewAIStage(client,
		[]string{domain.LabelQuoteRequest, domain.LabelSupportRequest},
		[]string{domain.LabelSystemNotification, domain.LabelSpam},
		0)
}

func aiInput() *Input {
	return &Input{Email: &domain.InboundEmail{
		ID:          "m1",
		Subject:     "URGENT - need quote for 5 drums of acetone ASAP",
		From:        domain.EmailAddress{Email: "buyer@newcustomer.com"},
		BodyPreview: "Please quote 5 drums of acetone, delivery next week.",
	}}
}

func TestAIStage_ParsesVerdict(t *testing.T) {
	client := &stubCompletion{response: `{"classification": "QUOTE_REQUEST", "confidence": 0.9, "reasoning": "asks for a quote"}`}
	got, err := aiStage(client).Classify(context.Background(), aiInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Classification != domain.LabelQuoteRequest {
		t.Errorf("classification = %s, want %s", got.Classification, domain.LabelQuoteRequest)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
	if got.Source != domain.SourceAI {
		t.Errorf("source = %s, want %s", got.Source, domain.SourceAI)
	}
}

func TestAIStage_FallbackCases(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "transport error", err: errors.New("timeout")},
		{name: "empty completion", response: ""},
		{name: "markdown fenced", response: "```json\n{\"classification\": \"SPAM\"}\n```"},
		{name: "prose wrapped", response: `Sure! Here is the JSON: {"classification": "SPAM"}`},
		{name: "not json", response: "SPAM"},
		{name: "missing classification", response: `{"confidence": 0.9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubCompletion{response: tt.response, err: tt.err}
			got, err := aiStage(client).Classify(context.Background(), aiInput())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := FallbackVerdict()
			if *got != *want {
				t.Errorf("verdict = %+v, want fallback %+v", got, want)
			}
		})
	}
}

func TestAIStage_ConfidenceClamped(t *testing.T) {
	client := &stubCompletion{response: `{"classification": "SPAM", "confidence": 3.2, "reasoning": "x"}`}
	got, _ := aiStage(client).Classify(context.Background(), aiInput())
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", got.Confidence)
	}
}

func TestAIStage_PromptIncludesHistory(t *testing.T) {
	client := &stubCompletion{response: `{"classification": "QUOTE_REQUEST", "confidence": 0.8, "reasoning": "x"}`}
	in := aiInput()
	in.History = &domain.SenderHistory{
		Scope: domain.ScopeSender, Key: "buyer@newcustomer.com",
		EmailCount: 12, ResponseRate: 0.9, Tier: domain.TierHigh,
	}

	if _, err := aiStage(client).Classify(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(client.lastUser, "HIGH priority correspondent") {
		t.Errorf("user prompt missing history annotation:\n%s", client.lastUser)
	}
	if !strings.Contains(client.lastSystem, domain.LabelQuoteRequest) {
		t.Error("system prompt missing label space")
	}
}

func TestAIStage_SanitizesPrompt(t *testing.T) {
	client := &stubCompletion{response: `{"classification": "SPAM", "confidence": 1, "reasoning": "x"}`}
	in := aiInput()
	in.Email.Subject = "hello\x00\x1bworld"

	if _, err := aiStage(client).Classify(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.ContainsAny(client.lastUser, "\x00\x1b") {
		t.Error("control characters leaked into prompt")
	}
}
