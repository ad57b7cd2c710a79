package classification

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"intake_server/core/domain"
	"intake_server/core/port/out"
)

// =============================================================================
// AI Stage — last resort, fail-open to human review
// =============================================================================

const (
	DefaultMaxPromptBody = 1500

	fallbackReasoning = "classification failed, defaulting to manual review"
)

// FallbackVerdict is returned whenever the model call or its parsing fails.
// The label routes to human review: a failed model call must never cause a
// customer message to be silently dropped.
func FallbackVerdict() *domain.Verdict {
	return &domain.Verdict{
		Classification: domain.LabelSupportRequest,
		Confidence:     0.5,
		Reasoning:      fallbackReasoning,
		Source:         domain.SourceFallback,
	}
}

// AIStage asks the language model for a verdict. It always answers: either
// the model's verdict or the fixed fallback. No retries.
type AIStage struct {
	client        out.CompletionClient
	flagLabels    []string
	skipLabels    []string
	maxPromptBody int
}

func NewAIStage(client out.CompletionClient, flagLabels, skipLabels []string, maxPromptBody int) *AIStage {
	if maxPromptBody <= 0 {
		maxPromptBody = DefaultMaxPromptBody
	}
	return &AIStage{
		client:        client,
		flagLabels:    flagLabels,
		skipLabels:    skipLabels,
		maxPromptBody: maxPromptBody,
	}
}

func (s *AIStage) Name() string { return "ai" }

func (s *AIStage) Classify(ctx context.Context, in *Input) (*domain.Verdict, error) {
	raw, err := s.client.CompleteJSON(ctx, s.systemPrompt(), s.userPrompt(in))
	if err != nil {
		return FallbackVerdict(), nil
	}

	v, ok := parseVerdict(raw)
	if !ok {
		return FallbackVerdict(), nil
	}
	return v, nil
}

func (s *AIStage) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify incoming emails for a chemical distribution company.\n")
	b.WriteString("Labels that require a human response: ")
	b.WriteString(strings.Join(s.flagLabels, ", "))
	b.WriteString(".\nLabels for automated noise: ")
	b.WriteString(strings.Join(s.skipLabels, ", "))
	b.WriteString(".\nRespond with exactly one JSON object: ")
	b.WriteString(`{"classification": "<label>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`)
	b.WriteString("\nNo prose, no markdown.")
	return b.String()
}

func (s *AIStage) userPrompt(in *Input) string {
	email := in.Email
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", email.SenderEmail())
	fmt.Fprintf(&b, "Subject: %s\n", sanitize(email.Subject, 200))
	fmt.Fprintf(&b, "Has attachments: %t\n", email.HasAttachments)
	fmt.Fprintf(&b, "Body:\n%s\n", sanitize(email.BodyPreview, s.maxPromptBody))

	if h := in.History; h != nil {
		fmt.Fprintf(&b, "\nSender history (%s %s): %d prior emails, %.0f%% answered by our team",
			h.Scope, h.Key, h.EmailCount, h.ResponseRate*100)
		switch h.Tier {
		case domain.TierHigh:
			b.WriteString(" — HIGH priority correspondent, we almost always respond.")
		case domain.TierLow:
			b.WriteString(" — LOW priority correspondent, we rarely respond.")
		default:
			b.WriteString(".")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// parseVerdict accepts only a bare JSON object. Markdown fences or
// surrounding prose fail the parse and trigger the fallback.
func parseVerdict(raw string) (*domain.Verdict, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '{' {
		return nil, false
	}

	var parsed struct {
		Classification string  `json:"classification"`
		Confidence     float64 `json:"confidence"`
		Reasoning      string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}
	if parsed.Classification == "" {
		return nil, false
	}

	conf := parsed.Confidence
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}

	return &domain.Verdict{
		Classification: strings.ToUpper(strings.TrimSpace(parsed.Classification)),
		Confidence:     conf,
		Reasoning:      parsed.Reasoning,
		Source:         domain.SourceAI,
	}, true
}

// sanitize strips non-printable runes and truncates to max bytes.
func sanitize(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	if len(s) > max {
		s = s[:max]
	}
	return strings.TrimSpace(s)
}
