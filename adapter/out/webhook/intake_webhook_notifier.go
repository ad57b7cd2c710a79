// Package webhook delivers draft jobs to the response-generation endpoint.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"intake_server/core/port/out"
	"intake_server/pkg/logger"
)

// =============================================================================
// Response Webhook Notifier
// =============================================================================

const (
	defaultTimeout = 5 * time.Second

	secretHeader = "X-Webhook-Secret"
)

// Notifier implements out.ResponseNotifier and out.ResponseDispatcher with a
// best-effort POST behind a circuit breaker. Delivery is an enhancement, not
// a correctness dependency, so an open breaker just drops jobs fast instead
// of stalling the sweep on a dead endpoint.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger
}

var (
	_ out.ResponseNotifier   = (*Notifier)(nil)
	_ out.ResponseDispatcher = (*Notifier)(nil)
)

// NewNotifier creates a Notifier for the configured endpoint.
func NewNotifier(url, secret string, timeout time.Duration, log *logger.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Default()
	}

	cbSettings := gobreaker.Settings{
		Name:        "response-webhook",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		log:    log,
	}
}

// webhookPayload is the wire shape consumed by the response generator.
type webhookPayload struct {
	MessageID      string          `json:"messageId"`
	SenderEmail    string          `json:"senderEmail"`
	Subject        string          `json:"subject"`
	Classification string          `json:"classification"`
	BodyText       string          `json:"bodyText"`
	BodyPreview    string          `json:"bodyPreview"`
	AIReasoning    string          `json:"aiReasoning"`
	AIConfidence   float64         `json:"aiConfidence"`
	EmailContext   *webhookContext `json:"emailContext,omitempty"`
}

type webhookContext struct {
	Thread   interface{} `json:"thread,omitempty"`
	Detected interface{} `json:"detected,omitempty"`
	Metadata interface{} `json:"metadata,omitempty"`
	Sender   interface{} `json:"sender,omitempty"`
}

// Notify POSTs one draft job; the context carries the overall deadline and
// the HTTP client enforces the per-call timeout.
func (n *Notifier) Notify(ctx context.Context, job *out.DraftJob) error {
	payload := webhookPayload{
		MessageID:      job.MessageID,
		SenderEmail:    job.SenderEmail,
		Subject:        job.Subject,
		Classification: job.Classification,
		BodyText:       job.BodyText,
		BodyPreview:    job.BodyPreview,
		AIReasoning:    job.AIReasoning,
		AIConfidence:   job.AIConfidence,
	}
	if c := job.Context; c != nil {
		payload.EmailContext = &webhookContext{
			Thread: c.Thread,
			Detected: map[string]interface{}{
				"entities":  c.Entities,
				"urgency":   c.Urgency,
				"sentiment": c.Sentiment,
			},
			Metadata: map[string]interface{}{
				"mailbox":        job.Mailbox,
				"hasAttachments": c.HasAttachments,
			},
			Sender: c.SenderHistory,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	_, err = n.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if n.secret != "" {
			req.Header.Set(secretHeader, n.secret)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	return nil
}

// Dispatch makes the notifier usable directly as the orchestrator's
// dispatcher when no queue sits in between.
func (n *Notifier) Dispatch(ctx context.Context, job *out.DraftJob) error {
	return n.Notify(ctx, job)
}
