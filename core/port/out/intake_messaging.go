package out

import (
	"context"

	"intake_server/core/domain"
)

// =============================================================================
// Response Generation Hand-off
// =============================================================================

// DraftJob is the payload handed to the downstream response-generation
// workflow for a flagged email.
type DraftJob struct {
	MessageID      string               `json:"message_id"`
	Mailbox        string               `json:"mailbox"`
	SenderEmail    string               `json:"sender_email"`
	Subject        string               `json:"subject"`
	Classification string               `json:"classification"`
	BodyText       string               `json:"body_text"`
	BodyPreview    string               `json:"body_preview"`
	AIReasoning    string               `json:"ai_reasoning"`
	AIConfidence   float64              `json:"ai_confidence"`
	Context        *domain.SignalBundle `json:"context,omitempty"`
}

// ResponseDispatcher hands a flagged email to the response-generation
// workflow. Best-effort: a dispatch failure must never fail the email's own
// processing, so callers log and continue.
type ResponseDispatcher interface {
	Dispatch(ctx context.Context, job *DraftJob) error
}

// ResponseNotifier delivers one draft job to the configured webhook.
// Separate from ResponseDispatcher so a queue can sit between the two.
type ResponseNotifier interface {
	Notify(ctx context.Context, job *DraftJob) error
}
