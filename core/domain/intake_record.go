package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Persisted Records
// =============================================================================

// ProcessingStatus is the terminal outcome recorded for an email.
type ProcessingStatus string

const (
	StatusProcessed ProcessingStatus = "processed"
	StatusFlagged   ProcessingStatus = "flagged"
	StatusDiscarded ProcessingStatus = "discarded"
)

// ProcessedEmail is the append-only audit record for one evaluated message.
// MessageID is the idempotency key: a message id already present means the
// whole evaluation is a no-op.
type ProcessedEmail struct {
	ID                int64            `json:"id"`
	MessageID         string           `json:"message_id"`
	InternetMessageID string           `json:"internet_message_id,omitempty"`
	Mailbox           string           `json:"mailbox"`
	Subject           string           `json:"subject"`
	SenderEmail       string           `json:"sender_email"`
	Classification    string           `json:"classification"`
	Status            ProcessingStatus `json:"status"`
	Flagged           bool             `json:"flagged"`
	BodyText          string           `json:"body_text,omitempty"`
	BodyPreview       string           `json:"body_preview,omitempty"`
	AIReasoning       string           `json:"ai_reasoning,omitempty"`
	AIConfidence      float64          `json:"ai_confidence"`
	VerdictSource     string           `json:"verdict_source"`
	AIFactors         *SignalBundle    `json:"ai_factors,omitempty"`
	ProcessedAt       time.Time        `json:"processed_at"`
}

// EmailFeedback tracks the human response outcome of a flagged email.
// Created when the draft workflow begins, updated exactly once when a
// human sends the reply; never deleted.
type EmailFeedback struct {
	ID               int64      `json:"id"`
	MessageID        string     `json:"message_id"`
	FlaggedAt        time.Time  `json:"flagged_at"`
	Responded        bool       `json:"responded"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	DaysToResponse   *float64   `json:"days_to_response,omitempty"`
	ResponseCategory string     `json:"response_category,omitempty"`
}

// ProcessingStats is the immutable per-run counter row.
type ProcessingStats struct {
	ID         int64     `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	RunDate    time.Time `json:"run_date"`
	Processed  int       `json:"processed"`
	Flagged    int       `json:"flagged"`
	Skipped    int       `json:"skipped"`
	Discarded  int       `json:"discarded"`
	Errors     int       `json:"errors"`
	DurationMS int64     `json:"duration_ms"`
}

// Add folds another stats value into the receiver.
func (s *ProcessingStats) Add(o ProcessingStats) {
	s.Processed += o.Processed
	s.Flagged += o.Flagged
	s.Skipped += o.Skipped
	s.Discarded += o.Discarded
	s.Errors += o.Errors
}

// =============================================================================
// Derived Aggregates
// =============================================================================

// HistoryScope says whether a history snapshot was aggregated at the exact
// sender or at the sender-domain granularity.
type HistoryScope string

const (
	ScopeSender HistoryScope = "sender"
	ScopeDomain HistoryScope = "domain"
)

// PriorityTier buckets a sender's historical response rate.
type PriorityTier string

const (
	TierHigh   PriorityTier = "high"
	TierMedium PriorityTier = "medium"
	TierLow    PriorityTier = "low"
)

// SenderHistory is the read-side aggregate over ProcessedEmail + EmailFeedback
// for one sender address or domain. It has no independent lifecycle.
type SenderHistory struct {
	Scope           HistoryScope `json:"scope"`
	Key             string       `json:"key"`
	EmailCount      int          `json:"email_count"`
	ResponseRate    float64      `json:"response_rate"`
	AvgResponseDays float64      `json:"avg_response_days"`
	Tier            PriorityTier `json:"tier"`
}

// LearnedPattern is a sender- or domain-keyed classification shortcut that
// bypasses the AI call once enough observations exist.
type LearnedPattern struct {
	ID             int64        `json:"id"`
	Scope          HistoryScope `json:"scope"`
	Key            string       `json:"key"`
	Classification string       `json:"classification"`
	Occurrences    int          `json:"occurrences"`
	LastSeenAt     time.Time    `json:"last_seen_at"`
}
