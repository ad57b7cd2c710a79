package out

import (
	"context"
	"time"

	"intake_server/core/domain"
)

// =============================================================================
// Persistence Ports
// =============================================================================

// ProcessedEmailRepository stores the append-only audit trail.
type ProcessedEmailRepository interface {
	// Exists reports whether the message id has already been evaluated.
	Exists(ctx context.Context, messageID string) (bool, error)

	// Insert writes one record with insert-or-ignore semantics on message id.
	// Returns false when the id was already present and nothing was written.
	Insert(ctx context.Context, rec *domain.ProcessedEmail) (bool, error)

	GetByMessageID(ctx context.Context, messageID string) (*domain.ProcessedEmail, error)
}

// FeedbackRepository tracks human response outcomes for flagged mail.
type FeedbackRepository interface {
	// Create opens the feedback record when the draft workflow begins.
	Create(ctx context.Context, fb *domain.EmailFeedback) error

	// MarkResponded records the single human-response update.
	MarkResponded(ctx context.Context, messageID string, respondedAt time.Time, category string) error

	GetByMessageID(ctx context.Context, messageID string) (*domain.EmailFeedback, error)
}

// StatsRepository stores one immutable row per orchestrator run.
type StatsRepository interface {
	Insert(ctx context.Context, stats *domain.ProcessingStats) error
	ListRecent(ctx context.Context, days int) ([]domain.ProcessingStats, error)
}

// HistoryAggregate is the raw aggregate a history query returns before
// thresholds and tiers are applied by the service layer.
type HistoryAggregate struct {
	EmailCount      int
	RespondedCount  int
	AvgResponseDays float64
}

// SenderHistoryRepository reads response aggregates across
// ProcessedEmail + EmailFeedback.
type SenderHistoryRepository interface {
	SenderAggregate(ctx context.Context, senderEmail string) (*HistoryAggregate, error)
	DomainAggregate(ctx context.Context, senderDomain string) (*HistoryAggregate, error)
}

// LearnedPatternRepository stores sender/domain classification shortcuts.
type LearnedPatternRepository interface {
	// Strongest returns the pattern with the highest occurrence count for
	// the sender, falling back to the domain; nil when none exists.
	Strongest(ctx context.Context, senderEmail, senderDomain string) (*domain.LearnedPattern, error)

	// RecordOccurrence upserts one observation for both granularities.
	RecordOccurrence(ctx context.Context, scope domain.HistoryScope, key, classification string, seenAt time.Time) error
}

// BodyArchive stores full bodies of flagged mail outside the relational row.
type BodyArchive interface {
	Store(ctx context.Context, messageID string, body *domain.EmailBody) error
	Get(ctx context.Context, messageID string) (*domain.EmailBody, error)
}
