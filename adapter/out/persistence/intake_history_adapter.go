package persistence

import (
	"context"
	"fmt"

	"intake_server/core/port/out"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Sender History Adapter (read-side aggregate)
// =============================================================================

// SenderHistoryAdapter implements out.SenderHistoryRepository by aggregating
// over flagged audit records joined with their feedback outcomes.
type SenderHistoryAdapter struct {
	db *sqlx.DB
}

var _ out.SenderHistoryRepository = (*SenderHistoryAdapter)(nil)

// NewSenderHistoryAdapter creates a new SenderHistoryAdapter.
func NewSenderHistoryAdapter(db *sqlx.DB) *SenderHistoryAdapter {
	return &SenderHistoryAdapter{db: db}
}

// historyAggRow represents the aggregate query result.
type historyAggRow struct {
	EmailCount      int     `db:"email_count"`
	RespondedCount  int     `db:"responded_count"`
	AvgResponseDays float64 `db:"avg_response_days"`
}

const senderAggQuery = `
	SELECT COUNT(*)                                                        AS email_count,
	       COUNT(*) FILTER (WHERE f.responded)                             AS responded_count,
	       COALESCE(AVG(f.days_to_response) FILTER (WHERE f.responded), 0) AS avg_response_days
	FROM processed_emails e
	JOIN email_feedback f ON f.message_id = e.message_id
	WHERE e.sender_email = $1`

const domainAggQuery = `
	SELECT COUNT(*)                                                        AS email_count,
	       COUNT(*) FILTER (WHERE f.responded)                             AS responded_count,
	       COALESCE(AVG(f.days_to_response) FILTER (WHERE f.responded), 0) AS avg_response_days
	FROM processed_emails e
	JOIN email_feedback f ON f.message_id = e.message_id
	WHERE split_part(e.sender_email, '@', 2) = $1`

// SenderAggregate returns the response aggregate for one exact sender.
func (a *SenderHistoryAdapter) SenderAggregate(ctx context.Context, senderEmail string) (*out.HistoryAggregate, error) {
	return a.aggregate(ctx, senderAggQuery, senderEmail)
}

// DomainAggregate returns the response aggregate for one sender domain.
func (a *SenderHistoryAdapter) DomainAggregate(ctx context.Context, senderDomain string) (*out.HistoryAggregate, error) {
	return a.aggregate(ctx, domainAggQuery, senderDomain)
}

func (a *SenderHistoryAdapter) aggregate(ctx context.Context, query, key string) (*out.HistoryAggregate, error) {
	var row historyAggRow
	if err := a.db.GetContext(ctx, &row, query, key); err != nil {
		return nil, fmt.Errorf("failed to aggregate sender history: %w", err)
	}
	return &out.HistoryAggregate{
		EmailCount:      row.EmailCount,
		RespondedCount:  row.RespondedCount,
		AvgResponseDays: row.AvgResponseDays,
	}, nil
}
