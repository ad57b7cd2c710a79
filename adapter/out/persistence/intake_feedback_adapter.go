package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"intake_server/core/domain"
	"intake_server/core/port/out"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Email Feedback Adapter (human response outcomes)
// =============================================================================

// FeedbackAdapter implements out.FeedbackRepository.
type FeedbackAdapter struct {
	db *sqlx.DB
}

var _ out.FeedbackRepository = (*FeedbackAdapter)(nil)

// NewFeedbackAdapter creates a new FeedbackAdapter.
func NewFeedbackAdapter(db *sqlx.DB) *FeedbackAdapter {
	return &FeedbackAdapter{db: db}
}

// feedbackRow represents the database row.
type feedbackRow struct {
	ID               int64           `db:"id"`
	MessageID        string          `db:"message_id"`
	FlaggedAt        time.Time       `db:"flagged_at"`
	Responded        bool            `db:"responded"`
	RespondedAt      sql.NullTime    `db:"responded_at"`
	DaysToResponse   sql.NullFloat64 `db:"days_to_response"`
	ResponseCategory sql.NullString  `db:"response_category"`
}

func (r *feedbackRow) toEntity() *domain.EmailFeedback {
	fb := &domain.EmailFeedback{
		ID:               r.ID,
		MessageID:        r.MessageID,
		FlaggedAt:        r.FlaggedAt,
		Responded:        r.Responded,
		ResponseCategory: r.ResponseCategory.String,
	}
	if r.RespondedAt.Valid {
		fb.RespondedAt = &r.RespondedAt.Time
	}
	if r.DaysToResponse.Valid {
		fb.DaysToResponse = &r.DaysToResponse.Float64
	}
	return fb
}

// Create opens the feedback record for a freshly flagged email. Re-flagging
// the same message id is a no-op.
func (a *FeedbackAdapter) Create(ctx context.Context, fb *domain.EmailFeedback) error {
	query := `
		INSERT INTO email_feedback (message_id, flagged_at, responded)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id`

	err := a.db.QueryRowContext(ctx, query, fb.MessageID, fb.FlaggedAt).Scan(&fb.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("failed to create feedback record: %w", err)
	}
	return nil
}

// MarkResponded records the single human-response update; days-to-response
// is derived from the flagged-at timestamp in SQL.
func (a *FeedbackAdapter) MarkResponded(ctx context.Context, messageID string, respondedAt time.Time, category string) error {
	query := `
		UPDATE email_feedback
		SET responded = TRUE,
		    responded_at = $2,
		    days_to_response = EXTRACT(EPOCH FROM ($2 - flagged_at)) / 86400.0,
		    response_category = $3
		WHERE message_id = $1 AND responded = FALSE`

	result, err := a.db.ExecContext(ctx, query, messageID, respondedAt, nullStr(category))
	if err != nil {
		return fmt.Errorf("failed to mark feedback responded: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("feedback record not found or already responded: %s", messageID)
	}
	return nil
}

// GetByMessageID retrieves the feedback record for one message.
func (a *FeedbackAdapter) GetByMessageID(ctx context.Context, messageID string) (*domain.EmailFeedback, error) {
	var row feedbackRow
	query := `SELECT * FROM email_feedback WHERE message_id = $1`

	if err := a.db.GetContext(ctx, &row, query, messageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get feedback record: %w", err)
	}
	return row.toEntity(), nil
}
