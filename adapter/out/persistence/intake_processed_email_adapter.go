// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"intake_server/core/domain"
	"intake_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Processed Email Adapter (append-only audit trail)
// =============================================================================

// ProcessedEmailAdapter implements out.ProcessedEmailRepository.
type ProcessedEmailAdapter struct {
	db *sqlx.DB
}

var _ out.ProcessedEmailRepository = (*ProcessedEmailAdapter)(nil)

// NewProcessedEmailAdapter creates a new ProcessedEmailAdapter.
func NewProcessedEmailAdapter(db *sqlx.DB) *ProcessedEmailAdapter {
	return &ProcessedEmailAdapter{db: db}
}

// processedEmailRow represents the database row.
type processedEmailRow struct {
	ID                int64          `db:"id"`
	MessageID         string         `db:"message_id"`
	InternetMessageID sql.NullString `db:"internet_message_id"`
	Mailbox           string         `db:"mailbox"`
	Subject           string         `db:"subject"`
	SenderEmail       string         `db:"sender_email"`
	Classification    string         `db:"classification"`
	Status            string         `db:"status"`
	Flagged           bool           `db:"flagged"`
	BodyText          sql.NullString `db:"body_text"`
	BodyPreview       sql.NullString `db:"body_preview"`
	AIReasoning       sql.NullString `db:"ai_reasoning"`
	AIConfidence      float64        `db:"ai_confidence"`
	VerdictSource     string         `db:"verdict_source"`
	AIFactors         []byte         `db:"ai_factors"`
	ProcessedAt       time.Time      `db:"processed_at"`
}

func (r *processedEmailRow) toEntity() (*domain.ProcessedEmail, error) {
	rec := &domain.ProcessedEmail{
		ID:                r.ID,
		MessageID:         r.MessageID,
		InternetMessageID: r.InternetMessageID.String,
		Mailbox:           r.Mailbox,
		Subject:           r.Subject,
		SenderEmail:       r.SenderEmail,
		Classification:    r.Classification,
		Status:            domain.ProcessingStatus(r.Status),
		Flagged:           r.Flagged,
		BodyText:          r.BodyText.String,
		BodyPreview:       r.BodyPreview.String,
		AIReasoning:       r.AIReasoning.String,
		AIConfidence:      r.AIConfidence,
		VerdictSource:     r.VerdictSource,
		ProcessedAt:       r.ProcessedAt,
	}
	if len(r.AIFactors) > 0 {
		var bundle domain.SignalBundle
		if err := json.Unmarshal(r.AIFactors, &bundle); err != nil {
			return nil, fmt.Errorf("failed to decode ai factors: %w", err)
		}
		rec.AIFactors = &bundle
	}
	return rec, nil
}

// Exists reports whether a record for the message id is already present.
func (a *ProcessedEmailAdapter) Exists(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM processed_emails WHERE message_id = $1)`

	if err := a.db.GetContext(ctx, &exists, query, messageID); err != nil {
		return false, fmt.Errorf("failed to check processed email: %w", err)
	}
	return exists, nil
}

// Insert writes one audit record with insert-or-ignore semantics on
// message id. Returns false when the id was already present.
func (a *ProcessedEmailAdapter) Insert(ctx context.Context, rec *domain.ProcessedEmail) (bool, error) {
	var factors []byte
	if rec.AIFactors != nil {
		var err error
		if factors, err = json.Marshal(rec.AIFactors); err != nil {
			return false, fmt.Errorf("failed to encode ai factors: %w", err)
		}
	}

	query := `
		INSERT INTO processed_emails
			(message_id, internet_message_id, mailbox, subject, sender_email,
			 classification, status, flagged, body_text, body_preview,
			 ai_reasoning, ai_confidence, verdict_source, ai_factors, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id`

	err := a.db.QueryRowContext(ctx, query,
		rec.MessageID, nullStr(rec.InternetMessageID), rec.Mailbox, rec.Subject, rec.SenderEmail,
		rec.Classification, string(rec.Status), rec.Flagged, nullStr(rec.BodyText), nullStr(rec.BodyPreview),
		nullStr(rec.AIReasoning), rec.AIConfidence, rec.VerdictSource, factors, rec.ProcessedAt,
	).Scan(&rec.ID)

	if err != nil {
		if err == sql.ErrNoRows {
			// Conflict, record already exists
			return false, nil
		}
		return false, fmt.Errorf("failed to insert processed email: %w", err)
	}
	return true, nil
}

// GetByMessageID retrieves one audit record.
func (a *ProcessedEmailAdapter) GetByMessageID(ctx context.Context, messageID string) (*domain.ProcessedEmail, error) {
	var row processedEmailRow
	query := `SELECT * FROM processed_emails WHERE message_id = $1`

	if err := a.db.GetContext(ctx, &row, query, messageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get processed email: %w", err)
	}
	return row.toEntity()
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
