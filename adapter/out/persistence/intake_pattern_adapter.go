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
// Learned Pattern Adapter (sender/domain classification shortcuts)
// =============================================================================

// LearnedPatternAdapter implements out.LearnedPatternRepository.
type LearnedPatternAdapter struct {
	db *sqlx.DB
}

var _ out.LearnedPatternRepository = (*LearnedPatternAdapter)(nil)

// NewLearnedPatternAdapter creates a new LearnedPatternAdapter.
func NewLearnedPatternAdapter(db *sqlx.DB) *LearnedPatternAdapter {
	return &LearnedPatternAdapter{db: db}
}

// learnedPatternRow represents the database row.
type learnedPatternRow struct {
	ID             int64     `db:"id"`
	Scope          string    `db:"scope"`
	PatternKey     string    `db:"pattern_key"`
	Classification string    `db:"classification"`
	Occurrences    int       `db:"occurrences"`
	LastSeenAt     time.Time `db:"last_seen_at"`
}

func (r *learnedPatternRow) toEntity() *domain.LearnedPattern {
	return &domain.LearnedPattern{
		ID:             r.ID,
		Scope:          domain.HistoryScope(r.Scope),
		Key:            r.PatternKey,
		Classification: r.Classification,
		Occurrences:    r.Occurrences,
		LastSeenAt:     r.LastSeenAt,
	}
}

// Strongest returns the best pattern for the sender: sender-scoped patterns
// beat domain-scoped ones, then higher occurrence counts win.
func (a *LearnedPatternAdapter) Strongest(ctx context.Context, senderEmail, senderDomain string) (*domain.LearnedPattern, error) {
	var row learnedPatternRow
	query := `
		SELECT * FROM learned_patterns
		WHERE (scope = 'sender' AND pattern_key = $1)
		   OR (scope = 'domain' AND pattern_key = $2)
		ORDER BY CASE scope WHEN 'sender' THEN 0 ELSE 1 END, occurrences DESC
		LIMIT 1`

	if err := a.db.GetContext(ctx, &row, query, senderEmail, senderDomain); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get learned pattern: %w", err)
	}
	return row.toEntity(), nil
}

// RecordOccurrence upserts one observation for a scope/key/classification.
func (a *LearnedPatternAdapter) RecordOccurrence(ctx context.Context, scope domain.HistoryScope, key, classification string, seenAt time.Time) error {
	query := `
		INSERT INTO learned_patterns (scope, pattern_key, classification, occurrences, last_seen_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (scope, pattern_key, classification)
		DO UPDATE SET occurrences = learned_patterns.occurrences + 1, last_seen_at = $4`

	_, err := a.db.ExecContext(ctx, query, string(scope), key, classification, seenAt)
	if err != nil {
		return fmt.Errorf("failed to record pattern occurrence: %w", err)
	}
	return nil
}
