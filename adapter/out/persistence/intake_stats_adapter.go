package persistence

import (
	"context"
	"fmt"
	"time"

	"intake_server/core/domain"
	"intake_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Processing Stats Adapter (one immutable row per run)
// =============================================================================

// StatsAdapter implements out.StatsRepository.
type StatsAdapter struct {
	db *sqlx.DB
}

var _ out.StatsRepository = (*StatsAdapter)(nil)

// NewStatsAdapter creates a new StatsAdapter.
func NewStatsAdapter(db *sqlx.DB) *StatsAdapter {
	return &StatsAdapter{db: db}
}

// statsRow represents the database row.
type statsRow struct {
	ID         int64     `db:"id"`
	RunID      uuid.UUID `db:"run_id"`
	RunDate    time.Time `db:"run_date"`
	Processed  int       `db:"processed"`
	Flagged    int       `db:"flagged"`
	Skipped    int       `db:"skipped"`
	Discarded  int       `db:"discarded"`
	Errors     int       `db:"errors"`
	DurationMS int64     `db:"duration_ms"`
}

func (r *statsRow) toEntity() domain.ProcessingStats {
	return domain.ProcessingStats{
		ID:         r.ID,
		RunID:      r.RunID,
		RunDate:    r.RunDate,
		Processed:  r.Processed,
		Flagged:    r.Flagged,
		Skipped:    r.Skipped,
		Discarded:  r.Discarded,
		Errors:     r.Errors,
		DurationMS: r.DurationMS,
	}
}

// Insert writes the per-run counter row.
func (a *StatsAdapter) Insert(ctx context.Context, stats *domain.ProcessingStats) error {
	query := `
		INSERT INTO processing_stats (run_id, run_date, processed, flagged, skipped, discarded, errors, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := a.db.QueryRowContext(ctx, query,
		stats.RunID, stats.RunDate, stats.Processed, stats.Flagged,
		stats.Skipped, stats.Discarded, stats.Errors, stats.DurationMS,
	).Scan(&stats.ID)

	if err != nil {
		return fmt.Errorf("failed to insert processing stats: %w", err)
	}
	return nil
}

// ListRecent retrieves the run rows of the last N days, newest first.
func (a *StatsAdapter) ListRecent(ctx context.Context, days int) ([]domain.ProcessingStats, error) {
	if days <= 0 {
		days = 7
	}

	var rows []statsRow
	query := `
		SELECT * FROM processing_stats
		WHERE run_date >= NOW() - ($1 * INTERVAL '1 day')
		ORDER BY run_date DESC`

	if err := a.db.SelectContext(ctx, &rows, query, days); err != nil {
		return nil, fmt.Errorf("failed to list processing stats: %w", err)
	}

	stats := make([]domain.ProcessingStats, len(rows))
	for i, row := range rows {
		stats[i] = row.toEntity()
	}
	return stats, nil
}
