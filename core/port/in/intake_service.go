// Package in defines inbound ports (driving ports) for the intake pipeline.
package in

import (
	"context"

	"intake_server/core/domain"
)

// IntakeService is the inbound port for triggering mailbox sweeps.
type IntakeService interface {
	// RunAll sweeps every configured mailbox once and persists one
	// ProcessingStats row covering the whole run.
	RunAll(ctx context.Context) (*domain.ProcessingStats, error)

	// ProcessMailbox sweeps a single mailbox and returns its counters
	// without persisting them.
	ProcessMailbox(ctx context.Context, mailbox string) (domain.ProcessingStats, error)
}
