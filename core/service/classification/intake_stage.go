// Package classification implements the ordered cascade of classifier
// stages: deterministic rules, learned patterns, then the AI model. Each
// stage either returns a verdict or declines, and the orchestrator walks
// the cascade until one answers.
package classification

import (
	"context"

	"intake_server/core/domain"
)

// Input is everything a stage may consult about one email. Signals are
// always present; History is nil when the sender has no meaningful record.
type Input struct {
	Email   *domain.InboundEmail
	Signals *domain.SignalBundle
	History *domain.SenderHistory
}

// Stage is one classifier in the cascade. A (nil, nil) return means the
// stage has no opinion and the next stage runs. Stage errors are logged by
// the caller and treated as no-opinion, never as a batch failure.
type Stage interface {
	Name() string
	Classify(ctx context.Context, in *Input) (*domain.Verdict, error)
}
