// Package worker hosts the stream consumers of the intake server.
package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"intake_server/core/port/out"
)

// DraftProcessor drains draft jobs off the intake:draft stream and delivers
// them to the response-generation webhook. Delivery errors propagate so the
// consumer's retry/DLQ machinery handles them.
type DraftProcessor struct {
	notifier out.ResponseNotifier
	log      zerolog.Logger
}

// NewDraftProcessor creates a new DraftProcessor.
func NewDraftProcessor(notifier out.ResponseNotifier, log zerolog.Logger) *DraftProcessor {
	return &DraftProcessor{notifier: notifier, log: log}
}

// Handle processes one stream message.
func (p *DraftProcessor) Handle(ctx context.Context, stream string, data []byte) error {
	var job out.DraftJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("failed to decode draft job: %w", err)
	}

	p.log.Info().
		Str("stream", stream).
		Str("message_id", job.MessageID).
		Str("classification", job.Classification).
		Msg("delivering draft job")

	if err := p.notifier.Notify(ctx, &job); err != nil {
		return fmt.Errorf("failed to notify for %s: %w", job.MessageID, err)
	}
	return nil
}
