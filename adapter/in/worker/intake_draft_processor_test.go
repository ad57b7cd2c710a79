package worker

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"intake_server/core/port/out"
)

type stubNotifier struct {
	jobs []*out.DraftJob
	err  error
}

func (s *stubNotifier) Notify(_ context.Context, job *out.DraftJob) error {
	s.jobs = append(s.jobs, job)
	return s.err
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestDraftProcessor_DeliversJob(t *testing.T) {
	notifier := &stubNotifier{}
	p := NewDraftProcessor(notifier, testLogger())

	data := []byte(`{"message_id":"m1","mailbox":"sales@chemco.com","sender_email":"buyer@acme.com","subject":"need a quote","classification":"QUOTE_REQUEST","ai_confidence":0.92}`)
	if err := p.Handle(context.Background(), "intake:draft", data); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(notifier.jobs) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(notifier.jobs))
	}
	job := notifier.jobs[0]
	if job.MessageID != "m1" || job.Classification != "QUOTE_REQUEST" {
		t.Errorf("job decoded wrong: %+v", job)
	}
	if job.AIConfidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", job.AIConfidence)
	}
}

func TestDraftProcessor_InvalidPayload(t *testing.T) {
	notifier := &stubNotifier{}
	p := NewDraftProcessor(notifier, testLogger())

	if err := p.Handle(context.Background(), "intake:draft", []byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
	if len(notifier.jobs) != 0 {
		t.Errorf("notifier should not be called for invalid payload")
	}
}

func TestDraftProcessor_NotifyErrorPropagates(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("endpoint down")}
	p := NewDraftProcessor(notifier, testLogger())

	err := p.Handle(context.Background(), "intake:draft", []byte(`{"message_id":"m2"}`))
	if err == nil {
		t.Fatal("expected delivery error to propagate for retry")
	}
}
