package classification

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"intake_server/core/domain"
)

type stubPatternRepo struct {
	pattern *domain.LearnedPattern
	err     error
}

func (s *stubPatternRepo) Strongest(_ context.Context, _, _ string) (*domain.LearnedPattern, error) {
	return s.pattern, s.err
}

func (s *stubPatternRepo) RecordOccurrence(_ context.Context, _ domain.HistoryScope, _, _ string, _ time.Time) error {
	return nil
}

func patternInput() *Input {
	return &Input{Email: &domain.InboundEmail{
		ID:   "m1",
		From: domain.EmailAddress{Email: "pat@acme.com"},
	}}
}

func TestPatternStage_Classify(t *testing.T) {
	tests := []struct {
		name     string
		pattern  *domain.LearnedPattern
		wantNil  bool
		wantConf float64
	}{
		{
			name:    "no pattern",
			pattern: nil,
			wantNil: true,
		},
		{
			name:    "below occurrence threshold",
			pattern: &domain.LearnedPattern{Key: "pat@acme.com", Classification: domain.LabelQuoteRequest, Occurrences: 2},
			wantNil: true,
		},
		{
			name:     "at threshold",
			pattern:  &domain.LearnedPattern{Scope: domain.ScopeSender, Key: "pat@acme.com", Classification: domain.LabelQuoteRequest, Occurrences: 3},
			wantConf: 0.85,
		},
		{
			name:     "confidence capped",
			pattern:  &domain.LearnedPattern{Scope: domain.ScopeDomain, Key: "acme.com", Classification: domain.LabelOrderInquiry, Occurrences: 40},
			wantConf: 0.95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewPatternStage(&stubPatternRepo{pattern: tt.pattern}, 3)
			got, err := stage.Classify(context.Background(), patternInput())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("got nil verdict")
			}
			if got.Source != domain.SourcePattern {
				t.Errorf("source = %s, want %s", got.Source, domain.SourcePattern)
			}
			if got.Classification != tt.pattern.Classification {
				t.Errorf("classification = %s, want %s", got.Classification, tt.pattern.Classification)
			}
			if math.Abs(got.Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestPatternStage_RepoError(t *testing.T) {
	stage := NewPatternStage(&stubPatternRepo{err: errors.New("db down")}, 3)
	got, err := stage.Classify(context.Background(), patternInput())
	if err == nil {
		t.Fatal("want error when repository fails")
	}
	if got != nil {
		t.Errorf("got %+v, want nil verdict on error", got)
	}
}
