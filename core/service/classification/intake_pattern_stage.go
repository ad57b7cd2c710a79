package classification

import (
	"context"
	"fmt"

	"intake_server/core/domain"
	"intake_server/core/port/out"
)

// =============================================================================
// Learned-Pattern Stage
// =============================================================================

const (
	DefaultPatternMinOccurrences = 3

	patternBaseConfidence = 0.70
	patternConfidenceStep = 0.05
	patternMaxConfidence  = 0.95
)

// PatternStage answers from learned sender/domain patterns once a pattern
// has enough observations. Confidence grows with occurrence count, capped
// below certainty since patterns are inferred, not configured.
type PatternStage struct {
	repo           out.LearnedPatternRepository
	minOccurrences int
}

func NewPatternStage(repo out.LearnedPatternRepository, minOccurrences int) *PatternStage {
	if minOccurrences <= 0 {
		minOccurrences = DefaultPatternMinOccurrences
	}
	return &PatternStage{repo: repo, minOccurrences: minOccurrences}
}

func (s *PatternStage) Name() string { return "pattern" }

func (s *PatternStage) Classify(ctx context.Context, in *Input) (*domain.Verdict, error) {
	email := in.Email
	p, err := s.repo.Strongest(ctx, email.SenderEmail(), email.SenderDomain())
	if err != nil {
		return nil, fmt.Errorf("failed to load learned pattern: %w", err)
	}
	if p == nil || p.Occurrences < s.minOccurrences {
		return nil, nil
	}

	conf := patternBaseConfidence + patternConfidenceStep*float64(p.Occurrences)
	if conf > patternMaxConfidence {
		conf = patternMaxConfidence
	}

	return &domain.Verdict{
		Classification: p.Classification,
		Confidence:     conf,
		Reasoning:      fmt.Sprintf("%s %s classified as %s in %d previous emails", p.Scope, p.Key, p.Classification, p.Occurrences),
		Source:         domain.SourcePattern,
	}, nil
}
