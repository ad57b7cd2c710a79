// Package history derives priority-tier snapshots from past response
// behavior, at sender granularity with a domain-level fallback.
package history

import (
	"context"
	"fmt"

	"intake_server/core/domain"
	"intake_server/core/port/out"
)

// Thresholds control when an aggregate is statistically meaningful and
// where the priority tiers sit. Domain aggregates pool unrelated people,
// so they need more observations and a stricter high bar.
type Thresholds struct {
	SenderMinEmails int
	DomainMinEmails int
	SenderHighRate  float64
	SenderLowRate   float64
	DomainHighRate  float64
	DomainLowRate   float64
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SenderMinEmails: 2,
		DomainMinEmails: 5,
		SenderHighRate:  0.7,
		SenderLowRate:   0.2,
		DomainHighRate:  0.6,
		DomainLowRate:   0.3,
	}
}

// Service answers "how has this sender behaved before". A nil snapshot
// means absence of signal, not zero confidence.
type Service struct {
	repo       out.SenderHistoryRepository
	thresholds Thresholds
}

func NewService(repo out.SenderHistoryRepository, thresholds Thresholds) *Service {
	return &Service{repo: repo, thresholds: thresholds}
}

// Lookup returns the sender-level snapshot when the sender has enough
// observations, otherwise the domain-level snapshot when the domain does,
// otherwise nil.
func (s *Service) Lookup(ctx context.Context, senderEmail string) (*domain.SenderHistory, error) {
	if senderEmail == "" {
		return nil, nil
	}

	agg, err := s.repo.SenderAggregate(ctx, senderEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load sender aggregate: %w", err)
	}
	if agg != nil && agg.EmailCount >= s.thresholds.SenderMinEmails {
		return s.snapshot(domain.ScopeSender, senderEmail, agg,
			s.thresholds.SenderHighRate, s.thresholds.SenderLowRate), nil
	}

	senderDomain := domain.DomainOf(senderEmail)
	if senderDomain == "" {
		return nil, nil
	}

	agg, err = s.repo.DomainAggregate(ctx, senderDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain aggregate: %w", err)
	}
	if agg != nil && agg.EmailCount >= s.thresholds.DomainMinEmails {
		return s.snapshot(domain.ScopeDomain, senderDomain, agg,
			s.thresholds.DomainHighRate, s.thresholds.DomainLowRate), nil
	}

	return nil, nil
}

func (s *Service) snapshot(scope domain.HistoryScope, key string, agg *out.HistoryAggregate, highRate, lowRate float64) *domain.SenderHistory {
	rate := 0.0
	if agg.EmailCount > 0 {
		rate = float64(agg.RespondedCount) / float64(agg.EmailCount)
	}

	tier := domain.TierMedium
	switch {
	case rate > highRate:
		tier = domain.TierHigh
	case rate < lowRate:
		tier = domain.TierLow
	}

	return &domain.SenderHistory{
		Scope:           scope,
		Key:             key,
		EmailCount:      agg.EmailCount,
		ResponseRate:    rate,
		AvgResponseDays: agg.AvgResponseDays,
		Tier:            tier,
	}
}
