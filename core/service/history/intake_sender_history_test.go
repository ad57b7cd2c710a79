package history

import (
	"context"
	"testing"

	"intake_server/core/domain"
	"intake_server/core/port/out"
)

type stubHistoryRepo struct {
	sender map[string]*out.HistoryAggregate
	domain map[string]*out.HistoryAggregate
}

func (s *stubHistoryRepo) SenderAggregate(_ context.Context, senderEmail string) (*out.HistoryAggregate, error) {
	return s.sender[senderEmail], nil
}

func (s *stubHistoryRepo) DomainAggregate(_ context.Context, senderDomain string) (*out.HistoryAggregate, error) {
	return s.domain[senderDomain], nil
}

func TestService_Lookup(t *testing.T) {
	repo := &stubHistoryRepo{
		sender: map[string]*out.HistoryAggregate{
			"pat@acme.com":    {EmailCount: 10, RespondedCount: 8, AvgResponseDays: 1.5},
			"lee@acme.com":    {EmailCount: 1, RespondedCount: 1},
			"cold@vendor.com": {EmailCount: 6, RespondedCount: 1, AvgResponseDays: 9},
		},
		domain: map[string]*out.HistoryAggregate{
			"acme.com": {EmailCount: 20, RespondedCount: 13, AvgResponseDays: 2.1},
			"tiny.io":  {EmailCount: 3, RespondedCount: 3},
		},
	}
	svc := NewService(repo, DefaultThresholds())

	tests := []struct {
		name   string
		sender string
		want   *domain.SenderHistory
	}{
		{
			name:   "sender aggregate wins when it has enough emails",
			sender: "pat@acme.com",
			want: &domain.SenderHistory{
				Scope: domain.ScopeSender, Key: "pat@acme.com",
				EmailCount: 10, ResponseRate: 0.8, AvgResponseDays: 1.5,
				Tier: domain.TierHigh,
			},
		},
		{
			name:   "thin sender falls back to domain",
			sender: "lee@acme.com",
			want: &domain.SenderHistory{
				Scope: domain.ScopeDomain, Key: "acme.com",
				EmailCount: 20, ResponseRate: 0.65, AvgResponseDays: 2.1,
				Tier: domain.TierHigh,
			},
		},
		{
			name:   "low response rate sender",
			sender: "cold@vendor.com",
			want: &domain.SenderHistory{
				Scope: domain.ScopeSender, Key: "cold@vendor.com",
				EmailCount: 6, ResponseRate: 1.0 / 6.0, AvgResponseDays: 9,
				Tier: domain.TierLow,
			},
		},
		{
			name:   "domain below its minimum yields nil",
			sender: "new@tiny.io",
			want:   nil,
		},
		{
			name:   "unseen sender and domain yields nil",
			sender: "nobody@nowhere.net",
			want:   nil,
		},
		{
			name:   "empty sender yields nil",
			sender: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Lookup(context.Background(), tt.sender)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("got nil, want %+v", tt.want)
			}
			if *got != *tt.want {
				t.Errorf("snapshot = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}

func TestService_Lookup_TierBoundaries(t *testing.T) {
	// Rates exactly at a threshold stay medium: the comparison is strict.
	repo := &stubHistoryRepo{
		sender: map[string]*out.HistoryAggregate{
			"edge@x.com": {EmailCount: 10, RespondedCount: 7},
			"low@x.com":  {EmailCount: 10, RespondedCount: 2},
		},
		domain: map[string]*out.HistoryAggregate{},
	}
	svc := NewService(repo, DefaultThresholds())

	got, err := svc.Lookup(context.Background(), "edge@x.com")
	if err != nil || got == nil {
		t.Fatalf("lookup failed: %v, %v", got, err)
	}
	if got.Tier != domain.TierMedium {
		t.Errorf("rate 0.7 tier = %s, want medium", got.Tier)
	}

	got, err = svc.Lookup(context.Background(), "low@x.com")
	if err != nil || got == nil {
		t.Fatalf("lookup failed: %v, %v", got, err)
	}
	if got.Tier != domain.TierMedium {
		t.Errorf("rate 0.2 tier = %s, want medium", got.Tier)
	}
}
