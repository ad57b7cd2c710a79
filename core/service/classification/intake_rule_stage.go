package classification

import (
	"context"
	"regexp"
	"strings"

	"intake_server/core/domain"
)

// =============================================================================
// Rule Stage — deterministic cascade, runs before any network call
// =============================================================================

// RuleStage evaluates the fixed-precedence rule tables:
// auto-flag, auto-skip, forwarder special case, internal-domain hard skip,
// marketplace detector, system-domain denylist. First match wins.
type RuleStage struct {
	rules   *domain.RuleSet
	relayRe *regexp.Regexp
}

// NewRuleStage compiles the marketplace relay pattern up front; an invalid
// pattern disables only the relay signal, not the whole detector.
func NewRuleStage(rules *domain.RuleSet) *RuleStage {
	s := &RuleStage{rules: rules}
	if rules.Marketplace != nil && rules.Marketplace.RelayPattern != "" {
		if re, err := regexp.Compile(rules.Marketplace.RelayPattern); err == nil {
			s.relayRe = re
		}
	}
	return s
}

func (s *RuleStage) Name() string { return "rules" }

func (s *RuleStage) Classify(_ context.Context, in *Input) (*domain.Verdict, error) {
	email := in.Email
	sender := email.SenderEmail()
	senderDomain := email.SenderDomain()

	// 1. Auto-flag tables.
	for i := range s.rules.AutoFlag {
		r := &s.rules.AutoFlag[i]
		if !senderMatches(sender, senderDomain, r.Sender, r.Domain) {
			continue
		}
		if !subjectHasAny(email.Subject, r.SubjectKeywords) {
			continue
		}
		conf := r.Confidence
		if conf == 0 {
			conf = 1.0
		}
		return &domain.Verdict{
			Classification: r.Classification,
			Confidence:     conf,
			Reasoning:      r.Reason,
			Source:         domain.RuleSource(r.Name),
		}, nil
	}

	// 2. Auto-skip tables.
	for i := range s.rules.AutoSkip {
		r := &s.rules.AutoSkip[i]
		if r.MatchAll {
			if len(r.SubjectKeywords) == 0 || !subjectHasAny(email.Subject, r.SubjectKeywords) {
				continue
			}
		} else {
			if !senderMatches(sender, senderDomain, r.Sender, r.Domain) {
				continue
			}
			if !subjectHasAny(email.Subject, r.SubjectKeywords) {
				continue
			}
		}
		label := r.Classification
		if label == "" {
			label = domain.LabelSystemNotification
		}
		return &domain.Verdict{
			Classification: label,
			Confidence:     1.0,
			Reasoning:      r.Reason,
			Source:         domain.RuleSource(r.Name),
		}, nil
	}

	// 3. Forwarder special case: designated sender + attachments + PO subject.
	if f := s.rules.Forwarder; f != nil &&
		sender == strings.ToLower(f.Sender) &&
		email.HasAttachments &&
		subjectHasAny(email.Subject, f.SubjectKeywords) {
		return &domain.Verdict{
			Classification: f.Classification,
			Confidence:     1.0,
			Reasoning:      "purchase order forwarded by " + f.Sender,
			Source:         domain.RuleSource("po-forwarder"),
		}, nil
	}

	// 4. Internal-domain hard skip: mark read, no audit record.
	if s.rules.InternalDomain != "" && domain.DomainMatches(senderDomain, s.rules.InternalDomain) {
		return &domain.Verdict{
			Classification: domain.LabelInternal,
			Confidence:     1.0,
			Reasoning:      "internal sender",
			Source:         domain.RuleSource("internal-domain"),
			HardSkip:       true,
		}, nil
	}

	// 5. Marketplace-notification detector.
	if v := s.matchMarketplace(email, sender); v != nil {
		return v, nil
	}

	// 6. System-domain denylist.
	for _, d := range s.rules.SystemDomains {
		if domain.DomainMatches(senderDomain, d) {
			return &domain.Verdict{
				Classification: domain.LabelSystemNotification,
				Confidence:     1.0,
				Reasoning:      "system notification domain " + d,
				Source:         domain.RuleSource("system-domain"),
			}, nil
		}
	}

	return nil, nil
}

// matchMarketplace requires either an address-level signal (relay pattern or
// sender substring) or both a display-name keyword and a content keyword.
func (s *RuleStage) matchMarketplace(email *domain.InboundEmail, sender string) *domain.Verdict {
	m := s.rules.Marketplace
	if m == nil {
		return nil
	}

	matched := false
	reason := ""
	switch {
	case s.relayRe != nil && s.relayRe.MatchString(sender):
		matched, reason = true, "marketplace relay address"
	case containsAny(sender, m.SenderSubstrings):
		matched, reason = true, "marketplace sender address"
	case containsAny(strings.ToLower(email.From.Name), m.DisplayNameKeywords) &&
		(subjectHasAny(email.Subject, m.ContentKeywords) || subjectHasAny(email.BodyPreview, m.ContentKeywords)):
		matched, reason = true, "marketplace display name and content"
	}
	if !matched {
		return nil
	}

	return &domain.Verdict{
		Classification: m.Classification,
		Confidence:     1.0,
		Reasoning:      reason,
		Source:         domain.RuleSource("marketplace"),
	}
}

// senderMatches accepts an exact address or a domain suffix match. A rule
// with neither a sender nor a domain matches nothing.
func senderMatches(sender, senderDomain, ruleSender, ruleDomain string) bool {
	if ruleSender != "" && sender == strings.ToLower(ruleSender) {
		return true
	}
	return ruleDomain != "" && domain.DomainMatches(senderDomain, ruleDomain)
}

// subjectHasAny is a case-insensitive any-of substring test; an empty
// keyword list imposes no constraint.
func subjectHasAny(subject string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	return containsAny(strings.ToLower(subject), keywords)
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
