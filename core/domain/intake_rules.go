package domain

// =============================================================================
// Deterministic Rule Tables
// =============================================================================
//
// The tables are built once at process start and never mutated afterwards;
// the rule engine only reads them. Sender matching accepts either an exact
// address or a domain suffix; subject keywords are case-insensitive
// substrings and any one of them satisfies the rule.

// AutoFlagRule routes mail from a known sender straight to human review.
type AutoFlagRule struct {
	Name            string   `json:"name"`
	Sender          string   `json:"sender,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	SubjectKeywords []string `json:"subject_keywords,omitempty"`
	Classification  string   `json:"classification"`
	Confidence      float64  `json:"confidence,omitempty"` // 0 means 1.0
	Reason          string   `json:"reason"`
}

// AutoSkipRule discards known noise with an audit record. MatchAll rules
// ignore the sender entirely and match on subject keywords alone (used for
// out-of-office and auto-reply detection).
type AutoSkipRule struct {
	Name            string   `json:"name"`
	Sender          string   `json:"sender,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	SubjectKeywords []string `json:"subject_keywords,omitempty"`
	MatchAll        bool     `json:"match_all,omitempty"`
	Classification  string   `json:"classification,omitempty"` // default SYSTEM_NOTIFICATION
	Reason          string   `json:"reason"`
}

// ForwarderRule is the known-sender purchase-order special case: the
// designated forwarder plus attachments plus a PO keyword in the subject.
type ForwarderRule struct {
	Sender          string   `json:"sender"`
	SubjectKeywords []string `json:"subject_keywords"`
	Classification  string   `json:"classification"`
}

// MarketplaceRule is the multi-signal marketplace-notification detector.
type MarketplaceRule struct {
	Classification      string   `json:"classification"`
	SenderSubstrings    []string `json:"sender_substrings"`
	DisplayNameKeywords []string `json:"display_name_keywords"`
	RelayPattern        string   `json:"relay_pattern"` // regex on the relay address
	ContentKeywords     []string `json:"content_keywords"`
}

// RuleSet is the complete deterministic rule configuration consumed by the
// rule engine, in evaluation order: auto-flag, auto-skip, forwarder,
// internal domain, marketplace, system-domain denylist.
type RuleSet struct {
	AutoFlag       []AutoFlagRule   `json:"auto_flag"`
	AutoSkip       []AutoSkipRule   `json:"auto_skip"`
	Forwarder      *ForwarderRule   `json:"forwarder,omitempty"`
	InternalDomain string           `json:"internal_domain"`
	Marketplace    *MarketplaceRule `json:"marketplace,omitempty"`
	SystemDomains  []string         `json:"system_domains"`
}

// DefaultRuleSet returns the built-in tables for the distribution business.
// Deployments override them with a JSON rules file.
func DefaultRuleSet(internalDomain, forwarderSender string) *RuleSet {
	rs := &RuleSet{
		AutoFlag: []AutoFlagRule{
			{
				Name:           "key-account-direct",
				Domain:         "grainger.com",
				Classification: LabelOrderInquiry,
				Reason:         "key account, always reviewed by a human",
			},
		},
		AutoSkip: []AutoSkipRule{
			{
				Name:            "shipstation-tracking",
				Domain:          "shipstation.com",
				SubjectKeywords: []string{"shipment", "tracking", "label created"},
				Reason:          "carrier tracking notification",
			},
			{
				Name:            "quickbooks-receipts",
				Domain:          "intuit.com",
				Reason:          "accounting system notification",
			},
			{
				Name:            "auto-reply",
				MatchAll:        true,
				SubjectKeywords: []string{"out of office", "automatic reply", "autoreply", "auto-reply", "away from the office"},
				Classification:  LabelAutoReply,
				Reason:          "automatic reply",
			},
		},
		InternalDomain: internalDomain,
		Marketplace: &MarketplaceRule{
			Classification:      LabelAmazonNotification,
			SenderSubstrings:    []string{"amazon.com", "amazonses.com", "marketplace"},
			DisplayNameKeywords: []string{"amazon", "marketplace"},
			RelayPattern:        `(?i)[a-z0-9._%+-]+@marketplace\.amazon\.(com|ca|com\.mx)`,
			ContentKeywords:     []string{"order id", "buyer message", "a-to-z guarantee", "seller central"},
		},
		SystemDomains: []string{
			"shipstation.com",
			"ups.com",
			"fedex.com",
			"freightquote.com",
			"stripe.com",
			"paypal.com",
			"shopify.com",
			"mailchimp.com",
			"constantcontact.com",
			"docusign.net",
		},
	}

	if forwarderSender != "" {
		rs.Forwarder = &ForwarderRule{
			Sender:          forwarderSender,
			SubjectKeywords: []string{"po", "purchase order"},
			Classification:  LabelPOForward,
		}
	}

	return rs
}
