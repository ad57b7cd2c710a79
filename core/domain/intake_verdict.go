package domain

// =============================================================================
// Classification Verdict
// =============================================================================

// Verdict is the transient result of one classification stage.
// Source identifies which stage produced it: "rule:<name>", "pattern", "ai",
// or "fallback". HardSkip marks internal traffic: mark read, count as
// skipped, no audit record written.
type Verdict struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	Source         string  `json:"source"`
	HardSkip       bool    `json:"-"`
}

// Verdict source tags.
const (
	SourcePattern  = "pattern"
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// RuleSource builds the source tag for a matched rule.
func RuleSource(name string) string {
	return "rule:" + name
}

// Classification labels routed to human review (flag set defaults).
const (
	LabelQuoteRequest    = "QUOTE_REQUEST"
	LabelOrderInquiry    = "ORDER_INQUIRY"
	LabelSupportRequest  = "CUSTOMER_SUPPORT_REQUEST"
	LabelPOForward       = "PURCHASE_ORDER_FORWARD"
	LabelDocumentRequest = "DOCUMENT_REQUEST"
	LabelComplaint       = "COMPLAINT"
	LabelPaymentInquiry  = "PAYMENT_INQUIRY"
)

// Classification labels discarded as noise (skip set defaults).
const (
	LabelSystemNotification = "SYSTEM_NOTIFICATION"
	LabelAmazonNotification = "AMAZON_NOTIFICATION"
	LabelInternal           = "INTERNAL"
	LabelMarketingEmail     = "MARKETING_EMAIL"
	LabelAutoReply          = "AUTO_REPLY"
	LabelSpam               = "SPAM"
)

// Action is what the orchestrator does with a classified email.
type Action int

const (
	ActionFlag    Action = iota // provider flag + human review queue
	ActionDiscard               // mark read, audit record only
)

func (a Action) String() string {
	if a == ActionDiscard {
		return "discard"
	}
	return "flag"
}

// Taxonomy maps classification labels to actions. Labels absent from both
// sets are flagged: an unknown label must surface to a human, never vanish.
type Taxonomy struct {
	flagSet map[string]struct{}
	skipSet map[string]struct{}
}

// NewTaxonomy builds an immutable taxonomy from the configured label sets.
func NewTaxonomy(flagLabels, skipLabels []string) *Taxonomy {
	t := &Taxonomy{
		flagSet: make(map[string]struct{}, len(flagLabels)),
		skipSet: make(map[string]struct{}, len(skipLabels)),
	}
	for _, l := range flagLabels {
		t.flagSet[l] = struct{}{}
	}
	for _, l := range skipLabels {
		t.skipSet[l] = struct{}{}
	}
	return t
}

// DefaultFlagLabels is the built-in flag set.
var DefaultFlagLabels = []string{
	LabelQuoteRequest,
	LabelOrderInquiry,
	LabelSupportRequest,
	LabelPOForward,
	LabelDocumentRequest,
	LabelComplaint,
	LabelPaymentInquiry,
}

// DefaultSkipLabels is the built-in skip set.
var DefaultSkipLabels = []string{
	LabelSystemNotification,
	LabelAmazonNotification,
	LabelMarketingEmail,
	LabelAutoReply,
	LabelSpam,
}

// DefaultTaxonomy returns the built-in label-to-action mapping.
func DefaultTaxonomy() *Taxonomy {
	return NewTaxonomy(DefaultFlagLabels, DefaultSkipLabels)
}

// ActionFor resolves a classification label to an action.
func (t *Taxonomy) ActionFor(label string) Action {
	if _, ok := t.skipSet[label]; ok {
		return ActionDiscard
	}
	// Flag-set membership and unknown labels both land here.
	return ActionFlag
}

// IsKnown reports whether the label appears in either configured set.
func (t *Taxonomy) IsKnown(label string) bool {
	if _, ok := t.flagSet[label]; ok {
		return true
	}
	_, ok := t.skipSet[label]
	return ok
}
