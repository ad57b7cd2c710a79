package intake

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"intake_server/core/domain"
	"intake_server/core/port/out"
	"intake_server/core/service/classification"
	"intake_server/core/service/history"
	"intake_server/core/service/signals"
	"intake_server/pkg/logger"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeProvider struct {
	emails  []domain.InboundEmail
	bodies  map[string]*domain.EmailBody
	threads map[string][]domain.ThreadMessage

	listErr  error
	bodyErrs map[string]error

	flagged    []string
	markedRead []string
}

func (p *fakeProvider) ProviderName() string { return "fake" }

func (p *fakeProvider) ListUnread(_ context.Context, _ string, _ int) ([]domain.InboundEmail, error) {
	return p.emails, p.listErr
}

func (p *fakeProvider) FetchBody(_ context.Context, _, messageID string) (*domain.EmailBody, error) {
	if err := p.bodyErrs[messageID]; err != nil {
		return nil, err
	}
	if b, ok := p.bodies[messageID]; ok {
		return b, nil
	}
	return &domain.EmailBody{Text: "full body of " + messageID}, nil
}

func (p *fakeProvider) SetFlag(_ context.Context, _, messageID, _ string) error {
	p.flagged = append(p.flagged, messageID)
	return nil
}

func (p *fakeProvider) MarkRead(_ context.Context, _, messageID string) error {
	p.markedRead = append(p.markedRead, messageID)
	return nil
}

func (p *fakeProvider) ListThread(_ context.Context, _, conversationID string, _ int) ([]domain.ThreadMessage, error) {
	return p.threads[conversationID], nil
}

type fakeEmailRepo struct {
	rows      map[string]*domain.ProcessedEmail
	existsErr map[string]error
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{rows: make(map[string]*domain.ProcessedEmail), existsErr: make(map[string]error)}
}

func (r *fakeEmailRepo) Exists(_ context.Context, messageID string) (bool, error) {
	if err := r.existsErr[messageID]; err != nil {
		return false, err
	}
	_, ok := r.rows[messageID]
	return ok, nil
}

func (r *fakeEmailRepo) Insert(_ context.Context, rec *domain.ProcessedEmail) (bool, error) {
	if _, ok := r.rows[rec.MessageID]; ok {
		return false, nil
	}
	r.rows[rec.MessageID] = rec
	return true, nil
}

func (r *fakeEmailRepo) GetByMessageID(_ context.Context, messageID string) (*domain.ProcessedEmail, error) {
	return r.rows[messageID], nil
}

type fakeFeedbackRepo struct{ created []string }

func (r *fakeFeedbackRepo) Create(_ context.Context, fb *domain.EmailFeedback) error {
	r.created = append(r.created, fb.MessageID)
	return nil
}

func (r *fakeFeedbackRepo) MarkResponded(_ context.Context, _ string, _ time.Time, _ string) error {
	return nil
}

func (r *fakeFeedbackRepo) GetByMessageID(_ context.Context, _ string) (*domain.EmailFeedback, error) {
	return nil, nil
}

type fakeStatsRepo struct{ rows []domain.ProcessingStats }

func (r *fakeStatsRepo) Insert(_ context.Context, st *domain.ProcessingStats) error {
	r.rows = append(r.rows, *st)
	return nil
}

func (r *fakeStatsRepo) ListRecent(_ context.Context, _ int) ([]domain.ProcessingStats, error) {
	return r.rows, nil
}

type patternWrite struct {
	scope domain.HistoryScope
	key   string
	label string
}

type fakePatternRepo struct {
	strongest *domain.LearnedPattern
	writes    []patternWrite
}

func (r *fakePatternRepo) Strongest(_ context.Context, _, _ string) (*domain.LearnedPattern, error) {
	return r.strongest, nil
}

func (r *fakePatternRepo) RecordOccurrence(_ context.Context, scope domain.HistoryScope, key, label string, _ time.Time) error {
	r.writes = append(r.writes, patternWrite{scope: scope, key: key, label: label})
	return nil
}

type fakeHistoryRepo struct{}

func (fakeHistoryRepo) SenderAggregate(_ context.Context, _ string) (*out.HistoryAggregate, error) {
	return nil, nil
}

func (fakeHistoryRepo) DomainAggregate(_ context.Context, _ string) (*out.HistoryAggregate, error) {
	return nil, nil
}

type fakeDispatcher struct {
	jobs []*out.DraftJob
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, job *out.DraftJob) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type fakeCompletion struct {
	response string
	err      error
	calls    int
}

func (c *fakeCompletion) CompleteJSON(_ context.Context, _, _ string) (string, error) {
	c.calls++
	return c.response, c.err
}

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	orch       *Orchestrator
	provider   *fakeProvider
	emails     *fakeEmailRepo
	feedback   *fakeFeedbackRepo
	stats      *fakeStatsRepo
	patterns   *fakePatternRepo
	dispatcher *fakeDispatcher
	ai         *fakeCompletion
}

func newHarness(provider *fakeProvider, ai *fakeCompletion) *harness {
	h := &harness{
		provider:   provider,
		emails:     newFakeEmailRepo(),
		feedback:   &fakeFeedbackRepo{},
		stats:      &fakeStatsRepo{},
		patterns:   &fakePatternRepo{},
		dispatcher: &fakeDispatcher{},
		ai:         ai,
	}

	rules := domain.DefaultRuleSet("chemco.com", "andre@chemco.com")
	taxonomy := domain.DefaultTaxonomy()
	log := logger.New(logger.Config{Level: logger.LevelFatal, Output: io.Discard, Service: "test"})

	h.orch = New(Deps{
		Provider:     provider,
		RuleStage:    classification.NewRuleStage(rules),
		PatternStage: classification.NewPatternStage(h.patterns, 3),
		AIStage: classification.NewAIStage(ai,
			[]string{domain.LabelQuoteRequest, domain.LabelSupportRequest},
			[]string{domain.LabelSystemNotification, domain.LabelSpam}, 0),
		History:   history.NewService(fakeHistoryRepo{}, history.DefaultThresholds()),
		Extractor: signals.NewEntityExtractor(nil, nil),
		Taxonomy:  taxonomy,
		Emails:    h.emails,
		Feedback:  h.feedback,
		Stats:     h.stats,
		Patterns:  h.patterns,
		Dispatch:  h.dispatcher,
		Log:       log,
	}, Options{Mailboxes: []string{"sales@chemco.com"}})
	return h
}

func inbound(id, sender, subject, preview string, attachments bool) domain.InboundEmail {
	return domain.InboundEmail{
		ID:             id,
		Mailbox:        "sales@chemco.com",
		Subject:        subject,
		From:           domain.EmailAddress{Email: sender},
		BodyPreview:    preview,
		HasAttachments: attachments,
		ReceivedAt:     time.Now(),
	}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestRunAll_IdempotentReentry(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "sales-alerts@shipstation.com", "Shipment tracking update #123", "", false),
	}}
	h := newHarness(provider, &fakeCompletion{})
	h.emails.rows["m1"] = &domain.ProcessedEmail{MessageID: "m1"}

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Skipped != 1 || st.Processed != 0 || st.Errors != 0 {
		t.Errorf("stats = %+v, want 1 skipped only", st)
	}
	if len(provider.markedRead) != 0 || len(provider.flagged) != 0 {
		t.Error("reprocessing caused provider side effects")
	}
	if len(h.dispatcher.jobs) != 0 {
		t.Error("reprocessing dispatched a draft job")
	}
	if len(h.emails.rows) != 1 {
		t.Errorf("row count = %d, want the original row only", len(h.emails.rows))
	}
}

func TestRunAll_ShipStationDiscard(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "sales-alerts@shipstation.com", "Shipment tracking update #123", "Your label was created", false),
	}}
	ai := &fakeCompletion{}
	h := newHarness(provider, ai)

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Discarded != 1 || st.Flagged != 0 {
		t.Errorf("stats = %+v, want 1 discarded", st)
	}
	if len(provider.markedRead) != 1 || provider.markedRead[0] != "m1" {
		t.Errorf("markedRead = %v, want [m1]", provider.markedRead)
	}
	if len(provider.flagged) != 0 {
		t.Error("discarded email was flagged")
	}
	if len(h.dispatcher.jobs) != 0 {
		t.Error("discarded email dispatched a draft job")
	}
	if ai.calls != 0 {
		t.Error("rule-matched email reached the AI stage")
	}

	rec := h.emails.rows["m1"]
	if rec == nil {
		t.Fatal("no audit record written")
	}
	if rec.Classification != domain.LabelSystemNotification || rec.Status != domain.StatusDiscarded {
		t.Errorf("record = %s/%s, want SYSTEM_NOTIFICATION/discarded", rec.Classification, rec.Status)
	}
}

func TestRunAll_PurchaseOrderForward(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "andre@chemco.com", "PO for October order", "see attached", true),
	}}
	h := newHarness(provider, &fakeCompletion{})

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Flagged != 1 {
		t.Errorf("stats = %+v, want 1 flagged", st)
	}
	if len(provider.flagged) != 1 {
		t.Errorf("flagged = %v, want [m1]", provider.flagged)
	}

	rec := h.emails.rows["m1"]
	if rec == nil {
		t.Fatal("no audit record written")
	}
	if rec.Classification != domain.LabelPOForward || rec.AIConfidence != 1.0 {
		t.Errorf("record = %s conf %v, want PURCHASE_ORDER_FORWARD at 1.0", rec.Classification, rec.AIConfidence)
	}
	if rec.BodyText == "" {
		t.Error("flagged record missing full body")
	}
}

func TestRunAll_InternalHardSkip(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "sam@chemco.com", "lunch?", "burgers?", false),
	}}
	h := newHarness(provider, &fakeCompletion{})

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Skipped != 1 || st.Processed != 0 {
		t.Errorf("stats = %+v, want 1 skipped", st)
	}
	if len(provider.markedRead) != 1 {
		t.Errorf("markedRead = %v, want [m1]", provider.markedRead)
	}
	if len(h.emails.rows) != 0 {
		t.Error("internal email must not leave an audit record")
	}
}

func TestRunAll_UrgentQuoteViaAI(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "buyer@newcustomer.com", "URGENT - need quote for 5 drums of acetone ASAP",
			"Please send pricing for 5 drums of acetone.", false),
	}}
	ai := &fakeCompletion{response: `{"classification": "QUOTE_REQUEST", "confidence": 0.9, "reasoning": "asks for pricing"}`}
	h := newHarness(provider, ai)

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Flagged != 1 {
		t.Fatalf("stats = %+v, want 1 flagged", st)
	}

	rec := h.emails.rows["m1"]
	if rec == nil {
		t.Fatal("no audit record written")
	}
	if rec.Classification != domain.LabelQuoteRequest || rec.VerdictSource != domain.SourceAI {
		t.Errorf("record = %s via %s, want QUOTE_REQUEST via ai", rec.Classification, rec.VerdictSource)
	}
	if rec.AIFactors == nil {
		t.Fatal("record missing signal bundle")
	}
	if !rec.AIFactors.Urgency.IsUrgent {
		t.Error("urgency signal not set for URGENT/ASAP subject")
	}
	if len(rec.AIFactors.Entities.Products) == 0 || rec.AIFactors.Entities.Products[0] != "acetone" {
		t.Errorf("products = %v, want acetone detected", rec.AIFactors.Entities.Products)
	}
	if len(rec.AIFactors.Entities.Quantities) == 0 {
		t.Error("no quantity detected for '5 drums'")
	}

	// AI verdicts teach the pattern tables at both granularities.
	if len(h.patterns.writes) != 2 {
		t.Fatalf("pattern writes = %v, want sender+domain", h.patterns.writes)
	}
	if h.patterns.writes[0].scope != domain.ScopeSender || h.patterns.writes[1].scope != domain.ScopeDomain {
		t.Errorf("pattern write scopes = %+v", h.patterns.writes)
	}

	// Flagged mail starts the draft workflow.
	if len(h.feedback.created) != 1 {
		t.Error("feedback record not created")
	}
	if len(h.dispatcher.jobs) != 1 {
		t.Fatal("draft job not dispatched")
	}
	job := h.dispatcher.jobs[0]
	if job.Classification != domain.LabelQuoteRequest || job.BodyText == "" || job.Context == nil {
		t.Errorf("draft job incomplete: %+v", job)
	}
}

func TestRunAll_AIFailureFailsOpen(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "buyer@newcustomer.com", "hello", "question about my order", false),
	}}
	h := newHarness(provider, &fakeCompletion{err: errors.New("model timeout")})

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Flagged != 1 || st.Discarded != 0 || st.Errors != 0 {
		t.Errorf("stats = %+v, want flagged via fallback, never discarded", st)
	}

	rec := h.emails.rows["m1"]
	if rec == nil {
		t.Fatal("no audit record written")
	}
	if rec.Classification != domain.LabelSupportRequest || rec.AIConfidence != 0.5 {
		t.Errorf("record = %s conf %v, want fallback CUSTOMER_SUPPORT_REQUEST at 0.5", rec.Classification, rec.AIConfidence)
	}
	if rec.VerdictSource != domain.SourceFallback {
		t.Errorf("source = %s, want fallback", rec.VerdictSource)
	}
	// Fallback verdicts must not poison the learned patterns.
	if len(h.patterns.writes) != 0 {
		t.Errorf("pattern writes = %v, want none for fallback", h.patterns.writes)
	}
}

func TestRunAll_UnknownLabelIsFlagged(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "buyer@newcustomer.com", "hello", "hi there", false),
	}}
	ai := &fakeCompletion{response: `{"classification": "SOMETHING_NEW", "confidence": 0.8, "reasoning": "x"}`}
	h := newHarness(provider, ai)

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Flagged != 1 || st.Discarded != 0 {
		t.Errorf("stats = %+v, want unknown label flagged", st)
	}
	if len(provider.flagged) != 1 {
		t.Error("unknown-label email was not flagged at the provider")
	}
}

func TestRunAll_BatchIsolation(t *testing.T) {
	emails := make([]domain.InboundEmail, 0, 5)
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		emails = append(emails, inbound(id, "buyer@newcustomer.com", "need help with "+id, "details", false))
	}
	provider := &fakeProvider{
		emails:   emails,
		bodyErrs: map[string]error{"m3": errors.New("transient provider fault")},
	}
	ai := &fakeCompletion{response: `{"classification": "CUSTOMER_SUPPORT_REQUEST", "confidence": 0.7, "reasoning": "x"}`}
	h := newHarness(provider, ai)

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Errors != 1 {
		t.Errorf("errors = %d, want 1", st.Errors)
	}
	if st.Flagged != 4 || st.Processed != 4 {
		t.Errorf("stats = %+v, want 4 flagged despite m3 failing", st)
	}
	for _, id := range []string{"m1", "m2", "m4", "m5"} {
		if h.emails.rows[id] == nil {
			t.Errorf("record for %s missing", id)
		}
	}
	if h.emails.rows["m3"] != nil {
		t.Error("failed email must stay unprocessed for the next run")
	}
}

func TestRunAll_WebhookFailureSwallowed(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "buyer@newcustomer.com", "need a coa", "please send docs", false),
	}}
	ai := &fakeCompletion{response: `{"classification": "CUSTOMER_SUPPORT_REQUEST", "confidence": 0.7, "reasoning": "x"}`}
	h := newHarness(provider, ai)
	h.dispatcher.err = errors.New("webhook down")

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Errors != 0 || st.Flagged != 1 {
		t.Errorf("stats = %+v, want webhook failure invisible in counters", st)
	}
	if h.emails.rows["m1"] == nil {
		t.Error("record missing despite webhook failure")
	}
}

func TestRunAll_LearnedPatternShortCircuitsAI(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "pat@acme.com", "another price check", "what is the price of xylene", false),
	}}
	ai := &fakeCompletion{response: `{"classification": "SPAM", "confidence": 0.9, "reasoning": "x"}`}
	h := newHarness(provider, ai)
	h.patterns.strongest = &domain.LearnedPattern{
		Scope: domain.ScopeSender, Key: "pat@acme.com",
		Classification: domain.LabelQuoteRequest, Occurrences: 5,
	}

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ai.calls != 0 {
		t.Error("pattern match must bypass the AI call")
	}
	if st.Flagged != 1 {
		t.Errorf("stats = %+v, want 1 flagged", st)
	}
	rec := h.emails.rows["m1"]
	if rec == nil || rec.VerdictSource != domain.SourcePattern {
		t.Fatalf("record = %+v, want pattern-sourced verdict", rec)
	}
	if rec.AIConfidence != 0.95 {
		t.Errorf("confidence = %v, want 0.70+5*0.05 = 0.95", rec.AIConfidence)
	}

	// Pattern-sourced verdicts must not re-record occurrences.
	if len(h.patterns.writes) != 0 {
		t.Errorf("pattern writes = %v, want none", h.patterns.writes)
	}
}

func TestRunAll_PersistsOneStatsRow(t *testing.T) {
	provider := &fakeProvider{emails: []domain.InboundEmail{
		inbound("m1", "sales-alerts@shipstation.com", "Shipment tracking update", "", false),
		inbound("m2", "sam@chemco.com", "internal", "", false),
	}}
	h := newHarness(provider, &fakeCompletion{})

	st, err := h.orch.RunAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.stats.rows) != 1 {
		t.Fatalf("stats rows = %d, want exactly 1 per run", len(h.stats.rows))
	}
	row := h.stats.rows[0]
	if row.RunID != st.RunID {
		t.Error("persisted stats row has a different run id")
	}
	if row.Discarded != 1 || row.Skipped != 1 {
		t.Errorf("row = %+v, want 1 discarded + 1 skipped", row)
	}
}
