// Package intake drives one email from the unread list to a terminal
// outcome: flagged for human review, discarded with an audit record, or
// skipped. One orchestrator run sweeps every configured mailbox and writes
// a single stats row.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intake_server/core/domain"
	"intake_server/core/port/in"
	"intake_server/core/port/out"
	"intake_server/core/service/classification"
	"intake_server/core/service/history"
	"intake_server/core/service/signals"
	"intake_server/pkg/logger"
	"intake_server/pkg/metrics"
)

const (
	DefaultPageSize     = 50
	DefaultThreadWindow = 5
)

// Options is the run-shape configuration of the orchestrator.
type Options struct {
	Mailboxes    []string
	PageSize     int
	ThreadWindow int
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Provider     out.MailboxProvider
	RuleStage    *classification.RuleStage
	PatternStage *classification.PatternStage
	AIStage      *classification.AIStage
	History      *history.Service
	Extractor    *signals.EntityExtractor
	Taxonomy     *domain.Taxonomy

	Emails   out.ProcessedEmailRepository
	Feedback out.FeedbackRepository
	Stats    out.StatsRepository
	Patterns out.LearnedPatternRepository
	Archive  out.BodyArchive
	Dispatch out.ResponseDispatcher

	Tracker *metrics.StageTracker
	Log     *logger.Logger
}

type Orchestrator struct {
	d    Deps
	opts Options
}

var _ in.IntakeService = (*Orchestrator)(nil)

func New(d Deps, opts Options) *Orchestrator {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ThreadWindow <= 0 {
		opts.ThreadWindow = DefaultThreadWindow
	}
	if d.Tracker == nil {
		d.Tracker = metrics.NewStageTracker(0)
	}
	if d.Log == nil {
		d.Log = logger.Default()
	}
	return &Orchestrator{d: d, opts: opts}
}

// =============================================================================
// Batch Entry Points
// =============================================================================

// RunAll sweeps every configured mailbox sequentially and persists one
// stats row for the whole run, success or partial failure alike.
func (o *Orchestrator) RunAll(ctx context.Context) (*domain.ProcessingStats, error) {
	start := time.Now()
	runID := uuid.New()
	log := o.d.Log.WithRun(runID.String())
	log.Info("[Orchestrator.RunAll] sweeping %d mailboxes", len(o.opts.Mailboxes))

	total := domain.ProcessingStats{RunID: runID, RunDate: start.UTC()}
	for _, mailbox := range o.opts.Mailboxes {
		st, err := o.sweepMailbox(ctx, log, mailbox)
		total.Add(st)
		if err != nil {
			log.WithMailbox(mailbox).WithError(err).Error("[Orchestrator.RunAll] mailbox sweep failed")
			total.Errors++
		}
	}
	total.DurationMS = time.Since(start).Milliseconds()

	if err := o.d.Stats.Insert(ctx, &total); err != nil {
		log.WithError(err).Error("[Orchestrator.RunAll] failed to persist run stats")
	}

	log.WithDuration(time.Since(start)).Info(
		"[Orchestrator.RunAll] run complete: processed=%d flagged=%d discarded=%d skipped=%d errors=%d",
		total.Processed, total.Flagged, total.Discarded, total.Skipped, total.Errors)
	return &total, nil
}

// ProcessMailbox sweeps one mailbox and returns its counters without
// persisting a stats row.
func (o *Orchestrator) ProcessMailbox(ctx context.Context, mailbox string) (domain.ProcessingStats, error) {
	return o.sweepMailbox(ctx, o.d.Log, mailbox)
}

func (o *Orchestrator) sweepMailbox(ctx context.Context, log *logger.Logger, mailbox string) (domain.ProcessingStats, error) {
	var st domain.ProcessingStats

	emails, err := o.d.Provider.ListUnread(ctx, mailbox, o.opts.PageSize)
	if err != nil {
		return st, fmt.Errorf("failed to list unread messages: %w", err)
	}

	mlog := log.WithMailbox(mailbox)
	mlog.Info("[Orchestrator] %d unread messages", len(emails))

	for i := range emails {
		email := &emails[i]
		// Per-email isolation: one bad email never aborts the batch.
		if err := o.processEmail(ctx, mlog.WithMessage(email.ID), email, &st); err != nil {
			mlog.WithMessage(email.ID).WithError(err).Error("[Orchestrator] email processing failed")
			st.Errors++
		}
	}
	return st, nil
}

// =============================================================================
// Single Email State Machine
// =============================================================================

func (o *Orchestrator) processEmail(ctx context.Context, log *logger.Logger, email *domain.InboundEmail, st *domain.ProcessingStats) error {
	exists, err := o.d.Emails.Exists(ctx, email.ID)
	if err != nil {
		return fmt.Errorf("failed idempotency check: %w", err)
	}
	if exists {
		// Already evaluated in a previous run: terminal no-op.
		log.Debug("[Orchestrator] already processed, skipping")
		st.Skipped++
		return nil
	}

	bundle, err := o.collectSignals(ctx, email)
	if err != nil {
		return err
	}

	verdict := o.classify(ctx, log, &classification.Input{Email: email, Signals: bundle})
	log.Info("[Orchestrator] verdict %s (%.2f) via %s", verdict.Classification, verdict.Confidence, verdict.Source)

	if verdict.HardSkip {
		// Internal traffic: mark read, no audit record.
		if err := o.d.Provider.MarkRead(ctx, email.Mailbox, email.ID); err != nil {
			return fmt.Errorf("failed to mark read: %w", err)
		}
		st.Skipped++
		return nil
	}

	if o.d.Taxonomy.ActionFor(verdict.Classification) == domain.ActionDiscard {
		err = o.discard(ctx, email, verdict, bundle, st)
	} else {
		err = o.flag(ctx, log, email, verdict, bundle, st)
	}
	if err != nil {
		return err
	}

	// Teach the pattern tables only after the outcome is durable, so a
	// failed email retried next run is not counted twice.
	if verdict.Source == domain.SourceAI {
		o.recordPattern(ctx, log, email, verdict)
	}
	return nil
}

func (o *Orchestrator) classify(ctx context.Context, log *logger.Logger, in *classification.Input) *domain.Verdict {
	start := time.Now()
	v, err := o.d.RuleStage.Classify(ctx, in)
	o.d.Tracker.Record("rules", time.Since(start))
	if err != nil {
		log.WithError(err).Warn("[Orchestrator] rule stage failed, continuing")
	}
	if v != nil {
		return v
	}

	start = time.Now()
	v, err = o.d.PatternStage.Classify(ctx, in)
	o.d.Tracker.Record("pattern", time.Since(start))
	if err != nil {
		log.WithError(err).Warn("[Orchestrator] pattern stage failed, continuing")
	}
	if v != nil {
		return v
	}

	// History feeds the AI prompt; a failed lookup just means no annotation.
	h, err := o.d.History.Lookup(ctx, in.Email.SenderEmail())
	if err != nil {
		log.WithError(err).Warn("[Orchestrator] sender history lookup failed")
	}
	in.History = h
	in.Signals.SenderHistory = h

	start = time.Now()
	v, _ = o.d.AIStage.Classify(ctx, in)
	o.d.Tracker.Record("ai", time.Since(start))
	return v
}

func (o *Orchestrator) collectSignals(ctx context.Context, email *domain.InboundEmail) (*domain.SignalBundle, error) {
	text := email.Subject + "\n" + email.BodyPreview
	bundle := &domain.SignalBundle{
		Entities:       o.d.Extractor.Extract(text),
		Urgency:        signals.ScoreUrgency(text),
		Sentiment:      signals.ScoreSentiment(email.BodyPreview),
		HasAttachments: email.HasAttachments,
	}

	if email.ConversationID != "" {
		thread, err := o.d.Provider.ListThread(ctx, email.Mailbox, email.ConversationID, o.opts.ThreadWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to list thread: %w", err)
		}
		bundle.Thread = thread
	}
	return bundle, nil
}

// =============================================================================
// Terminal Actions
// =============================================================================

func (o *Orchestrator) flag(ctx context.Context, log *logger.Logger, email *domain.InboundEmail, verdict *domain.Verdict, bundle *domain.SignalBundle, st *domain.ProcessingStats) error {
	body, err := o.d.Provider.FetchBody(ctx, email.Mailbox, email.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch body: %w", err)
	}
	if err := o.d.Provider.SetFlag(ctx, email.Mailbox, email.ID, verdict.Reasoning); err != nil {
		return fmt.Errorf("failed to set flag: %w", err)
	}

	rec := newRecord(email, verdict, bundle, domain.StatusFlagged)
	rec.Flagged = true
	rec.BodyText = body.Text
	if body.Preview != "" {
		rec.BodyPreview = body.Preview
	}

	inserted, err := o.insertRecord(ctx, rec)
	if err != nil {
		return err
	}
	if !inserted {
		st.Skipped++
		return nil
	}
	st.Processed++
	st.Flagged++

	// Everything below is best-effort enrichment of an already-final outcome.
	if o.d.Archive != nil {
		if err := o.d.Archive.Store(ctx, email.ID, body); err != nil {
			log.WithError(err).Warn("[Orchestrator] body archive write failed")
		}
	}
	if err := o.d.Feedback.Create(ctx, &domain.EmailFeedback{
		MessageID: email.ID,
		FlaggedAt: time.Now().UTC(),
	}); err != nil {
		log.WithError(err).Warn("[Orchestrator] feedback record create failed")
	}
	o.dispatchDraft(ctx, log, email, verdict, bundle, body)
	return nil
}

func (o *Orchestrator) discard(ctx context.Context, email *domain.InboundEmail, verdict *domain.Verdict, bundle *domain.SignalBundle, st *domain.ProcessingStats) error {
	if err := o.d.Provider.MarkRead(ctx, email.Mailbox, email.ID); err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}

	inserted, err := o.insertRecord(ctx, newRecord(email, verdict, bundle, domain.StatusDiscarded))
	if err != nil {
		return err
	}
	if !inserted {
		st.Skipped++
		return nil
	}
	st.Processed++
	st.Discarded++
	return nil
}

func (o *Orchestrator) insertRecord(ctx context.Context, rec *domain.ProcessedEmail) (bool, error) {
	start := time.Now()
	inserted, err := o.d.Emails.Insert(ctx, rec)
	o.d.Tracker.Record("persist", time.Since(start))
	if err != nil {
		return false, fmt.Errorf("failed to persist record: %w", err)
	}
	return inserted, nil
}

// newRecord builds the audit row. Discarded and skipped records keep only
// the preview; the caller overrides the body fields for flagged mail.
func newRecord(email *domain.InboundEmail, verdict *domain.Verdict, bundle *domain.SignalBundle, status domain.ProcessingStatus) *domain.ProcessedEmail {
	return &domain.ProcessedEmail{
		MessageID:         email.ID,
		InternetMessageID: email.InternetMessageID,
		Mailbox:           email.Mailbox,
		Subject:           email.Subject,
		SenderEmail:       email.SenderEmail(),
		Classification:    verdict.Classification,
		Status:            status,
		BodyPreview:       email.BodyPreview,
		AIReasoning:       verdict.Reasoning,
		AIConfidence:      verdict.Confidence,
		VerdictSource:     verdict.Source,
		AIFactors:         bundle,
		ProcessedAt:       time.Now().UTC(),
	}
}

// =============================================================================
// Downstream Hand-offs
// =============================================================================

// recordPattern feeds AI verdicts back into the learned-pattern tables at
// both granularities. Write failures cost only future shortcuts.
func (o *Orchestrator) recordPattern(ctx context.Context, log *logger.Logger, email *domain.InboundEmail, verdict *domain.Verdict) {
	now := time.Now().UTC()
	if err := o.d.Patterns.RecordOccurrence(ctx, domain.ScopeSender, email.SenderEmail(), verdict.Classification, now); err != nil {
		log.WithError(err).Warn("[Orchestrator] sender pattern write failed")
	}
	if d := email.SenderDomain(); d != "" {
		if err := o.d.Patterns.RecordOccurrence(ctx, domain.ScopeDomain, d, verdict.Classification, now); err != nil {
			log.WithError(err).Warn("[Orchestrator] domain pattern write failed")
		}
	}
}

// dispatchDraft hands the flagged email to the response-generation
// workflow. Failures are logged and swallowed: the email's own outcome is
// already persisted.
func (o *Orchestrator) dispatchDraft(ctx context.Context, log *logger.Logger, email *domain.InboundEmail, verdict *domain.Verdict, bundle *domain.SignalBundle, body *domain.EmailBody) {
	if o.d.Dispatch == nil {
		return
	}

	start := time.Now()
	err := o.d.Dispatch.Dispatch(ctx, &out.DraftJob{
		MessageID:      email.ID,
		Mailbox:        email.Mailbox,
		SenderEmail:    email.SenderEmail(),
		Subject:        email.Subject,
		Classification: verdict.Classification,
		BodyText:       body.Text,
		BodyPreview:    email.BodyPreview,
		AIReasoning:    verdict.Reasoning,
		AIConfidence:   verdict.Confidence,
		Context:        bundle,
	})
	o.d.Tracker.Record("webhook", time.Since(start))
	if err != nil {
		log.WithError(err).Warn("[Orchestrator] draft dispatch failed")
	}
}
