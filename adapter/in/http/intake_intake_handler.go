package http

import (
	"sync/atomic"
	"time"

	"intake_server/core/port/in"
	"intake_server/core/port/out"
	"intake_server/pkg/logger"
	"intake_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// IntakeHandler exposes the sweep trigger, run statistics, stage latencies
// and the human-response feedback endpoint.
type IntakeHandler struct {
	service  in.IntakeService
	stats    out.StatsRepository
	feedback out.FeedbackRepository
	emails   out.ProcessedEmailRepository
	archive  out.BodyArchive
	tracker  *metrics.StageTracker

	// running guards against overlapping sweeps triggered over HTTP while
	// a scheduled run is still going.
	running atomic.Bool
}

// NewIntakeHandler creates a new IntakeHandler.
func NewIntakeHandler(
	service in.IntakeService,
	stats out.StatsRepository,
	feedback out.FeedbackRepository,
	emails out.ProcessedEmailRepository,
	archive out.BodyArchive,
	tracker *metrics.StageTracker,
) *IntakeHandler {
	return &IntakeHandler{
		service:  service,
		stats:    stats,
		feedback: feedback,
		emails:   emails,
		archive:  archive,
		tracker:  tracker,
	}
}

// Register registers intake routes.
func (h *IntakeHandler) Register(app fiber.Router) {
	grp := app.Group("/intake")
	grp.Post("/run", h.Run)
	grp.Get("/runs/recent", h.RecentRuns)
	grp.Get("/stages", h.StageLatencies)
	grp.Get("/emails/:messageId", h.GetEmail)
	grp.Post("/feedback/:messageId", h.MarkResponded)
}

// Run triggers a full sweep of all configured mailboxes and returns the
// aggregated counters. At most one sweep runs at a time.
// POST /intake/run
func (h *IntakeHandler) Run(c *fiber.Ctx) error {
	if !h.running.CompareAndSwap(false, true) {
		return ErrorResponse(c, 409, "a sweep is already running")
	}
	defer h.running.Store(false)

	stats, err := h.service.RunAll(c.Context())
	if err != nil {
		return InternalErrorResponse(c, err, "run sweep")
	}
	return SuccessResponse(c, stats)
}

// RecentRuns returns per-run counter rows for the last N days.
// GET /intake/runs/recent?days=7
func (h *IntakeHandler) RecentRuns(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days <= 0 || days > 90 {
		days = 7
	}

	rows, err := h.stats.ListRecent(c.Context(), days)
	if err != nil {
		return InternalErrorResponse(c, err, "list recent runs")
	}
	return SuccessResponse(c, fiber.Map{
		"runs":  rows,
		"total": len(rows),
	})
}

// StageLatencies returns rolling latency statistics per pipeline stage.
// GET /intake/stages
func (h *IntakeHandler) StageLatencies(c *fiber.Ctx) error {
	return SuccessResponse(c, fiber.Map{
		"stages": h.tracker.Stats(),
	})
}

// GetEmail returns the audit record for one message, optionally with the
// archived full body.
// GET /intake/emails/:messageId?include_body=true
func (h *IntakeHandler) GetEmail(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	if messageID == "" {
		return ErrorResponse(c, 400, "message id required")
	}

	rec, err := h.emails.GetByMessageID(c.Context(), messageID)
	if err != nil {
		return InternalErrorResponse(c, err, "get email record")
	}
	if rec == nil {
		return ErrorResponse(c, 404, "email record not found")
	}

	resp := fiber.Map{"email": rec}
	if c.QueryBool("include_body", false) && h.archive != nil {
		body, err := h.archive.Get(c.Context(), messageID)
		if err != nil {
			logger.WithError(err).WithField("message_id", messageID).Warn("failed to read archived body")
		} else if body != nil {
			resp["body"] = body
		}
	}
	return SuccessResponse(c, resp)
}

// markRespondedRequest is the feedback update payload.
type markRespondedRequest struct {
	Category    string     `json:"category"`
	RespondedAt *time.Time `json:"responded_at"`
}

// MarkResponded records that a human replied to a flagged email. Applied at
// most once per message; later calls fail.
// POST /intake/feedback/:messageId
func (h *IntakeHandler) MarkResponded(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	if messageID == "" {
		return ErrorResponse(c, 400, "message id required")
	}

	var req markRespondedRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	respondedAt := time.Now().UTC()
	if req.RespondedAt != nil {
		respondedAt = req.RespondedAt.UTC()
	}

	if err := h.feedback.MarkResponded(c.Context(), messageID, respondedAt, req.Category); err != nil {
		fb, lookupErr := h.feedback.GetByMessageID(c.Context(), messageID)
		if lookupErr == nil && fb == nil {
			return ErrorResponse(c, 404, "no feedback record for message")
		}
		if lookupErr == nil && fb.Responded {
			return ErrorResponse(c, 409, "response already recorded")
		}
		return InternalErrorResponse(c, err, "mark responded")
	}
	return SuccessResponse(c, fiber.Map{
		"message_id":   messageID,
		"responded_at": respondedAt.Format(time.RFC3339),
	})
}
