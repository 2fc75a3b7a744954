package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"councildigest/internal/council"
	"councildigest/internal/models"
)

// ReportHandler handles content report submission and summaries.
type ReportHandler struct {
	digest *council.DigestService
}

// NewReportHandler creates a new report handler
func NewReportHandler(digest *council.DigestService) *ReportHandler {
	return &ReportHandler{digest: digest}
}

// Submit records a content report for later review.
// POST /api/reports
func (h *ReportHandler) Submit(c *fiber.Ctx) error {
	var req models.SubmitReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.digest.SubmitReport(c.Context(), req); err != nil {
		log.Printf("❌ [REPORTS] Submit failed for %s/%d: %v", req.MeetingCode, req.MotionID, err)
		return serviceError(c, err)
	}

	log.Printf("📝 [REPORTS] Report recorded for %s motion %d (%s)", req.MeetingCode, req.MotionID, req.Reason)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "submitted",
	})
}

// Summary aggregates incorrect-information reports per motion.
// GET /api/reports/summary?meeting_code=...
func (h *ReportHandler) Summary(c *fiber.Ctx) error {
	meetingCode := c.Query("meeting_code")

	resp, err := h.digest.ReportSummary(c.Context(), meetingCode)
	if err != nil {
		log.Printf("❌ [REPORTS] Summary failed: %v", err)
		return serviceError(c, err)
	}
	return c.JSON(resp)
}
