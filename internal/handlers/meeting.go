package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"councildigest/internal/council"
)

// MeetingHandler handles meeting listing, detail and the gated
// administrative operations.
type MeetingHandler struct {
	digest *council.DigestService
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(digest *council.DigestService) *MeetingHandler {
	return &MeetingHandler{digest: digest}
}

// List returns all known meetings with cache metadata.
// GET /api/meetings
func (h *MeetingHandler) List(c *fiber.Ctx) error {
	overviews, err := h.digest.ListMeetings(c.Context())
	if err != nil {
		log.Printf("❌ [MEETINGS] Failed to list meetings: %v", err)
		return serviceError(c, err)
	}
	return c.JSON(overviews)
}

// Get returns the detail for one meeting, building the cache entry on
// first access. This is the only endpoint that may block for the
// duration of an extraction.
// GET /api/meetings/:code
func (h *MeetingHandler) Get(c *fiber.Ctx) error {
	meetingCode := c.Params("code")
	if meetingCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Meeting code is required",
		})
	}

	detail, err := h.digest.GetMeetingDetail(c.Context(), meetingCode)
	if err != nil {
		log.Printf("❌ [MEETINGS] Detail failed for %s: %v", meetingCode, err)
		return serviceError(c, err)
	}
	return c.JSON(detail)
}

// Refresh re-runs the council site scrape. Disabled unless
// ALLOW_LIVE_SCRAPE is set.
// POST /api/refresh
func (h *MeetingHandler) Refresh(c *fiber.Ctx) error {
	log.Printf("🔄 [MEETINGS] Refresh requested")
	resp, err := h.digest.RefreshIndex(c.Context())
	if err != nil {
		log.Printf("❌ [MEETINGS] Refresh failed: %v", err)
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// Prewarm builds cache entries for every uncached meeting.
// POST /api/prewarm
func (h *MeetingHandler) Prewarm(c *fiber.Ctx) error {
	log.Printf("🔥 [MEETINGS] Prewarm requested")
	resp, err := h.digest.PrewarmAll(c.Context())
	if err != nil {
		log.Printf("❌ [MEETINGS] Prewarm failed: %v", err)
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// Stats aggregates decision statistics across cached meetings.
// GET /api/stats
func (h *MeetingHandler) Stats(c *fiber.Ctx) error {
	resp, err := h.digest.Stats(c.Context())
	if err != nil {
		log.Printf("❌ [MEETINGS] Stats failed: %v", err)
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// DebugCodes lists the currently derivable meeting codes, for
// debugging "Meeting not found" mismatches between list and detail.
// GET /api/debug/meeting-codes
func (h *MeetingHandler) DebugCodes(c *fiber.Ctx) error {
	source, codes := h.digest.MeetingCodes(c.Context())
	return c.JSON(fiber.Map{
		"source":        source,
		"count":         len(codes),
		"meeting_codes": codes,
	})
}
