package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"councildigest/internal/council"
)

// serviceError maps a DigestService error onto a stable status code
// with the underlying message attached. Extraction failures surface
// verbatim so the client can offer a retry.
func serviceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, council.ErrMeetingNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, council.ErrSourceUnavailable):
		status = fiber.StatusNotFound
	case errors.Is(err, council.ErrLiveScrapeDisabled):
		status = fiber.StatusForbidden
	case errors.Is(err, council.ErrInvalidReport):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
