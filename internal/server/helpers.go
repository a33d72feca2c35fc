// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"errors"
	"strings"

	"courtyard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseUUID extracts a route parameter by name as a UUID. On failure it writes
// a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "residentId" -> "resident ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(param[:len(param)-2]) + " ID"
	}
	return param
}

// residentID returns the authenticated resident's id from Fiber locals.
func residentID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals("residentID").(uuid.UUID)
	return id
}

// buildingID returns the authenticated resident's building id, when the token
// carried one.
func buildingID(c *fiber.Ctx) *uuid.UUID {
	if id, ok := c.Locals("buildingID").(uuid.UUID); ok {
		return &id
	}
	return nil
}

// pageQuery extracts page/size query parameters; services do the clamping.
func pageQuery(c *fiber.Ctx) (page, size int) {
	return c.QueryInt("page", 1), c.QueryInt("size", 20)
}

// respondServiceError maps a service error onto the HTTP status for its code.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case models.CodeValidation:
			status = fiber.StatusBadRequest
		case models.CodeNotFound:
			status = fiber.StatusNotFound
		case models.CodeUnauthorized:
			status = fiber.StatusForbidden
		case models.CodeRateLimited:
			status = fiber.StatusTooManyRequests
		}
	}
	return models.RespondWithError(c, status, err)
}
