package server

import (
	"courtyard/internal/models"
	"courtyard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateNotification stores an announcement and fans it out (admin only)
func (s *Server) CreateNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req service.CreateNotificationInput
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	n, err := s.notificationService.Create(ctx, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

// CreateResidentNotification is the service-to-service path for
// resident-scoped notifications. A repeated (reference, type, resident)
// triple returns the existing record with 200 instead of creating and
// delivering again.
func (s *Server) CreateResidentNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req service.ResidentNotificationInput
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	n, created, err := s.notificationService.CreateForResident(ctx, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(n)
}

// SendPushOnly is the service-to-service path for ephemeral pushes that
// should not appear in the resident's feed, like delivery-at-the-door pings.
// A unit_id in the payload extends the push to the rest of the household.
func (s *Server) SendPushOnly(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req service.PushOnlyInput
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	delivered, err := s.notificationService.SendPushOnly(ctx, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"delivered": delivered})
}

// GetNotifications lists all active notifications
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()

	out, err := s.notificationService.ListActive(ctx)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(out)
}

// GetMyNotificationFeed pages the caller's notification feed, newest first.
func (s *Server) GetMyNotificationFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, size := pageQuery(c)

	out, total, err := s.notificationService.Feed(ctx, residentID(c), buildingID(c), page, size)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"notifications": out,
		"total":         total,
	})
}

// GetNotification returns one active notification by id
func (s *Server) GetNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	n, err := s.notificationService.GetByID(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(n)
}

// UpdateNotification edits presentation fields without re-delivering (admin only)
func (s *Server) UpdateNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	var req service.UpdateNotificationInput
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	n, err := s.notificationService.Update(ctx, id, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(n)
}

// DeleteNotification soft-deletes a notification (admin only)
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.SoftDelete(ctx, id, residentID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Notification deleted"})
}

// GetFeatureFlags returns configured feature flags and evaluated state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(residentID(c).String()),
	})
}
