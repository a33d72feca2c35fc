package server

import (
	"courtyard/internal/models"
	"courtyard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RegisterDeviceToken stores or refreshes the caller's push token.
func (s *Server) RegisterDeviceToken(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		UserID     uuid.UUID `json:"user_id"`
		Token      string    `json:"token"`
		Platform   string    `json:"platform"`
		AppVersion string    `json:"app_version"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	role, _ := c.Locals("role").(string)
	token, err := s.deviceTokenService.Register(ctx, service.RegisterTokenInput{
		ResidentID: residentID(c),
		UserID:     req.UserID,
		BuildingID: buildingID(c),
		Role:       role,
		Token:      req.Token,
		Platform:   req.Platform,
		AppVersion: req.AppVersion,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(token)
}

// UnregisterDeviceToken removes the caller's push token (logout flow).
func (s *Server) UnregisterDeviceToken(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		Token string `json:"token"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	if err := s.deviceTokenService.Unregister(ctx, residentID(c), req.Token); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Device token removed"})
}
