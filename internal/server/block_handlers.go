package server

import (
	"github.com/gofiber/fiber/v2"
)

// BlockResident records a block from the caller against another resident.
// Blocking twice is idempotent and returns the existing pair.
func (s *Server) BlockResident(c *fiber.Ctx) error {
	ctx := c.UserContext()

	blockedID, err := s.parseUUID(c, "residentId")
	if err != nil {
		return nil
	}

	block, err := s.blockService.Block(ctx, residentID(c), blockedID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(block)
}

// UnblockResident removes the caller's block against another resident.
// By default unblocking someone who was never blocked is a no-op so retries
// stay safe; `?strict=true` turns the absent pair into a 404.
func (s *Server) UnblockResident(c *fiber.Ctx) error {
	ctx := c.UserContext()

	blockedID, err := s.parseUUID(c, "residentId")
	if err != nil {
		return nil
	}

	strict := c.QueryBool("strict")
	if err := s.blockService.Unblock(ctx, residentID(c), blockedID, strict); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Block removed"})
}

// GetMyBlocks returns both directions of the caller's block relationships.
func (s *Server) GetMyBlocks(c *fiber.Ctx) error {
	ctx := c.UserContext()

	lists, err := s.blockService.Lists(ctx, residentID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(lists)
}
