package server

import (
	"courtyard/internal/models"
	"courtyard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CreatePost creates a marketplace post
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		BuildingID uuid.UUID `json:"building_id"`
		Title      string    `json:"title"`
		Content    string    `json:"content"`
		Price      int64     `json:"price"`
		ImageURL   string    `json:"image_url"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	bid := req.BuildingID
	if bid == uuid.Nil {
		if fromToken := buildingID(c); fromToken != nil {
			bid = *fromToken
		}
	}

	post, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		ResidentID: residentID(c),
		BuildingID: bid,
		Title:      req.Title,
		Content:    req.Content,
		Price:      req.Price,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost returns one post by id (cache-aside)
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// GetPosts pages active posts, newest first
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, size := pageQuery(c)

	out, err := s.postService.ListPosts(ctx, page, size)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(out)
}

// UpdatePost edits a post (only owner)
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Price    *int64 `json:"price"`
		ImageURL string `json:"image_url"`
		Status   string `json:"status"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdatePost(ctx, service.UpdatePostInput{
		ResidentID: residentID(c),
		PostID:     id,
		Title:      req.Title,
		Content:    req.Content,
		Price:      req.Price,
		ImageURL:   req.ImageURL,
		Status:     req.Status,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}
