package server

import (
	"courtyard/internal/models"
	"courtyard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetComments returns the post's comment tree as the caller sees it: deleted
// comments are gone, blocked roots take their subtree with them, and blocked
// replies are spliced out with their children promoted.
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()

	postID, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}
	page, size := pageQuery(c)

	tree, err := s.commentService.VisibleTree(ctx, service.VisibleTreeInput{
		PostID:   postID,
		ViewerID: residentID(c),
		Page:     page,
		Size:     size,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tree)
}

// CreateComment creates a comment or reply on a post
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	postID, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		ParentID *uuid.UUID `json:"parent_id"`
		Content  string     `json:"content"`
		ImageURL string     `json:"image_url"`
		VideoURL string     `json:"video_url"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	created, err := s.commentService.AddComment(ctx, service.AddCommentInput{
		ResidentID: residentID(c),
		PostID:     postID,
		ParentID:   req.ParentID,
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		VideoURL:   req.VideoURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateComment updates a comment (only owner)
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	commentID, err := s.parseUUID(c, "commentId")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
		VideoURL string `json:"video_url"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	updated, err := s.commentService.UpdateComment(ctx, service.UpdateCommentInput{
		ResidentID: residentID(c),
		CommentID:  commentID,
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		VideoURL:   req.VideoURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(updated)
}

// DeleteComment soft-deletes a comment. Roots cascade over their subtree;
// replies hand their children up to the grandparent. The response carries how
// many comments left the visible count.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	commentID, err := s.parseUUID(c, "commentId")
	if err != nil {
		return nil
	}

	removed, err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		ResidentID: residentID(c),
		CommentID:  commentID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Comment deleted",
		"removed": removed,
	})
}
