// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"courtyard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations. ListByPost
// returns the post's comments as a flat slice; tree reconstruction is the
// service layer's job, via an adjacency map keyed by id.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	MarkDeleted(ctx context.Context, ids []uuid.UUID) error
	Reparent(ctx context.Context, ids []uuid.UUID, newParentID *uuid.UUID) error
	// InTx runs fn inside one database transaction, handing it repositories
	// bound to that transaction. Comment-tree re-parenting and counter updates
	// go through here so partial re-linking is never observable.
	InTx(ctx context.Context, fn func(comments CommentRepository, posts PostRepository) error) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(
	ctx context.Context,
	postID uuid.UUID,
) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at asc").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

func (r *commentRepository) MarkDeleted(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id IN ?", ids).
		Update("deleted", true).Error
}

func (r *commentRepository) Reparent(ctx context.Context, ids []uuid.UUID, newParentID *uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id IN ?", ids).
		Update("parent_id", newParentID).Error
}

func (r *commentRepository) InTx(
	ctx context.Context,
	fn func(comments CommentRepository, posts PostRepository) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&commentRepository{db: tx}, &postRepository{db: tx})
	})
}
