package repository

import (
	"context"

	"courtyard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostRepository defines interface for marketplace post operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, page, size int) ([]*models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	AdjustCommentCount(ctx context.Context, postID uuid.UUID, delta int) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, page, size int) ([]*models.Post, int64, error) {
	var posts []*models.Post
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Post{}).Where("status = ?", models.PostStatusActive)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&posts).Error
	return posts, total, err
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// AdjustCommentCount shifts the denormalized counter by delta, clamped at zero.
func (r *postRepository) AdjustCommentCount(ctx context.Context, postID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("comments_count", gorm.Expr("GREATEST(comments_count + ?, 0)", delta)).Error
}
