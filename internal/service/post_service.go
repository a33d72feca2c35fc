package service

import (
	"context"
	"errors"

	"courtyard/internal/cache"
	"courtyard/internal/models"
	"courtyard/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostService is the supporting surface around marketplace posts that the
// comment tree hangs off.
type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	ResidentID uuid.UUID
	BuildingID uuid.UUID
	Title      string
	Content    string
	Price      int64
	ImageURL   string
}

// UpdatePostInput carries a partial edit. A nil Price means "leave the
// stored price alone"; zero is a legal asking price, so the empty-string
// sentinel the other fields use does not work for it.
type UpdatePostInput struct {
	ResidentID uuid.UUID
	PostID     uuid.UUID
	Title      string
	Content    string
	Price      *int64
	ImageURL   string
	Status     string
}

type PostPage struct {
	Posts []*models.Post `json:"posts"`
	Total int64          `json:"total"`
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	const maxTitleLen = 300
	const maxContentLen = 50000

	if in.Title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len(in.Title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 300 characters)")
	}
	if len(in.Content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}
	if in.Price < 0 {
		return nil, models.NewValidationError("Price cannot be negative")
	}

	post := &models.Post{
		ResidentID: in.ResidentID,
		BuildingID: in.BuildingID,
		Title:      in.Title,
		Content:    in.Content,
		Price:      in.Price,
		ImageURL:   in.ImageURL,
		Status:     models.PostStatusActive,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, cache.PostListKey())
	return post, nil
}

// GetPost reads through the post detail cache.
func (s *PostService) GetPost(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := cache.CacheAside(ctx, cache.PostDetailKey(postID), &post, cache.PostDetailTTL, func() error {
		found, err := s.postRepo.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		post = *found
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	return &post, nil
}

// ListPosts pages active posts newest first. Only the first page goes
// through the cache; deeper pages change too often to be worth storing.
func (s *PostService) ListPosts(ctx context.Context, page, size int) (*PostPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	if page == 1 && size == 20 {
		var cached PostPage
		err := cache.CacheAside(ctx, cache.PostListKey(), &cached, cache.PostListTTL, func() error {
			posts, total, err := s.postRepo.List(ctx, page, size)
			if err != nil {
				return err
			}
			cached = PostPage{Posts: posts, Total: total}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &cached, nil
	}

	posts, total, err := s.postRepo.List(ctx, page, size)
	if err != nil {
		return nil, err
	}
	return &PostPage{Posts: posts, Total: total}, nil
}

// UpdatePost lets the owner edit a post; the cache entry is evicted, not
// rewritten.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		return nil, err
	}
	if post.ResidentID != in.ResidentID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}

	if in.Title != "" {
		post.Title = in.Title
	}
	if in.Content != "" {
		post.Content = in.Content
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, models.NewValidationError("Price cannot be negative")
		}
		post.Price = *in.Price
	}
	if in.ImageURL != "" {
		post.ImageURL = in.ImageURL
	}
	if in.Status != "" {
		switch in.Status {
		case models.PostStatusActive, models.PostStatusSold, models.PostStatusHidden:
			post.Status = in.Status
		default:
			return nil, models.NewValidationError("Unknown post status: " + in.Status)
		}
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, post.ID)
	return post, nil
}
