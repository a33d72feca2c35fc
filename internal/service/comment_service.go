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

// SubmissionLimiter enforces the per-resident comment submission quota.
// A nil limiter disables the check.
type SubmissionLimiter interface {
	Allow(ctx context.Context, residentID uuid.UUID) error
}

// CommentNotifier receives comment events for notification fan-out.
// Implementations must be best-effort: a comment is saved even when its
// notifications cannot be delivered.
type CommentNotifier interface {
	NotifyCommentCreated(ctx context.Context, post *models.Post, comment *models.Comment, parent *models.Comment)
}

// CommentService implements the comment tree: block-aware reads, validated
// writes and the two-path delete (cascade for roots, re-parenting otherwise).
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	blocks      *BlockService
	limiter     SubmissionLimiter
	notifier    CommentNotifier
}

// CommentNode is one visible comment with its visible children.
type CommentNode struct {
	*models.Comment
	Children []*CommentNode `json:"children"`
}

type VisibleTreeInput struct {
	PostID   uuid.UUID
	ViewerID uuid.UUID
	Page     int
	Size     int
}

type VisibleTree struct {
	Roots      []*CommentNode `json:"comments"`
	TotalRoots int            `json:"total_roots"`
}

type AddCommentInput struct {
	ResidentID uuid.UUID
	PostID     uuid.UUID
	ParentID   *uuid.UUID
	Content    string
	ImageURL   string
	VideoURL   string
}

type UpdateCommentInput struct {
	ResidentID uuid.UUID
	CommentID  uuid.UUID
	Content    string
	ImageURL   string
	VideoURL   string
}

type DeleteCommentInput struct {
	ResidentID uuid.UUID
	CommentID  uuid.UUID
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	blocks *BlockService,
	limiter SubmissionLimiter,
	notifier CommentNotifier,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		blocks:      blocks,
		limiter:     limiter,
		notifier:    notifier,
	}
}

// VisibleTree returns the post's comment tree as one viewer sees it.
// Deleted comments never appear. A blocked root hides its whole subtree;
// a blocked reply is spliced out and its children take its place under
// the grandparent. Block lookups fail open, so a registry outage shows
// the unfiltered tree rather than an error page.
func (s *CommentService) VisibleTree(ctx context.Context, in VisibleTreeInput) (*VisibleTree, error) {
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		return nil, err
	}

	comments, err := s.commentRepo.ListByPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	var hidden map[uuid.UUID]struct{}
	if s.blocks != nil {
		hidden = s.blocks.HiddenAuthors(ctx, in.ViewerID)
	}

	children := make(map[uuid.UUID][]*models.Comment)
	var rootComments []*models.Comment
	for _, c := range comments {
		if c.ParentID == nil {
			rootComments = append(rootComments, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var roots []*CommentNode
	for _, root := range rootComments {
		if root.Deleted {
			continue
		}
		if _, blocked := hidden[root.ResidentID]; blocked {
			// Blocked root: the whole subtree stays hidden, no splice.
			continue
		}
		roots = append(roots, &CommentNode{
			Comment:  root,
			Children: filterChildren(children[root.ID], children, hidden),
		})
	}

	total := len(roots)
	if in.Size > 0 {
		page := in.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * in.Size
		if start >= total {
			roots = nil
		} else {
			end := start + in.Size
			if end > total {
				end = total
			}
			roots = roots[start:end]
		}
	}

	return &VisibleTree{Roots: roots, TotalRoots: total}, nil
}

// filterChildren builds the visible nodes for one sibling list. Replies by
// blocked authors are removed and their (already filtered) children are
// spliced into this list in their place.
func filterChildren(siblings []*models.Comment, children map[uuid.UUID][]*models.Comment, hidden map[uuid.UUID]struct{}) []*CommentNode {
	var out []*CommentNode
	for _, c := range siblings {
		if c.Deleted {
			continue
		}
		filtered := filterChildren(children[c.ID], children, hidden)
		if _, blocked := hidden[c.ResidentID]; blocked {
			out = append(out, filtered...)
			continue
		}
		out = append(out, &CommentNode{Comment: c, Children: filtered})
	}
	return out
}

const maxCommentLen = 10000

// AddComment validates and stores a root comment or a reply, bumps the
// post's comment counter in the same transaction, and hands the saved
// comment to the notifier.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	if in.Content == "" && in.ImageURL == "" && in.VideoURL == "" {
		return nil, models.NewValidationError("Comment needs text or an attachment")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		return nil, err
	}

	if err := s.checkNotBlocked(ctx, in.ResidentID, post.ResidentID); err != nil {
		return nil, err
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("Comment", *in.ParentID)
			}
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewValidationError("Parent comment belongs to a different post")
		}
		if parent.Deleted {
			return nil, models.NewValidationError("Cannot reply to a deleted comment")
		}
		if err := s.checkNotBlocked(ctx, in.ResidentID, parent.ResidentID); err != nil {
			return nil, err
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, in.ResidentID); err != nil {
			return nil, err
		}
	}

	comment := &models.Comment{
		PostID:     in.PostID,
		ParentID:   in.ParentID,
		ResidentID: in.ResidentID,
		Content:    in.Content,
		ImageURL:   in.ImageURL,
		VideoURL:   in.VideoURL,
	}

	err = s.commentRepo.InTx(ctx, func(comments repository.CommentRepository, posts repository.PostRepository) error {
		if err := comments.Create(ctx, comment); err != nil {
			return err
		}
		return posts.AdjustCommentCount(ctx, in.PostID, 1)
	})
	if err != nil {
		return nil, err
	}

	// the cached post detail carries the comment counter
	cache.InvalidatePost(ctx, in.PostID)

	if s.notifier != nil {
		s.notifier.NotifyCommentCreated(ctx, post, comment, parent)
	}

	return comment, nil
}

// checkNotBlocked rejects the write when a block exists between the two
// residents in either direction. Unlike the read filter, write-path lookup
// failures propagate: a comment must not slip past the registry.
func (s *CommentService) checkNotBlocked(ctx context.Context, actor, other uuid.UUID) error {
	if s.blocks == nil || actor == other {
		return nil
	}
	blocked, err := s.blocks.IsBlocked(ctx, actor, other)
	if err != nil {
		return err
	}
	if blocked {
		return models.NewUnauthorizedError("You cannot comment here")
	}
	return nil
}

// UpdateComment lets the author edit a comment's body.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", in.CommentID)
		}
		return nil, err
	}
	if comment.Deleted {
		return nil, models.NewNotFoundError("Comment", in.CommentID)
	}
	if comment.ResidentID != in.ResidentID {
		return nil, models.NewUnauthorizedError("You can only update your own comments")
	}
	if in.Content == "" && in.ImageURL == "" && in.VideoURL == "" {
		return nil, models.NewValidationError("Comment needs text or an attachment")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	comment.Content = in.Content
	comment.ImageURL = in.ImageURL
	comment.VideoURL = in.VideoURL
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment soft-deletes a comment. Deleting a root removes its whole
// subtree; deleting a reply re-parents its children to their grandparent,
// so sibling order and the rest of the thread stay intact. The post's
// counter decreases by exactly the number of comments removed. Returns
// that count.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (int, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.NewNotFoundError("Comment", in.CommentID)
		}
		return 0, err
	}
	if comment.Deleted {
		return 0, models.NewNotFoundError("Comment", in.CommentID)
	}

	post, err := s.postRepo.GetByID(ctx, comment.PostID)
	if err != nil {
		return 0, err
	}
	if comment.ResidentID != in.ResidentID && post.ResidentID != in.ResidentID {
		return 0, models.NewUnauthorizedError("Only the comment author or the post owner can delete a comment")
	}

	all, err := s.commentRepo.ListByPost(ctx, comment.PostID)
	if err != nil {
		return 0, err
	}
	children := make(map[uuid.UUID][]*models.Comment)
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	var removed int
	if comment.IsRoot() {
		// Cascade: collect the live subtree and soft-delete it in one shot.
		ids, live := collectSubtree(comment.ID, children)
		removed = live
		err = s.commentRepo.InTx(ctx, func(comments repository.CommentRepository, posts repository.PostRepository) error {
			if err := comments.MarkDeleted(ctx, ids); err != nil {
				return err
			}
			return posts.AdjustCommentCount(ctx, comment.PostID, -removed)
		})
	} else {
		// Re-parent: direct children move up to the deleted comment's parent.
		removed = 1
		var childIDs []uuid.UUID
		for _, c := range children[comment.ID] {
			childIDs = append(childIDs, c.ID)
		}
		err = s.commentRepo.InTx(ctx, func(comments repository.CommentRepository, posts repository.PostRepository) error {
			if err := comments.MarkDeleted(ctx, []uuid.UUID{comment.ID}); err != nil {
				return err
			}
			if len(childIDs) > 0 {
				if err := comments.Reparent(ctx, childIDs, comment.ParentID); err != nil {
					return err
				}
			}
			return posts.AdjustCommentCount(ctx, comment.PostID, -1)
		})
	}
	if err != nil {
		return 0, err
	}

	cache.InvalidatePost(ctx, comment.PostID)

	return removed, nil
}

// collectSubtree returns every id under (and including) root and the number
// of not-yet-deleted nodes among them, so the post counter only drops by
// live comments. The root itself is assumed live; callers check first.
func collectSubtree(root uuid.UUID, children map[uuid.UUID][]*models.Comment) ([]uuid.UUID, int) {
	ids := []uuid.UUID{root}
	live := 1
	var walk func(id uuid.UUID)
	walk = func(id uuid.UUID) {
		for _, c := range children[id] {
			ids = append(ids, c.ID)
			if !c.Deleted {
				live++
			}
			walk(c.ID)
		}
	}
	walk(root)
	return ids, live
}
