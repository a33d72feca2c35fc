package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"courtyard/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newComment(postID uuid.UUID, parentID *uuid.UUID, author uuid.UUID) *models.Comment {
	return &models.Comment{
		ID:         uuid.New(),
		PostID:     postID,
		ParentID:   parentID,
		ResidentID: author,
		Content:    "hello",
	}
}

func treeFixture(comments []*models.Comment) (*commentRepoStub, *postRepoStub) {
	byID := make(map[uuid.UUID]*models.Comment)
	for _, c := range comments {
		byID[c.ID] = c
	}

	commentRepo := noopCommentRepo()
	commentRepo.listByPostFn = func(_ context.Context, _ uuid.UUID) ([]*models.Comment, error) {
		return comments, nil
	}
	commentRepo.getByIDFn = func(_ context.Context, id uuid.UUID) (*models.Comment, error) {
		if c, ok := byID[id]; ok {
			return c, nil
		}
		return nil, gorm.ErrRecordNotFound
	}

	postRepo := noopPostRepo()
	return commentRepo, postRepo
}

func blocksBetween(pairs ...[2]uuid.UUID) *BlockService {
	repo := noopBlockRepo()
	repo.existsBetweenFn = func(_ context.Context, a, b uuid.UUID) (bool, error) {
		for _, p := range pairs {
			if (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a) {
				return true, nil
			}
		}
		return false, nil
	}
	repo.blockedByFn = func(_ context.Context, viewer uuid.UUID) ([]uuid.UUID, error) {
		var out []uuid.UUID
		for _, p := range pairs {
			if p[0] == viewer {
				out = append(out, p[1])
			}
		}
		return out, nil
	}
	repo.blockersOfFn = func(_ context.Context, viewer uuid.UUID) ([]uuid.UUID, error) {
		var out []uuid.UUID
		for _, p := range pairs {
			if p[1] == viewer {
				out = append(out, p[0])
			}
		}
		return out, nil
	}
	return NewBlockService(repo)
}

func TestCommentService_VisibleTree_Shape(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	viewer := uuid.New()
	author := uuid.New()

	root := newComment(postID, nil, author)
	reply := newComment(postID, &root.ID, viewer)
	nested := newComment(postID, &reply.ID, author)

	commentRepo, postRepo := treeFixture([]*models.Comment{root, reply, nested})
	svc := NewCommentService(commentRepo, postRepo, blocksBetween(), nil, nil)

	tree, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, reply.ID, tree.Roots[0].Children[0].ID)
	require.Len(t, tree.Roots[0].Children[0].Children, 1)
	assert.Equal(t, nested.ID, tree.Roots[0].Children[0].Children[0].ID)
}

func TestCommentService_VisibleTree_BlockedRootHidesSubtree(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	viewer := uuid.New()
	blockedAuthor := uuid.New()
	friendly := uuid.New()

	blockedRoot := newComment(postID, nil, blockedAuthor)
	// Reply from a friendly author still disappears with the blocked root.
	buried := newComment(postID, &blockedRoot.ID, friendly)
	visibleRoot := newComment(postID, nil, friendly)

	commentRepo, postRepo := treeFixture([]*models.Comment{blockedRoot, buried, visibleRoot})
	svc := NewCommentService(commentRepo, postRepo, blocksBetween([2]uuid.UUID{viewer, blockedAuthor}), nil, nil)

	tree, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, visibleRoot.ID, tree.Roots[0].ID)
	assert.Empty(t, tree.Roots[0].Children)
}

func TestCommentService_VisibleTree_BlockedReplySplicesChildrenUp(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	viewer := uuid.New()
	blockedAuthor := uuid.New()
	friendly := uuid.New()

	root := newComment(postID, nil, friendly)
	blockedReply := newComment(postID, &root.ID, blockedAuthor)
	grandchildA := newComment(postID, &blockedReply.ID, friendly)
	grandchildB := newComment(postID, &blockedReply.ID, viewer)

	commentRepo, postRepo := treeFixture([]*models.Comment{root, blockedReply, grandchildA, grandchildB})
	svc := NewCommentService(commentRepo, postRepo, blocksBetween([2]uuid.UUID{blockedAuthor, viewer}), nil, nil)

	tree, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	// The blocked reply is gone and its children now hang off the root.
	require.Len(t, tree.Roots[0].Children, 2)
	assert.Equal(t, grandchildA.ID, tree.Roots[0].Children[0].ID)
	assert.Equal(t, grandchildB.ID, tree.Roots[0].Children[1].ID)
}

func TestCommentService_VisibleTree_ConsecutiveBlockedRepliesCollapse(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	viewer := uuid.New()
	blockedA := uuid.New()
	blockedB := uuid.New()
	friendly := uuid.New()

	// root -> blockedReply -> blockedNested -> leaf: both middle levels are
	// hidden, so the leaf climbs all the way up to the root.
	root := newComment(postID, nil, friendly)
	blockedReply := newComment(postID, &root.ID, blockedA)
	blockedNested := newComment(postID, &blockedReply.ID, blockedB)
	leaf := newComment(postID, &blockedNested.ID, friendly)

	commentRepo, postRepo := treeFixture([]*models.Comment{root, blockedReply, blockedNested, leaf})
	svc := NewCommentService(commentRepo, postRepo, blocksBetween(
		[2]uuid.UUID{viewer, blockedA},
		[2]uuid.UUID{viewer, blockedB},
	), nil, nil)

	tree, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, leaf.ID, tree.Roots[0].Children[0].ID)
	assert.Empty(t, tree.Roots[0].Children[0].Children)
}

func TestCommentService_VisibleTree_DeletedCommentsHidden(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	viewer := uuid.New()
	author := uuid.New()

	root := newComment(postID, nil, author)
	deletedReply := newComment(postID, &root.ID, author)
	deletedReply.Deleted = true
	liveReply := newComment(postID, &root.ID, author)

	commentRepo, postRepo := treeFixture([]*models.Comment{root, deletedReply, liveReply})
	svc := NewCommentService(commentRepo, postRepo, blocksBetween(), nil, nil)

	tree, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, liveReply.ID, tree.Roots[0].Children[0].ID)
}

func TestCommentService_VisibleTree_FailsOpenOnBlockLookupError(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	viewer := uuid.New()
	author := uuid.New()

	root := newComment(postID, nil, author)
	commentRepo, postRepo := treeFixture([]*models.Comment{root})

	blockRepo := noopBlockRepo()
	blockRepo.blockedByFn = func(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
		return nil, errors.New("registry down")
	}
	svc := NewCommentService(commentRepo, postRepo, NewBlockService(blockRepo), nil, nil)

	tree, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer})
	require.NoError(t, err)
	assert.Len(t, tree.Roots, 1)
}

func TestCommentService_VisibleTree_RootPagination(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	viewer := uuid.New()
	author := uuid.New()

	var comments []*models.Comment
	for i := 0; i < 5; i++ {
		comments = append(comments, newComment(postID, nil, author))
	}
	commentRepo, postRepo := treeFixture(comments)
	svc := NewCommentService(commentRepo, postRepo, blocksBetween(), nil, nil)

	tree, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer, Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, tree.TotalRoots)
	require.Len(t, tree.Roots, 2)
	assert.Equal(t, comments[2].ID, tree.Roots[0].ID)

	beyond, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: postID, ViewerID: viewer, Page: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Roots)
}

func TestCommentService_VisibleTree_PostNotFound(t *testing.T) {
	t.Parallel()
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Post, error) {
		return nil, gorm.ErrRecordNotFound
	}
	svc := NewCommentService(noopCommentRepo(), postRepo, nil, nil, nil)

	_, err := svc.VisibleTree(context.Background(), VisibleTreeInput{PostID: uuid.New(), ViewerID: uuid.New()})
	assertNotFoundError(t, err)
}

func TestCommentService_AddComment(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	owner := uuid.New()
	commenter := uuid.New()

	postForID := func(repo *postRepoStub) {
		repo.getByIDFn = func(_ context.Context, id uuid.UUID) (*models.Post, error) {
			return &models.Post{ID: id, ResidentID: owner}, nil
		}
	}

	t.Run("empty body rejected", func(t *testing.T) {
		t.Parallel()
		svc := NewCommentService(noopCommentRepo(), noopPostRepo(), nil, nil, nil)
		_, err := svc.AddComment(context.Background(), AddCommentInput{ResidentID: commenter, PostID: postID})
		assertValidationError(t, err)
	})

	t.Run("content too long rejected", func(t *testing.T) {
		t.Parallel()
		svc := NewCommentService(noopCommentRepo(), noopPostRepo(), nil, nil, nil)
		_, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, Content: strings.Repeat("x", maxCommentLen+1),
		})
		assertValidationError(t, err)
	})

	t.Run("creates and bumps counter in one transaction", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postForID(postRepo)
		var adjusted int
		postRepo.adjustFn = func(_ context.Context, id uuid.UUID, delta int) error {
			assert.Equal(t, postID, id)
			adjusted = delta
			return nil
		}
		commentRepo := noopCommentRepo()
		commentRepo.txPosts = postRepo

		svc := NewCommentService(commentRepo, postRepo, blocksBetween(), nil, nil)
		comment, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, Content: "nice bike",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, adjusted)
		assert.Equal(t, commenter, comment.ResidentID)
		assert.Nil(t, comment.ParentID)
	})

	t.Run("blocked by post author rejected", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postForID(postRepo)
		svc := NewCommentService(noopCommentRepo(), postRepo, blocksBetween([2]uuid.UUID{owner, commenter}), nil, nil)
		_, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, Content: "hi",
		})
		assertUnauthorizedError(t, err)
	})

	t.Run("blocked by parent author rejected", func(t *testing.T) {
		t.Parallel()
		parentAuthor := uuid.New()
		parent := newComment(postID, nil, parentAuthor)

		postRepo := noopPostRepo()
		postForID(postRepo)
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Comment, error) {
			return parent, nil
		}

		svc := NewCommentService(commentRepo, postRepo, blocksBetween([2]uuid.UUID{parentAuthor, commenter}), nil, nil)
		_, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, ParentID: &parent.ID, Content: "hi",
		})
		assertUnauthorizedError(t, err)
	})

	t.Run("reply to deleted parent rejected", func(t *testing.T) {
		t.Parallel()
		parent := newComment(postID, nil, owner)
		parent.Deleted = true

		postRepo := noopPostRepo()
		postForID(postRepo)
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Comment, error) {
			return parent, nil
		}

		svc := NewCommentService(commentRepo, postRepo, blocksBetween(), nil, nil)
		_, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, ParentID: &parent.ID, Content: "hi",
		})
		assertValidationError(t, err)
	})

	t.Run("parent on another post rejected", func(t *testing.T) {
		t.Parallel()
		parent := newComment(uuid.New(), nil, owner)

		postRepo := noopPostRepo()
		postForID(postRepo)
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Comment, error) {
			return parent, nil
		}

		svc := NewCommentService(commentRepo, postRepo, blocksBetween(), nil, nil)
		_, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, ParentID: &parent.ID, Content: "hi",
		})
		assertValidationError(t, err)
	})

	t.Run("rate limited before write", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postForID(postRepo)
		commentRepo := noopCommentRepo()
		commentRepo.createFn = func(_ context.Context, _ *models.Comment) error {
			t.Fatal("create must not run when the limiter rejects")
			return nil
		}

		limiter := &limiterStub{err: models.NewRateLimitedError("slow down")}
		svc := NewCommentService(commentRepo, postRepo, blocksBetween(), limiter, nil)
		_, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, Content: "hi",
		})
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeRateLimited, appErr.Code)
	})

	t.Run("notifier sees post and parent", func(t *testing.T) {
		t.Parallel()
		parentAuthor := uuid.New()
		parent := newComment(postID, nil, parentAuthor)

		postRepo := noopPostRepo()
		postForID(postRepo)
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Comment, error) {
			return parent, nil
		}
		commentRepo.txPosts = postRepo

		var gotParent *models.Comment
		notifier := commentNotifierFunc(func(_ context.Context, post *models.Post, comment *models.Comment, p *models.Comment) {
			assert.Equal(t, postID, post.ID)
			assert.Equal(t, comment.ParentID, &parent.ID)
			gotParent = p
		})

		svc := NewCommentService(commentRepo, postRepo, blocksBetween(), nil, notifier)
		_, err := svc.AddComment(context.Background(), AddCommentInput{
			ResidentID: commenter, PostID: postID, ParentID: &parent.ID, Content: "hi",
		})
		require.NoError(t, err)
		require.NotNil(t, gotParent)
		assert.Equal(t, parent.ID, gotParent.ID)
	})
}

// commentNotifierFunc adapts a function to the CommentNotifier interface.
type commentNotifierFunc func(context.Context, *models.Post, *models.Comment, *models.Comment)

func (f commentNotifierFunc) NotifyCommentCreated(ctx context.Context, post *models.Post, comment *models.Comment, parent *models.Comment) {
	f(ctx, post, comment, parent)
}

func TestCommentService_UpdateComment(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	author := uuid.New()

	t.Run("owner can edit", func(t *testing.T) {
		t.Parallel()
		comment := newComment(postID, nil, author)
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Comment, error) {
			return comment, nil
		}
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)

		updated, err := svc.UpdateComment(context.Background(), UpdateCommentInput{
			ResidentID: author, CommentID: comment.ID, Content: "edited",
		})
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Content)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		t.Parallel()
		comment := newComment(postID, nil, author)
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Comment, error) {
			return comment, nil
		}
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)

		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{
			ResidentID: uuid.New(), CommentID: comment.ID, Content: "edited",
		})
		assertUnauthorizedError(t, err)
	})

	t.Run("deleted comment is gone", func(t *testing.T) {
		t.Parallel()
		comment := newComment(postID, nil, author)
		comment.Deleted = true
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, _ uuid.UUID) (*models.Comment, error) {
			return comment, nil
		}
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)

		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{
			ResidentID: author, CommentID: comment.ID, Content: "edited",
		})
		assertNotFoundError(t, err)
	})
}

func TestCommentService_DeleteComment_RootCascades(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	author := uuid.New()

	root := newComment(postID, nil, author)
	child := newComment(postID, &root.ID, uuid.New())
	grandchild := newComment(postID, &child.ID, uuid.New())
	// Already-deleted node must not count against the post counter again.
	deletedChild := newComment(postID, &root.ID, uuid.New())
	deletedChild.Deleted = true

	commentRepo, postRepo := treeFixture([]*models.Comment{root, child, grandchild, deletedChild})
	postRepo.getByIDFn = func(_ context.Context, id uuid.UUID) (*models.Post, error) {
		return &models.Post{ID: id, ResidentID: uuid.New()}, nil
	}

	var marked []uuid.UUID
	commentRepo.markDeletedFn = func(_ context.Context, ids []uuid.UUID) error {
		marked = ids
		return nil
	}
	var delta int
	postRepo.adjustFn = func(_ context.Context, _ uuid.UUID, d int) error {
		delta = d
		return nil
	}
	commentRepo.txPosts = postRepo

	svc := NewCommentService(commentRepo, postRepo, nil, nil, nil)
	removed, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
		ResidentID: author, CommentID: root.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, removed)
	assert.Equal(t, -3, delta)
	assert.ElementsMatch(t, []uuid.UUID{root.ID, child.ID, grandchild.ID, deletedChild.ID}, marked)
}

func TestCommentService_DeleteComment_ReplyReparentsChildren(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	author := uuid.New()

	root := newComment(postID, nil, uuid.New())
	middle := newComment(postID, &root.ID, author)
	leafA := newComment(postID, &middle.ID, uuid.New())
	leafB := newComment(postID, &middle.ID, uuid.New())

	commentRepo, postRepo := treeFixture([]*models.Comment{root, middle, leafA, leafB})
	postRepo.getByIDFn = func(_ context.Context, id uuid.UUID) (*models.Post, error) {
		return &models.Post{ID: id, ResidentID: uuid.New()}, nil
	}

	var marked []uuid.UUID
	commentRepo.markDeletedFn = func(_ context.Context, ids []uuid.UUID) error {
		marked = ids
		return nil
	}
	var reparented []uuid.UUID
	var newParent *uuid.UUID
	commentRepo.reparentFn = func(_ context.Context, ids []uuid.UUID, parentID *uuid.UUID) error {
		reparented = ids
		newParent = parentID
		return nil
	}
	var delta int
	postRepo.adjustFn = func(_ context.Context, _ uuid.UUID, d int) error {
		delta = d
		return nil
	}
	commentRepo.txPosts = postRepo

	svc := NewCommentService(commentRepo, postRepo, nil, nil, nil)
	removed, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
		ResidentID: author, CommentID: middle.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.Equal(t, -1, delta)
	assert.Equal(t, []uuid.UUID{middle.ID}, marked)
	assert.ElementsMatch(t, []uuid.UUID{leafA.ID, leafB.ID}, reparented)
	require.NotNil(t, newParent)
	assert.Equal(t, root.ID, *newParent)
}

func TestCommentService_DeleteComment_Authorization(t *testing.T) {
	t.Parallel()
	postID := uuid.New()
	author := uuid.New()
	postOwner := uuid.New()

	setup := func() (*CommentService, *models.Comment) {
		comment := newComment(postID, nil, author)
		commentRepo, postRepo := treeFixture([]*models.Comment{comment})
		postRepo.getByIDFn = func(_ context.Context, id uuid.UUID) (*models.Post, error) {
			return &models.Post{ID: id, ResidentID: postOwner}, nil
		}
		commentRepo.txPosts = postRepo
		return NewCommentService(commentRepo, postRepo, nil, nil, nil), comment
	}

	t.Run("post owner can delete someone else's comment", func(t *testing.T) {
		t.Parallel()
		svc, comment := setup()
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
			ResidentID: postOwner, CommentID: comment.ID,
		})
		assert.NoError(t, err)
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		t.Parallel()
		svc, comment := setup()
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
			ResidentID: uuid.New(), CommentID: comment.ID,
		})
		assertUnauthorizedError(t, err)
	})

	t.Run("deleting twice is not found", func(t *testing.T) {
		t.Parallel()
		comment := newComment(postID, nil, author)
		comment.Deleted = true
		commentRepo, postRepo := treeFixture([]*models.Comment{comment})
		svc := NewCommentService(commentRepo, postRepo, nil, nil, nil)

		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
			ResidentID: author, CommentID: comment.ID,
		})
		assertNotFoundError(t, err)
	})
}
