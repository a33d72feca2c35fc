package service

import (
	"context"
	"errors"
	"testing"

	"courtyard/internal/models"
	"courtyard/internal/push"
	"courtyard/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn      func(context.Context, *models.Comment) error
	getByIDFn     func(context.Context, uuid.UUID) (*models.Comment, error)
	listByPostFn  func(context.Context, uuid.UUID) ([]*models.Comment, error)
	updateFn      func(context.Context, *models.Comment) error
	markDeletedFn func(context.Context, []uuid.UUID) error
	reparentFn    func(context.Context, []uuid.UUID, *uuid.UUID) error

	// txPosts is the post repository handed to InTx callbacks.
	txPosts repository.PostRepository
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Update(ctx context.Context, comment *models.Comment) error {
	return s.updateFn(ctx, comment)
}
func (s *commentRepoStub) MarkDeleted(ctx context.Context, ids []uuid.UUID) error {
	return s.markDeletedFn(ctx, ids)
}
func (s *commentRepoStub) Reparent(ctx context.Context, ids []uuid.UUID, newParentID *uuid.UUID) error {
	return s.reparentFn(ctx, ids, newParentID)
}
func (s *commentRepoStub) InTx(_ context.Context, fn func(repository.CommentRepository, repository.PostRepository) error) error {
	return fn(s, s.txPosts)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:  func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn: func(_ context.Context, _ uuid.UUID) (*models.Comment, error) { return &models.Comment{}, nil },
		listByPostFn: func(_ context.Context, _ uuid.UUID) ([]*models.Comment, error) {
			return nil, nil
		},
		updateFn:      func(_ context.Context, _ *models.Comment) error { return nil },
		markDeletedFn: func(_ context.Context, _ []uuid.UUID) error { return nil },
		reparentFn:    func(_ context.Context, _ []uuid.UUID, _ *uuid.UUID) error { return nil },
		txPosts:       noopPostRepo(),
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.Post) error
	getByIDFn func(context.Context, uuid.UUID) (*models.Post, error)
	listFn    func(context.Context, int, int) ([]*models.Post, int64, error)
	updateFn  func(context.Context, *models.Post) error
	adjustFn  func(context.Context, uuid.UUID, int) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, page, size int) ([]*models.Post, int64, error) {
	return s.listFn(ctx, page, size)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) AdjustCommentCount(ctx context.Context, postID uuid.UUID, delta int) error {
	return s.adjustFn(ctx, postID, delta)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, _ uuid.UUID) (*models.Post, error) { return &models.Post{}, nil },
		listFn:    func(_ context.Context, _, _ int) ([]*models.Post, int64, error) { return nil, 0, nil },
		updateFn:  func(_ context.Context, _ *models.Post) error { return nil },
		adjustFn:  func(_ context.Context, _ uuid.UUID, _ int) error { return nil },
	}
}

// blockRepoStub is a stub for repository.BlockRepository.
type blockRepoStub struct {
	createFn        func(context.Context, *models.Block) error
	findPairFn      func(context.Context, uuid.UUID, uuid.UUID) (*models.Block, error)
	deleteFn        func(context.Context, *models.Block) error
	existsBetweenFn func(context.Context, uuid.UUID, uuid.UUID) (bool, error)
	blockedByFn     func(context.Context, uuid.UUID) ([]uuid.UUID, error)
	blockersOfFn    func(context.Context, uuid.UUID) ([]uuid.UUID, error)
}

func (s *blockRepoStub) Create(ctx context.Context, block *models.Block) error {
	return s.createFn(ctx, block)
}
func (s *blockRepoStub) FindPair(ctx context.Context, blockerID, blockedID uuid.UUID) (*models.Block, error) {
	return s.findPairFn(ctx, blockerID, blockedID)
}
func (s *blockRepoStub) Delete(ctx context.Context, block *models.Block) error {
	return s.deleteFn(ctx, block)
}
func (s *blockRepoStub) ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return s.existsBetweenFn(ctx, a, b)
}
func (s *blockRepoStub) ListBlockedBy(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	return s.blockedByFn(ctx, blockerID)
}
func (s *blockRepoStub) ListBlockersOf(ctx context.Context, blockedID uuid.UUID) ([]uuid.UUID, error) {
	return s.blockersOfFn(ctx, blockedID)
}

func noopBlockRepo() *blockRepoStub {
	return &blockRepoStub{
		createFn: func(_ context.Context, _ *models.Block) error { return nil },
		findPairFn: func(_ context.Context, _, _ uuid.UUID) (*models.Block, error) {
			return nil, gorm.ErrRecordNotFound
		},
		deleteFn:        func(_ context.Context, _ *models.Block) error { return nil },
		existsBetweenFn: func(_ context.Context, _, _ uuid.UUID) (bool, error) { return false, nil },
		blockedByFn:     func(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) { return nil, nil },
		blockersOfFn:    func(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) { return nil, nil },
	}
}

// notifRepoStub is a stub for repository.NotificationRepository.
type notifRepoStub struct {
	createFn          func(context.Context, *models.Notification) error
	getByIDFn         func(context.Context, uuid.UUID) (*models.Notification, error)
	listActiveFn      func(context.Context) ([]*models.Notification, error)
	updateFn          func(context.Context, *models.Notification) error
	findByReferenceFn func(context.Context, uuid.UUID, models.NotificationType, uuid.UUID) ([]*models.Notification, error)
	listForResidentFn func(context.Context, uuid.UUID, *uuid.UUID, int, int) ([]*models.Notification, int64, error)
}

func (s *notifRepoStub) Create(ctx context.Context, n *models.Notification) error {
	return s.createFn(ctx, n)
}
func (s *notifRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	return s.getByIDFn(ctx, id)
}
func (s *notifRepoStub) ListActive(ctx context.Context) ([]*models.Notification, error) {
	return s.listActiveFn(ctx)
}
func (s *notifRepoStub) Update(ctx context.Context, n *models.Notification) error {
	return s.updateFn(ctx, n)
}
func (s *notifRepoStub) FindByReference(ctx context.Context, referenceID uuid.UUID, ntype models.NotificationType, residentID uuid.UUID) ([]*models.Notification, error) {
	return s.findByReferenceFn(ctx, referenceID, ntype, residentID)
}
func (s *notifRepoStub) ListForResident(ctx context.Context, residentID uuid.UUID, buildingID *uuid.UUID, page, size int) ([]*models.Notification, int64, error) {
	return s.listForResidentFn(ctx, residentID, buildingID, page, size)
}

func noopNotifRepo() *notifRepoStub {
	return &notifRepoStub{
		createFn: func(_ context.Context, _ *models.Notification) error { return nil },
		getByIDFn: func(_ context.Context, _ uuid.UUID) (*models.Notification, error) {
			return nil, gorm.ErrRecordNotFound
		},
		listActiveFn: func(_ context.Context) ([]*models.Notification, error) { return nil, nil },
		updateFn:     func(_ context.Context, _ *models.Notification) error { return nil },
		findByReferenceFn: func(_ context.Context, _ uuid.UUID, _ models.NotificationType, _ uuid.UUID) ([]*models.Notification, error) {
			return nil, nil
		},
		listForResidentFn: func(_ context.Context, _ uuid.UUID, _ *uuid.UUID, _, _ int) ([]*models.Notification, int64, error) {
			return nil, 0, nil
		},
	}
}

// tokenRepoStub is a stub for repository.DeviceTokenRepository.
type tokenRepoStub struct {
	upsertFn          func(context.Context, *models.DeviceToken) error
	findByTokenFn     func(context.Context, string) (*models.DeviceToken, error)
	removeFn          func(context.Context, string) error
	listActiveFn      func(context.Context) ([]string, error)
	listForResidentFn func(context.Context, uuid.UUID) ([]string, error)
	listForBuildingFn func(context.Context, uuid.UUID) ([]string, error)
	listForRoleFn     func(context.Context, string) ([]string, error)
	disableFn         func(context.Context, []string) error
}

func (s *tokenRepoStub) Upsert(ctx context.Context, token *models.DeviceToken) error {
	return s.upsertFn(ctx, token)
}
func (s *tokenRepoStub) FindByToken(ctx context.Context, token string) (*models.DeviceToken, error) {
	return s.findByTokenFn(ctx, token)
}
func (s *tokenRepoStub) Remove(ctx context.Context, token string) error {
	return s.removeFn(ctx, token)
}
func (s *tokenRepoStub) ListActive(ctx context.Context) ([]string, error) {
	return s.listActiveFn(ctx)
}
func (s *tokenRepoStub) ListForResident(ctx context.Context, residentID uuid.UUID) ([]string, error) {
	return s.listForResidentFn(ctx, residentID)
}
func (s *tokenRepoStub) ListForBuilding(ctx context.Context, buildingID uuid.UUID) ([]string, error) {
	return s.listForBuildingFn(ctx, buildingID)
}
func (s *tokenRepoStub) ListForRole(ctx context.Context, role string) ([]string, error) {
	return s.listForRoleFn(ctx, role)
}
func (s *tokenRepoStub) Disable(ctx context.Context, tokens []string) error {
	return s.disableFn(ctx, tokens)
}

func noopTokenRepo() *tokenRepoStub {
	return &tokenRepoStub{
		upsertFn: func(_ context.Context, _ *models.DeviceToken) error { return nil },
		findByTokenFn: func(_ context.Context, _ string) (*models.DeviceToken, error) {
			return nil, gorm.ErrRecordNotFound
		},
		removeFn:          func(_ context.Context, _ string) error { return nil },
		listActiveFn:      func(_ context.Context) ([]string, error) { return nil, nil },
		listForResidentFn: func(_ context.Context, _ uuid.UUID) ([]string, error) { return nil, nil },
		listForBuildingFn: func(_ context.Context, _ uuid.UUID) ([]string, error) { return nil, nil },
		listForRoleFn:     func(_ context.Context, _ string) ([]string, error) { return nil, nil },
		disableFn:         func(_ context.Context, _ []string) error { return nil },
	}
}

// dispatcherStub records push sends and returns a canned result.
type dispatcherStub struct {
	sent   [][]string
	last   push.Payload
	result *push.Result
	err    error
}

func (s *dispatcherStub) Send(_ context.Context, tokens []string, payload push.Payload) (*push.Result, error) {
	s.sent = append(s.sent, tokens)
	s.last = payload
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &push.Result{Delivered: len(tokens)}, nil
}

// limiterStub is a SubmissionLimiter returning a fixed error.
type limiterStub struct {
	err error
}

func (s *limiterStub) Allow(_ context.Context, _ uuid.UUID) error { return s.err }

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != models.CodeValidation {
		t.Fatalf("expected validation error, got %s", appErr.Code)
	}
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != models.CodeNotFound {
		t.Fatalf("expected not-found error, got %s", appErr.Code)
	}
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != models.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %s", appErr.Code)
	}
}
