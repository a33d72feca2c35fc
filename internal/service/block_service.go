package service

import (
	"context"
	"errors"
	"log/slog"

	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockService manages directed block relationships between residents.
type BlockService struct {
	blockRepo repository.BlockRepository
}

// BlockLists holds both directions of a resident's block relationships.
type BlockLists struct {
	Blocked   []uuid.UUID `json:"blocked"`
	BlockedBy []uuid.UUID `json:"blocked_by"`
}

func NewBlockService(blockRepo repository.BlockRepository) *BlockService {
	return &BlockService{blockRepo: blockRepo}
}

// Block records that blocker no longer wants to see blocked's content.
// Blocking the same resident twice is a no-op returning the existing pair.
func (s *BlockService) Block(ctx context.Context, blockerID, blockedID uuid.UUID) (*models.Block, error) {
	if blockerID == blockedID {
		return nil, models.NewValidationError("You cannot block yourself")
	}

	existing, err := s.blockRepo.FindPair(ctx, blockerID, blockedID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	block := &models.Block{BlockerID: blockerID, BlockedID: blockedID}
	if err := s.blockRepo.Create(ctx, block); err != nil {
		return nil, err
	}
	return block, nil
}

// Unblock removes a block pair. Absent pairs are a no-op unless strict,
// in which case the caller gets a not-found error.
func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID, strict bool) error {
	block, err := s.blockRepo.FindPair(ctx, blockerID, blockedID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if strict {
				return models.NewNotFoundError("Block", blockedID)
			}
			return nil
		}
		return err
	}
	return s.blockRepo.Delete(ctx, block)
}

// IsBlocked reports whether a block exists between two residents in either
// direction.
func (s *BlockService) IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return s.blockRepo.ExistsBetween(ctx, a, b)
}

// Lists returns who the resident blocked and who blocked them.
func (s *BlockService) Lists(ctx context.Context, residentID uuid.UUID) (*BlockLists, error) {
	blocked, err := s.blockRepo.ListBlockedBy(ctx, residentID)
	if err != nil {
		return nil, err
	}
	blockedBy, err := s.blockRepo.ListBlockersOf(ctx, residentID)
	if err != nil {
		return nil, err
	}
	return &BlockLists{Blocked: blocked, BlockedBy: blockedBy}, nil
}

// HiddenAuthors returns the union of both directions as a lookup set for
// comment filtering. Lookup failures fail open: an empty set is returned so
// content stays visible rather than the page erroring out.
func (s *BlockService) HiddenAuthors(ctx context.Context, viewerID uuid.UUID) map[uuid.UUID]struct{} {
	hidden := make(map[uuid.UUID]struct{})

	blocked, err := s.blockRepo.ListBlockedBy(ctx, viewerID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "block lookup failed, failing open",
			slog.String("viewer_id", viewerID.String()),
			slog.String("error", err.Error()),
		)
		return hidden
	}
	blockedBy, err := s.blockRepo.ListBlockersOf(ctx, viewerID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "block lookup failed, failing open",
			slog.String("viewer_id", viewerID.String()),
			slog.String("error", err.Error()),
		)
		return hidden
	}

	for _, id := range blocked {
		hidden[id] = struct{}{}
	}
	for _, id := range blockedBy {
		hidden[id] = struct{}{}
	}
	return hidden
}
