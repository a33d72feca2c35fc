package repository

import (
	"context"
	"errors"

	"courtyard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockRepository defines interface for resident block relationships.
// Pair lookups are directional; the service composes both directions.
type BlockRepository interface {
	Create(ctx context.Context, block *models.Block) error
	FindPair(ctx context.Context, blockerID, blockedID uuid.UUID) (*models.Block, error)
	Delete(ctx context.Context, block *models.Block) error
	ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	ListBlockedBy(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error)
	ListBlockersOf(ctx context.Context, blockedID uuid.UUID) ([]uuid.UUID, error)
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new BlockRepository
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Create(ctx context.Context, block *models.Block) error {
	return r.db.WithContext(ctx).Create(block).Error
}

func (r *blockRepository) FindPair(ctx context.Context, blockerID, blockedID uuid.UUID) (*models.Block, error) {
	var block models.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		First(&block).Error
	if err != nil {
		return nil, err
	}
	return &block, nil
}

func (r *blockRepository) Delete(ctx context.Context, block *models.Block) error {
	return r.db.WithContext(ctx).Delete(block).Error
}

// ExistsBetween reports whether a block exists in either direction.
func (r *blockRepository) ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var block models.Block
	err := r.db.WithContext(ctx).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		First(&block).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *blockRepository) ListBlockedBy(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Block{}).
		Where("blocker_id = ?", blockerID).
		Pluck("blocked_id", &ids).Error
	return ids, err
}

func (r *blockRepository) ListBlockersOf(ctx context.Context, blockedID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Block{}).
		Where("blocked_id = ?", blockedID).
		Pluck("blocker_id", &ids).Error
	return ids, err
}
