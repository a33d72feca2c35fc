package repository

import (
	"context"
	"time"

	"courtyard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceTokenRepository defines interface for push token storage and audience
// resolution. Every List* method excludes disabled tokens.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token *models.DeviceToken) error
	FindByToken(ctx context.Context, token string) (*models.DeviceToken, error)
	Remove(ctx context.Context, token string) error
	ListActive(ctx context.Context) ([]string, error)
	ListForResident(ctx context.Context, residentID uuid.UUID) ([]string, error)
	ListForBuilding(ctx context.Context, buildingID uuid.UUID) ([]string, error)
	ListForRole(ctx context.Context, role string) ([]string, error)
	Disable(ctx context.Context, tokens []string) error
}

type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new DeviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

func (r *deviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	existing, err := r.FindByToken(ctx, token.Token)
	if err == nil {
		token.ID = existing.ID
		token.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(token).Error
	}
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *deviceTokenRepository) FindByToken(ctx context.Context, token string) (*models.DeviceToken, error) {
	var t models.DeviceToken
	if err := r.db.WithContext(ctx).First(&t, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *deviceTokenRepository) Remove(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Delete(&models.DeviceToken{}, "token = ?", token).Error
}

func (r *deviceTokenRepository) ListActive(ctx context.Context) ([]string, error) {
	return r.pluck(ctx, r.active(ctx))
}

func (r *deviceTokenRepository) ListForResident(ctx context.Context, residentID uuid.UUID) ([]string, error) {
	return r.pluck(ctx, r.active(ctx).Where("resident_id = ?", residentID))
}

func (r *deviceTokenRepository) ListForBuilding(ctx context.Context, buildingID uuid.UUID) ([]string, error) {
	return r.pluck(ctx, r.active(ctx).Where("building_id = ?", buildingID))
}

func (r *deviceTokenRepository) ListForRole(ctx context.Context, role string) ([]string, error) {
	q := r.active(ctx)
	if role != models.RoleAll {
		q = q.Where("role = ?", role)
	}
	return r.pluck(ctx, q)
}

func (r *deviceTokenRepository) Disable(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("token IN ?", tokens).
		Updates(map[string]interface{}{"disabled": true, "updated_at": time.Now()}).Error
}

func (r *deviceTokenRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.DeviceToken{}).Where("disabled = ?", false)
}

func (r *deviceTokenRepository) pluck(_ context.Context, q *gorm.DB) ([]string, error) {
	var tokens []string
	err := q.Distinct().Pluck("token", &tokens).Error
	return tokens, err
}
