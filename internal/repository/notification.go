package repository

import (
	"context"

	"courtyard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepository defines interface for stored notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	ListActive(ctx context.Context) ([]*models.Notification, error)
	Update(ctx context.Context, n *models.Notification) error
	// FindByReference looks up resident-scoped notifications sharing the
	// (referenceID, type, residentID) dedupe triple.
	FindByReference(ctx context.Context, referenceID uuid.UUID, ntype models.NotificationType, residentID uuid.UUID) ([]*models.Notification, error)
	// ListForResident pages the resident's feed at the database level:
	// notifications targeted at them, their building, or everyone — never
	// role-scoped ones and never private types missing a resident target.
	ListForResident(ctx context.Context, residentID uuid.UUID, buildingID *uuid.UUID, page, size int) ([]*models.Notification, int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListActive(ctx context.Context) ([]*models.Notification, error) {
	var out []*models.Notification
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

func (r *notificationRepository) Update(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Save(n).Error
}

func (r *notificationRepository) FindByReference(
	ctx context.Context,
	referenceID uuid.UUID,
	ntype models.NotificationType,
	residentID uuid.UUID,
) ([]*models.Notification, error) {
	var out []*models.Notification
	err := r.db.WithContext(ctx).
		Where("reference_id = ? AND type = ? AND target_resident_id = ? AND deleted_at IS NULL",
			referenceID, ntype, residentID).
		Find(&out).Error
	return out, err
}

func (r *notificationRepository) ListForResident(
	ctx context.Context,
	residentID uuid.UUID,
	buildingID *uuid.UUID,
	page, size int,
) ([]*models.Notification, int64, error) {
	privateTypes := []models.NotificationType{
		models.TypeCardApproved, models.TypeCardRejected, models.TypeCardFeeReminder,
	}

	q := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("deleted_at IS NULL").
		Where("scope <> ?", models.ScopeRole).
		// Private types are only ever visible to their explicit target.
		Where("NOT (type IN ? AND target_resident_id IS NULL)", privateTypes).
		Where(
			r.db.Where("target_resident_id = ?", residentID).
				Or("target_resident_id IS NULL AND target_building_id IS NULL").
				Or("target_resident_id IS NULL AND target_building_id = ?", buildingID),
		)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []*models.Notification
	err := q.Order("created_at desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&out).Error
	return out, total, err
}
