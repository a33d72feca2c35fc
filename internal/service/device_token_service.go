package service

import (
	"context"
	"errors"
	"log/slog"

	"courtyard/internal/directory"
	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceTokenService handles push token registration and removal.
type DeviceTokenService struct {
	tokenRepo repository.DeviceTokenRepository
	directory *directory.Client
}

type RegisterTokenInput struct {
	ResidentID uuid.UUID
	UserID     uuid.UUID
	BuildingID *uuid.UUID
	Role       string
	Token      string
	Platform   string
	AppVersion string
}

// NewDeviceTokenService builds the service. dir may be nil when no directory
// service is configured; registration then relies on token claims alone.
func NewDeviceTokenService(tokenRepo repository.DeviceTokenRepository, dir *directory.Client) *DeviceTokenService {
	return &DeviceTokenService{tokenRepo: tokenRepo, directory: dir}
}

// Register stores or refreshes a device token. Re-registering an existing
// token re-binds it to the calling resident and clears any disabled flag,
// which is how a recycled token comes back to life after a reinstall.
func (s *DeviceTokenService) Register(ctx context.Context, in RegisterTokenInput) (*models.DeviceToken, error) {
	if in.Token == "" {
		return nil, models.NewValidationError("Token is required")
	}
	switch in.Platform {
	case models.PlatformAndroid, models.PlatformIOS, models.PlatformWeb:
		// valid
	default:
		return nil, models.NewValidationError("Platform must be one of android, ios, web")
	}

	// Older app tokens carry no building or role claims. Fill them from the
	// directory so the token still resolves into building and role audiences;
	// a directory outage must not block registration.
	if (in.BuildingID == nil || in.Role == "") && s.directory != nil && in.UserID != uuid.Nil {
		if resident, err := s.directory.ResidentByUserID(ctx, in.UserID); err != nil {
			middleware.Logger.WarnContext(ctx, "directory lookup failed during token registration",
				slog.String("resident_id", in.ResidentID.String()),
				slog.String("error", err.Error()),
			)
		} else {
			if in.BuildingID == nil {
				in.BuildingID = resident.BuildingID
			}
			if in.Role == "" {
				in.Role = resident.Role
			}
		}
	}

	token := &models.DeviceToken{
		ResidentID: in.ResidentID,
		UserID:     in.UserID,
		BuildingID: in.BuildingID,
		Role:       in.Role,
		Token:      in.Token,
		Platform:   in.Platform,
		AppVersion: in.AppVersion,
		Disabled:   false,
		LastSeenAt: nowFunc(),
	}
	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Unregister removes a token. Only its current owner may remove it; an
// unknown token is a no-op so logout flows stay idempotent.
func (s *DeviceTokenService) Unregister(ctx context.Context, residentID uuid.UUID, token string) error {
	if token == "" {
		return models.NewValidationError("Token is required")
	}

	existing, err := s.tokenRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ResidentID != residentID {
		return models.NewUnauthorizedError("You can only remove your own device tokens")
	}
	return s.tokenRepo.Remove(ctx, token)
}
