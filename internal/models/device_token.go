package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device platforms.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// DeviceToken is a resident's registered push token. Disabled is flipped on
// when the push gateway reports a permanent delivery failure for the token;
// disabled tokens are excluded from every audience resolution.
type DeviceToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;index" json:"-"`
	ResidentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"-"`
	BuildingID *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	Role       string     `gorm:"size:64;index" json:"-"`
	Token      string     `gorm:"size:512;uniqueIndex;not null" json:"-"`
	Platform   string     `gorm:"size:32" json:"platform"`
	AppVersion string     `gorm:"size:64" json:"app_version,omitempty"`
	Disabled   bool       `gorm:"not null;default:false;index" json:"-"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when the caller did not set one.
func (t *DeviceToken) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
