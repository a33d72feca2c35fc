package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post lifecycle statuses.
const (
	PostStatusActive = "ACTIVE"
	PostStatusSold   = "SOLD"
	PostStatusHidden = "HIDDEN"
)

// Post represents a marketplace post published by a resident.
type Post struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ResidentID    uuid.UUID `gorm:"type:uuid;not null;index" json:"resident_id"`
	BuildingID    uuid.UUID `gorm:"type:uuid;index" json:"building_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Content       string    `gorm:"type:text" json:"content"`
	Price         int64     `json:"price"`
	ImageURL      string    `gorm:"size:512" json:"image_url,omitempty"`
	CommentsCount int       `gorm:"not null;default:0" json:"comments_count"`
	Status        string    `gorm:"size:32;not null;default:ACTIVE" json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when the caller did not set one.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
