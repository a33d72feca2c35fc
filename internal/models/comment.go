package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment represents a node in a post's comment tree. A nil ParentID marks a
// root comment attached directly to the post. Deleted is an explicit soft-delete
// flag: content stays in storage so child linkage survives, and the tree filter
// decides what a viewer actually sees.
type Comment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"post_id"`
	ParentID   *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	ResidentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"resident_id"`
	Content    string     `gorm:"type:text" json:"content,omitempty"`
	ImageURL   string     `gorm:"size:512" json:"image_url,omitempty"`
	VideoURL   string     `gorm:"size:512" json:"video_url,omitempty"`
	Deleted    bool       `gorm:"not null;default:false;index" json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when the caller did not set one.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsRoot reports whether the comment attaches directly to its post.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// HasBody reports whether the comment carries any renderable content.
func (c *Comment) HasBody() bool {
	return c.Content != "" || c.ImageURL != "" || c.VideoURL != ""
}
