package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationScope classifies the audience of a notification.
type NotificationScope string

const (
	ScopeBroadcast NotificationScope = "BROADCAST"
	ScopeBuilding  NotificationScope = "BUILDING"
	ScopeRole      NotificationScope = "ROLE"
	ScopeResident  NotificationScope = "RESIDENT"
)

// RoleAll is the sentinel role targeting every staff role at once.
const RoleAll = "ALL"

// NotificationType tags the originating domain event.
type NotificationType string

const (
	TypeSystem          NotificationType = "SYSTEM"
	TypeNews            NotificationType = "NEWS"
	TypeCommentCreated  NotificationType = "COMMENT_CREATED"
	TypeCommentReply    NotificationType = "COMMENT_REPLY"
	TypeCardApproved    NotificationType = "CARD_APPROVED"
	TypeCardRejected    NotificationType = "CARD_REJECTED"
	TypeCardFeeReminder NotificationType = "CARD_FEE_REMINDER"
)

// IsPrivate reports whether this type must always target a single resident.
// Private notifications with no resident target are never shown to anyone.
func (t NotificationType) IsPrivate() bool {
	switch t {
	case TypeCardApproved, TypeCardRejected, TypeCardFeeReminder:
		return true
	}
	return false
}

// Notification is a stored announcement with an audience scope and an optional
// reference back to the domain object that produced it.
type Notification struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Type             NotificationType  `gorm:"size:64;not null;index" json:"type"`
	Title            string            `gorm:"size:255;not null" json:"title"`
	Message          string            `gorm:"type:text" json:"message"`
	Scope            NotificationScope `gorm:"size:32;not null;index" json:"scope"`
	TargetBuildingID *uuid.UUID        `gorm:"type:uuid;index" json:"target_building_id,omitempty"`
	TargetRole       string            `gorm:"size:64" json:"target_role,omitempty"`
	TargetResidentID *uuid.UUID        `gorm:"type:uuid;index" json:"target_resident_id,omitempty"`
	ReferenceID      *uuid.UUID        `gorm:"type:uuid;index" json:"reference_id,omitempty"`
	ReferenceType    string            `gorm:"size:64" json:"reference_type,omitempty"`
	ActionURL        string            `gorm:"size:512" json:"action_url,omitempty"`
	IconURL          string            `gorm:"size:512" json:"icon_url,omitempty"`
	DeletedAt        *time.Time        `gorm:"index" json:"-"`
	DeletedBy        *uuid.UUID        `gorm:"type:uuid" json:"-"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when the caller did not set one.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// IsDeleted reports whether the notification was soft-deleted.
func (n *Notification) IsDeleted() bool {
	return n.DeletedAt != nil
}

// ValidateScope enforces the scope/target invariants at create and update time.
// A resident-scoped notification must never carry building or role targets, so
// private events cannot accidentally widen their audience.
func (n *Notification) ValidateScope() error {
	switch n.Scope {
	case ScopeResident:
		if n.TargetResidentID == nil {
			return NewValidationError("RESIDENT notification must have target_resident_id")
		}
		if n.TargetBuildingID != nil || n.TargetRole != "" {
			return NewValidationError("RESIDENT notification cannot have building or role targets")
		}
	case ScopeRole:
		if n.TargetRole == "" {
			return NewValidationError("ROLE notification must have target_role (use 'ALL' for all roles)")
		}
		if n.TargetBuildingID != nil || n.TargetResidentID != nil {
			return NewValidationError("ROLE notification cannot have building or resident targets")
		}
	case ScopeBuilding:
		if n.TargetRole != "" || n.TargetResidentID != nil {
			return NewValidationError("BUILDING notification cannot have role or resident targets")
		}
	case ScopeBroadcast:
		if n.TargetBuildingID != nil || n.TargetRole != "" || n.TargetResidentID != nil {
			return NewValidationError("BROADCAST notification cannot have any targets")
		}
	case "":
		return NewValidationError("Scope is required")
	default:
		return NewValidationError("Unknown notification scope: " + string(n.Scope))
	}
	return nil
}

// AudienceKind enumerates the closed set of delivery audiences.
type AudienceKind int

const (
	AudienceBroadcast AudienceKind = iota
	AudienceBuilding
	AudienceRole
	AudienceResident
)

// Audience is the resolved delivery target of a notification. Exactly one of
// the optional fields is meaningful depending on Kind.
type Audience struct {
	Kind       AudienceKind
	BuildingID uuid.UUID
	Role       string
	ResidentID uuid.UUID
}

// Audience resolves the notification's targets into a delivery audience.
// A resident target always wins, whatever else is populated: resident-scoped
// events stay private even when broader fields were filled in by mistake.
func (n *Notification) Audience() Audience {
	if n.TargetResidentID != nil {
		return Audience{Kind: AudienceResident, ResidentID: *n.TargetResidentID}
	}
	switch n.Scope {
	case ScopeBuilding:
		if n.TargetBuildingID != nil {
			return Audience{Kind: AudienceBuilding, BuildingID: *n.TargetBuildingID}
		}
		return Audience{Kind: AudienceBroadcast}
	case ScopeRole:
		role := n.TargetRole
		if role == "" {
			role = RoleAll
		}
		return Audience{Kind: AudienceRole, Role: role}
	default:
		return Audience{Kind: AudienceBroadcast}
	}
}
