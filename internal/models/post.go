package models

import (
	"time"
)

// PostStatus is the two-valued post status stored as a single character,
// matching the legacy column encoding ("0" = inactive, "1" = active).
type PostStatus string

const (
	PostStatusInactive PostStatus = "0"
	PostStatusActive   PostStatus = "1"
)

// Label returns the display label for the status.
func (s PostStatus) Label() string {
	if s == PostStatusActive {
		return "active"
	}
	return "inactive"
}

// Valid reports whether the status is one of the two defined values.
func (s PostStatus) Valid() bool {
	return s == PostStatusActive || s == PostStatusInactive
}

// Post represents a bulletin board entry. Soft-delete semantics are the same
// as User: DeleteUserID and DeletedAt are stamped and the row survives.
type Post struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Description   string     `gorm:"size:255;not null" json:"description"`
	Status        PostStatus `gorm:"size:1;not null;default:1" json:"status"`
	UserID        *uint      `gorm:"index" json:"user_id"`
	User          *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedUserID uint       `gorm:"not null;index" json:"created_user_id"`
	UpdatedUserID uint       `gorm:"not null" json:"updated_user_id"`
	DeleteUserID  *uint      `json:"delete_user_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at"`

	// Resolved display names for the detail payload; not persisted.
	CreatedUserName string `gorm:"-" json:"created_user_name,omitempty"`
	UpdatedUserName string `gorm:"-" json:"updated_user_name,omitempty"`
}

// Deleted reports whether the record has been soft-deleted.
func (p *Post) Deleted() bool {
	return p.DeleteUserID != nil || p.DeletedAt != nil
}

// SoftDelete stamps the deletion audit fields without removing the record.
func (p *Post) SoftDelete(by uint, at time.Time) {
	deleter := by
	p.DeleteUserID = &deleter
	p.DeletedAt = &at
}
