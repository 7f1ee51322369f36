// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Role is the two-valued user role stored as a single character, matching
// the legacy column encoding ("0" = Admin, "1" = User).
type Role string

const (
	RoleAdmin Role = "0"
	RoleUser  Role = "1"
)

// Label returns the display label for the role.
func (r Role) Label() string {
	if r == RoleAdmin {
		return "Admin"
	}
	return "User"
}

// Valid reports whether the role is one of the two defined values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Caller identifies the authenticated user on whose behalf an operation
// runs. It is threaded explicitly through services and repositories instead
// of being read from ambient request state.
type Caller struct {
	ID   uint
	Role Role
}

// Admin reports whether the caller holds the privileged role.
func (c Caller) Admin() bool {
	return c.Role == RoleAdmin
}

// User represents an account in the bulletin board application.
//
// Deletion is a status transition: DeleteUserID and DeletedAt are stamped
// and the row is kept. The plain *time.Time DeletedAt is deliberate so GORM
// does not apply its own soft-delete scoping; visibility is enforced by the
// repository query policy.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:30;not null" json:"name"`
	Email         string     `gorm:"size:255;not null;index" json:"email"`
	Password      string     `gorm:"size:255;not null" json:"-"`
	Profile       string     `gorm:"size:255" json:"profile"`
	Type          Role       `gorm:"size:1;not null;default:1" json:"type"`
	Phone         string     `gorm:"size:20" json:"phone"`
	Address       string     `gorm:"size:255" json:"address"`
	DOB           *time.Time `json:"dob"`
	CreatedUserID uint       `gorm:"default:1" json:"created_user_id"`
	UpdatedUserID uint       `gorm:"default:1" json:"updated_user_id"`
	DeleteUserID  *uint      `json:"delete_user_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at"`
	IsStaff       bool       `gorm:"default:true" json:"is_staff"`
	IsSuperuser   bool       `gorm:"default:true" json:"is_superuser"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`

	// TypeLabel is the rendered role label; computed on listings, not persisted.
	TypeLabel string `gorm:"-" json:"type_label,omitempty"`
	// CreatedUserName is the resolved creator display name; empty if the
	// creator no longer resolves.
	CreatedUserName string `gorm:"-" json:"created_user_name,omitempty"`
	UpdatedUserName string `gorm:"-" json:"updated_user_name,omitempty"`

	Posts []Post `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// Deleted reports whether the record has been soft-deleted.
func (u *User) Deleted() bool {
	return u.DeleteUserID != nil || u.DeletedAt != nil
}

// SoftDelete stamps the deletion audit fields without removing the record.
func (u *User) SoftDelete(by uint, at time.Time) {
	deleter := by
	u.DeleteUserID = &deleter
	u.DeletedAt = &at
}

// AsCaller converts the account into the caller identity value used by
// query policies and workflows.
func (u *User) AsCaller() Caller {
	return Caller{ID: u.ID, Role: u.Type}
}
