package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is fixed when a user registers
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleTenant:
		return true
	}
	return false
}

// User represents a system user
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Phone string `json:"phone" db:"phone"`

	PasswordHash string `json:"-" db:"password_hash"`

	Role     Role `json:"role" db:"role"`
	IsActive bool `json:"isActive" db:"is_active"`

	SocietyID *uuid.UUID `json:"societyId,omitempty" db:"society_id"`
}

// Actor is the authenticated caller of a core operation. It scopes every
// read and write: admins act inside the societies they administer, owners
// and tenants inside the flats they occupy.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the actor has the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
