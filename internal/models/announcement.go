package models

import (
	"time"

	"github.com/google/uuid"
)

// Audience selects who sees an announcement
type Audience string

const (
	AudienceAll     Audience = "all"
	AudienceOwners  Audience = "owners"
	AudienceTenants Audience = "tenants"
)

// Announcement is a notice posted by a society admin
type Announcement struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	SocietyID uuid.UUID `json:"societyId" db:"society_id"`
	CreatedBy uuid.UUID `json:"createdBy" db:"created_by"`

	Title    string   `json:"title" db:"title"`
	Body     string   `json:"body" db:"body"`
	Audience Audience `json:"audience" db:"audience"`

	ValidFrom  time.Time  `json:"validFrom" db:"valid_from"`
	ValidUntil *time.Time `json:"validUntil,omitempty" db:"valid_until"`
}

// VisibleTo reports whether a user with role r should see the announcement at t
func (a *Announcement) VisibleTo(r Role, t time.Time) bool {
	if t.Before(a.ValidFrom) || (a.ValidUntil != nil && t.After(*a.ValidUntil)) {
		return false
	}
	switch a.Audience {
	case AudienceOwners:
		return r == RoleOwner || r == RoleAdmin
	case AudienceTenants:
		return r == RoleTenant || r == RoleAdmin
	default:
		return true
	}
}
