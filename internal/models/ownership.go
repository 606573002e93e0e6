package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the state of an ownership request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// OwnershipRequest asks an admin to move a flat to a new owner
type OwnershipRequest struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	FlatID         uuid.UUID `json:"flatId" db:"flat_id"`
	SocietyID      uuid.UUID `json:"societyId" db:"society_id"`
	CurrentOwnerID uuid.UUID `json:"currentOwnerId" db:"current_owner_id"`

	NewOwnerName  string `json:"newOwnerName" db:"new_owner_name"`
	NewOwnerEmail string `json:"newOwnerEmail" db:"new_owner_email"`
	NewOwnerPhone string `json:"newOwnerPhone" db:"new_owner_phone"`
	Reason        string `json:"reason" db:"reason"`

	Status     RequestStatus `json:"status" db:"status"`
	ReviewedBy *uuid.UUID    `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewNote string        `json:"reviewNote,omitempty" db:"review_note"`
	ReviewedAt *time.Time    `json:"reviewedAt,omitempty" db:"reviewed_at"`
	NewOwnerID *uuid.UUID    `json:"newOwnerId,omitempty" db:"new_owner_id"`
}
