package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLog is an audit entry written alongside every core mutation
type ActivityLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	SocietyID *uuid.UUID `json:"societyId,omitempty" db:"society_id"`
	FlatID    *uuid.UUID `json:"flatId,omitempty" db:"flat_id"`
	ActorID   *uuid.UUID `json:"actorId,omitempty" db:"actor_id"`

	Type        ActivityType  `json:"type" db:"type"`
	Level       ActivityLevel `json:"level" db:"level"`
	Description string        `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// ActivityType represents activity types
type ActivityType string

const (
	// Occupancy
	ActivityFlatsGenerated ActivityType = "FLATS_GENERATED"
	ActivityOwnerAssigned  ActivityType = "OWNER_ASSIGNED"
	ActivityOwnerRemoved   ActivityType = "OWNER_REMOVED"
	ActivityTenantAssigned ActivityType = "TENANT_ASSIGNED"
	ActivityTenantRemoved  ActivityType = "TENANT_REMOVED"

	// Ownership transfer
	ActivityTransferSubmitted ActivityType = "TRANSFER_SUBMITTED"
	ActivityTransferApproved  ActivityType = "TRANSFER_APPROVED"
	ActivityTransferRejected  ActivityType = "TRANSFER_REJECTED"
	ActivityAccountCreated    ActivityType = "ACCOUNT_PROVISIONED"

	// Billing
	ActivityRentGenerated        ActivityType = "RENT_GENERATED"
	ActivityMaintenanceGenerated ActivityType = "MAINTENANCE_GENERATED"
	ActivityBillPaid             ActivityType = "BILL_PAID"
	ActivityRentOverdue          ActivityType = "RENT_OVERDUE"
)

// ActivityLevel represents activity severity levels
type ActivityLevel string

const (
	ActivityLevelInfo    ActivityLevel = "INFO"
	ActivityLevelWarning ActivityLevel = "WARNING"
)
