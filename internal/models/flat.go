package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OccupancyStatus is derived from a flat's owner and tenant
type OccupancyStatus string

const (
	OccupancyVacant         OccupancyStatus = "vacant"
	OccupancyOwnerOccupied  OccupancyStatus = "occupied-owner"
	OccupancyTenantOccupied OccupancyStatus = "occupied-tenant"
)

// DeriveOccupancy is the single source of truth for a flat's status. A
// tenant wins over an owner; no owner and no tenant means vacant.
func DeriveOccupancy(ownerID, tenantID *uuid.UUID) (OccupancyStatus, bool) {
	switch {
	case tenantID != nil:
		return OccupancyTenantOccupied, true
	case ownerID != nil:
		return OccupancyOwnerOccupied, false
	default:
		return OccupancyVacant, false
	}
}

// Flat is a single ownable/rentable unit of a building
type Flat struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	BuildingID uuid.UUID `json:"buildingId" db:"building_id"`
	SocietyID  uuid.UUID `json:"societyId" db:"society_id"`

	Number     string          `json:"number" db:"number"`
	Floor      int             `json:"floor" db:"floor"`
	RentAmount decimal.Decimal `json:"rentAmount" db:"rent_amount"`

	OwnerID  *uuid.UUID `json:"ownerId,omitempty" db:"owner_id"`
	TenantID *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`

	OccupancyStatus OccupancyStatus `json:"occupancyStatus" db:"occupancy_status"`
	IsRented        bool            `json:"isRented" db:"is_rented"`
}

// Recompute refreshes the derived occupancy fields from owner and tenant
func (f *Flat) Recompute() {
	f.OccupancyStatus, f.IsRented = DeriveOccupancy(f.OwnerID, f.TenantID)
}

// FlatDetail is a flat with its references resolved
type FlatDetail struct {
	Flat
	Building *Building `json:"building,omitempty"`
	Society  *Society  `json:"society,omitempty"`
	Owner    *User     `json:"owner,omitempty"`
	Tenant   *User     `json:"tenant,omitempty"`
}
