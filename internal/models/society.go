package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaintenanceFrequency is how often a society bills maintenance
type MaintenanceFrequency string

const (
	FrequencyMonthly   MaintenanceFrequency = "monthly"
	FrequencyQuarterly MaintenanceFrequency = "quarterly"
)

// MaintenancePolicy holds the per-flat maintenance charge of a society
type MaintenancePolicy struct {
	Frequency     MaintenanceFrequency `json:"frequency" db:"maintenance_frequency"`
	AmountPerFlat decimal.Decimal      `json:"amountPerFlat" db:"maintenance_amount"`
}

// BillsIn reports whether maintenance is due for the given month
func (p MaintenancePolicy) BillsIn(month BillingMonth) bool {
	if p.Frequency == FrequencyQuarterly {
		return (month.Month()-1)%3 == 0
	}
	return true
}

// Society represents a housing society administered by one admin
type Society struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	AdminID uuid.UUID `json:"adminId" db:"admin_id"`

	Name               string `json:"name" db:"name"`
	RegistrationNumber string `json:"registrationNumber" db:"registration_number"`
	Address            string `json:"address" db:"address"`
	City               string `json:"city" db:"city"`

	MaintenancePolicy MaintenancePolicy `json:"maintenancePolicy"`
}

// Building belongs to exactly one society
type Building struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	SocietyID   uuid.UUID `json:"societyId" db:"society_id"`
	Name        string    `json:"name" db:"name"`
	TotalFloors int       `json:"totalFloors" db:"total_floors"`
	TotalFlats  int       `json:"totalFlats" db:"total_flats"`
}
