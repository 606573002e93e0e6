package models

import (
	"time"

	"github.com/google/uuid"
)

// ComplaintCategory groups complaints for the society office
type ComplaintCategory string

const (
	ComplaintPlumbing    ComplaintCategory = "plumbing"
	ComplaintElectrical  ComplaintCategory = "electrical"
	ComplaintSecurity    ComplaintCategory = "security"
	ComplaintCleanliness ComplaintCategory = "cleanliness"
	ComplaintNoise       ComplaintCategory = "noise"
	ComplaintOther       ComplaintCategory = "other"
)

// ComplaintStatus is the workflow state of a complaint
type ComplaintStatus string

const (
	ComplaintOpen       ComplaintStatus = "open"
	ComplaintInProgress ComplaintStatus = "in-progress"
	ComplaintResolved   ComplaintStatus = "resolved"
	ComplaintRejected   ComplaintStatus = "rejected"
)

var complaintTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintOpen:       {ComplaintInProgress, ComplaintRejected},
	ComplaintInProgress: {ComplaintResolved, ComplaintRejected},
}

// CanTransitionTo reports whether the workflow allows s -> next
func (s ComplaintStatus) CanTransitionTo(next ComplaintStatus) bool {
	for _, allowed := range complaintTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Complaint is raised by a resident about their flat or the society
type Complaint struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	SocietyID uuid.UUID  `json:"societyId" db:"society_id"`
	FlatID    *uuid.UUID `json:"flatId,omitempty" db:"flat_id"`
	RaisedBy  uuid.UUID  `json:"raisedBy" db:"raised_by"`

	Category    ComplaintCategory `json:"category" db:"category"`
	Title       string            `json:"title" db:"title"`
	Description string            `json:"description" db:"description"`

	Status     ComplaintStatus `json:"status" db:"status"`
	Resolution string          `json:"resolution,omitempty" db:"resolution"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty" db:"resolved_at"`
}
