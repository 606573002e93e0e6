package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyhub/society-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStaleState is returned by conditional updates whose precondition no
	// longer holds (bill already paid, request already reviewed).
	ErrStaleState = errors.New("stale state")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context, filters UserFilters, limit, offset int) ([]*models.User, int64, error)

	// Society methods
	CreateSociety(ctx context.Context, society *models.Society) error
	GetSociety(ctx context.Context, id uuid.UUID) (*models.Society, error)
	UpdateSociety(ctx context.Context, society *models.Society) error
	DeleteSociety(ctx context.Context, id uuid.UUID) error
	ListSocieties(ctx context.Context, adminID *uuid.UUID, limit, offset int) ([]*models.Society, int64, error)

	// Building methods
	CreateBuilding(ctx context.Context, building *models.Building) error
	GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error)
	ListBuildings(ctx context.Context, societyID uuid.UUID) ([]*models.Building, error)

	// Flat methods
	CreateFlats(ctx context.Context, flats []*models.Flat) error
	CountFlats(ctx context.Context, buildingID uuid.UUID) (int, error)
	GetFlat(ctx context.Context, id uuid.UUID) (*models.Flat, error)
	GetFlatDetail(ctx context.Context, id uuid.UUID) (*models.FlatDetail, error)
	UpdateFlatOccupancy(ctx context.Context, flat *models.Flat) error
	UpdateFlatRent(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	ListFlats(ctx context.Context, filters FlatFilters) ([]*models.Flat, error)

	// Bill methods
	InsertBills(ctx context.Context, billType models.BillType, bills []*models.Bill) (int64, error)
	BilledFlatIDs(ctx context.Context, billType models.BillType, month models.BillingMonth, filters FlatFilters) (map[uuid.UUID]bool, error)
	GetBill(ctx context.Context, billType models.BillType, id uuid.UUID) (*models.Bill, error)
	MarkBillPaid(ctx context.Context, bill *models.Bill) error
	MarkRentOverdue(ctx context.Context, asOf time.Time) (int64, error)
	ListBills(ctx context.Context, billType models.BillType, filters BillFilters, limit, offset int) ([]*models.Bill, int64, error)

	// Ownership request methods
	CreateOwnershipRequest(ctx context.Context, req *models.OwnershipRequest) error
	GetOwnershipRequest(ctx context.Context, id uuid.UUID) (*models.OwnershipRequest, error)
	HasPendingOwnershipRequest(ctx context.Context, flatID uuid.UUID) (bool, error)
	ReviewOwnershipRequest(ctx context.Context, req *models.OwnershipRequest) error
	ListOwnershipRequests(ctx context.Context, filters RequestFilters, limit, offset int) ([]*models.OwnershipRequest, int64, error)

	// Complaint methods
	CreateComplaint(ctx context.Context, complaint *models.Complaint) error
	GetComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	UpdateComplaintStatus(ctx context.Context, complaint *models.Complaint, from models.ComplaintStatus) error
	ListComplaints(ctx context.Context, filters ComplaintFilters, limit, offset int) ([]*models.Complaint, int64, error)

	// Announcement methods
	CreateAnnouncement(ctx context.Context, a *models.Announcement) error
	ListAnnouncements(ctx context.Context, societyID uuid.UUID, limit, offset int) ([]*models.Announcement, int64, error)

	// Activity log methods
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
	ListActivityLogs(ctx context.Context, filters ActivityFilters, limit, offset int) ([]*models.ActivityLog, int64, error)

	// Close the store
	Close() error
}

// UserFilters represents filters for users
type UserFilters struct {
	SocietyID *uuid.UUID
	Role      *models.Role
}

// FlatFilters represents filters for flats. AdminID restricts results to
// societies administered by that user.
type FlatFilters struct {
	SocietyID  *uuid.UUID
	AdminID    *uuid.UUID
	BuildingID *uuid.UUID
	OwnerID    *uuid.UUID
	TenantID   *uuid.UUID
	RentedOnly bool
	OwnedOnly  bool
}

// BillFilters represents filters for bills
type BillFilters struct {
	SocietyID *uuid.UUID
	AdminID   *uuid.UUID
	FlatID    *uuid.UUID
	Month     *models.BillingMonth
	Status    *models.BillStatus
}

// RequestFilters represents filters for ownership requests
type RequestFilters struct {
	AdminID        *uuid.UUID
	CurrentOwnerID *uuid.UUID
	FlatID         *uuid.UUID
	Status         *models.RequestStatus
}

// ComplaintFilters represents filters for complaints
type ComplaintFilters struct {
	SocietyID *uuid.UUID
	RaisedBy  *uuid.UUID
	Status    *models.ComplaintStatus
}

// ActivityFilters represents filters for activity logs
type ActivityFilters struct {
	SocietyID *uuid.UUID
	FlatID    *uuid.UUID
	Type      *models.ActivityType
	StartTime *time.Time
	EndTime   *time.Time
}

// WithTx runs fn inside a transaction on store. The transaction commits when
// fn returns nil and rolls back otherwise.
func WithTx(ctx context.Context, store Store, fn func(tx Store) error) (err error) {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
