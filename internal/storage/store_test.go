package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
	"github.com/societyhub/society-server/internal/storage/storagetest"
)

func TestMigrationVersion(t *testing.T) {
	store := storagetest.NewStore(t)

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestUserEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	user := &models.User{Name: "Asha", Email: " Asha@Example.com ", PasswordHash: "x", Role: models.RoleOwner, IsActive: true}
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUserByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.IsActive)

	dup := &models.User{Name: "Other", Email: "asha@example.com", PasswordHash: "x", Role: models.RoleTenant}
	err = store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFlatOccupancyIsDerived(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	owner := storagetest.User(t, store, models.RoleOwner)
	tenant := storagetest.User(t, store, models.RoleTenant)
	society := storagetest.Society(t, store, admin.ID)
	_, flats := storagetest.Building(t, store, society.ID, 1, 2)

	flat := flats[0]
	flat.OwnerID = &owner.ID
	flat.OccupancyStatus = models.OccupancyVacant
	require.NoError(t, store.UpdateFlatOccupancy(ctx, flat))

	got, err := store.GetFlat(ctx, flat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyOwnerOccupied, got.OccupancyStatus)
	assert.False(t, got.IsRented)

	got.TenantID = &tenant.ID
	require.NoError(t, store.UpdateFlatOccupancy(ctx, got))

	detail, err := store.GetFlatDetail(ctx, flat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyTenantOccupied, detail.OccupancyStatus)
	assert.True(t, detail.IsRented)
	require.NotNil(t, detail.Owner)
	require.NotNil(t, detail.Tenant)
	assert.Equal(t, owner.ID, detail.Owner.ID)
	assert.Equal(t, tenant.ID, detail.Tenant.ID)
	assert.Equal(t, society.ID, detail.Society.ID)

	rented, err := store.ListFlats(ctx, storage.FlatFilters{AdminID: &admin.ID, RentedOnly: true})
	require.NoError(t, err)
	require.Len(t, rented, 1)
	assert.Equal(t, flat.ID, rented[0].ID)

	// one owner per flat at most, and one flat per owner
	second := flats[1]
	second.OwnerID = &owner.ID
	err = store.UpdateFlatOccupancy(ctx, second)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestInsertBillsSkipsExisting(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	society := storagetest.Society(t, store, admin.ID)
	_, flats := storagetest.Building(t, store, society.ID, 1, 3)
	month := models.MonthOf(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	newBills := func(fs []*models.Flat) []*models.Bill {
		var bills []*models.Bill
		for _, f := range fs {
			bills = append(bills, &models.Bill{
				FlatID:       f.ID,
				SocietyID:    society.ID,
				BillingMonth: month,
				Amount:       decimal.RequireFromString("1500.50"),
				DueDate:      month.LastDay(),
			})
		}
		return bills
	}

	n, err := store.InsertBills(ctx, models.BillTypeMaintenance, newBills(flats[:2]))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.InsertBills(ctx, models.BillTypeMaintenance, newBills(flats))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	billed, err := store.BilledFlatIDs(ctx, models.BillTypeMaintenance, month, storage.FlatFilters{SocietyID: &society.ID})
	require.NoError(t, err)
	assert.Len(t, billed, 3)

	billed, err = store.BilledFlatIDs(ctx, models.BillTypeRent, month, storage.FlatFilters{SocietyID: &society.ID})
	require.NoError(t, err)
	assert.Empty(t, billed)

	bills, count, err := store.ListBills(ctx, models.BillTypeMaintenance, storage.BillFilters{AdminID: &admin.ID, Month: &month}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.Len(t, bills, 3)
	assert.True(t, bills[0].Amount.Equal(decimal.RequireFromString("1500.50")))
	assert.Equal(t, models.BillTypeMaintenance, bills[0].Type)
	assert.Equal(t, month, bills[0].BillingMonth)
}

func TestMarkBillPaidOnce(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	tenant := storagetest.User(t, store, models.RoleTenant)
	society := storagetest.Society(t, store, admin.ID)
	_, flats := storagetest.Building(t, store, society.ID, 1, 1)
	month := models.MonthOf(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	bill := &models.Bill{
		FlatID:       flats[0].ID,
		SocietyID:    society.ID,
		BilledTo:     &tenant.ID,
		BillingMonth: month,
		Amount:       decimal.NewFromInt(12000),
		DueDate:      month.Start().AddDate(0, 0, 30),
	}
	_, err := store.InsertBills(ctx, models.BillTypeRent, []*models.Bill{bill})
	require.NoError(t, err)

	paidOn := time.Now().UTC()
	bill.PaidOn = &paidOn
	bill.PaidBy = &tenant.ID
	bill.PaymentMethod = "upi"
	bill.TransactionID = "txn-1"
	require.NoError(t, store.MarkBillPaid(ctx, bill))

	got, err := store.GetBill(ctx, models.BillTypeRent, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPaid, got.Status)
	assert.Equal(t, "txn-1", got.TransactionID)
	require.NotNil(t, got.PaidBy)
	assert.Equal(t, tenant.ID, *got.PaidBy)

	err = store.MarkBillPaid(ctx, got)
	assert.ErrorIs(t, err, storage.ErrStaleState)
}

func TestMarkRentOverdue(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	society := storagetest.Society(t, store, admin.ID)
	_, flats := storagetest.Building(t, store, society.ID, 1, 2)
	month := models.MonthOf(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))

	var bills []*models.Bill
	for _, f := range flats {
		bills = append(bills, &models.Bill{
			FlatID:       f.ID,
			SocietyID:    society.ID,
			BillingMonth: month,
			Amount:       decimal.NewFromInt(9000),
			DueDate:      month.Start().AddDate(0, 0, 30),
		})
	}
	_, err := store.InsertBills(ctx, models.BillTypeRent, bills)
	require.NoError(t, err)

	paidOn := time.Now().UTC()
	bills[0].PaidOn = &paidOn
	require.NoError(t, store.MarkBillPaid(ctx, bills[0]))

	n, err := store.MarkRentOverdue(ctx, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = store.MarkRentOverdue(ctx, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetBill(ctx, models.BillTypeRent, bills[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusOverdue, got.Status)
}

func TestOwnershipRequestReview(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	owner := storagetest.User(t, store, models.RoleOwner)
	society := storagetest.Society(t, store, admin.ID)
	_, flats := storagetest.Building(t, store, society.ID, 1, 1)

	req := &models.OwnershipRequest{
		FlatID:         flats[0].ID,
		SocietyID:      society.ID,
		CurrentOwnerID: owner.ID,
		NewOwnerName:   "Ravi",
		NewOwnerEmail:  "Ravi@Example.com",
	}
	require.NoError(t, store.CreateOwnershipRequest(ctx, req))
	assert.Equal(t, "ravi@example.com", req.NewOwnerEmail)

	pending, err := store.HasPendingOwnershipRequest(ctx, flats[0].ID)
	require.NoError(t, err)
	assert.True(t, pending)

	again := &models.OwnershipRequest{
		FlatID:         flats[0].ID,
		SocietyID:      society.ID,
		CurrentOwnerID: owner.ID,
		NewOwnerName:   "Someone",
		NewOwnerEmail:  "someone@example.com",
	}
	assert.ErrorIs(t, store.CreateOwnershipRequest(ctx, again), storage.ErrDuplicateKey)

	now := time.Now().UTC()
	req.Status = models.RequestRejected
	req.ReviewedBy = &admin.ID
	req.ReviewedAt = &now
	req.ReviewNote = "documents missing"
	require.NoError(t, store.ReviewOwnershipRequest(ctx, req))
	assert.ErrorIs(t, store.ReviewOwnershipRequest(ctx, req), storage.ErrStaleState)

	status := models.RequestRejected
	list, count, err := store.ListOwnershipRequests(ctx, storage.RequestFilters{AdminID: &admin.ID, Status: &status}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, list, 1)
	assert.Equal(t, "documents missing", list[0].ReviewNote)

	// the flat is free for a new request once the old one is closed
	require.NoError(t, store.CreateOwnershipRequest(ctx, again))
}

func TestComplaintStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	owner := storagetest.User(t, store, models.RoleOwner)
	society := storagetest.Society(t, store, admin.ID)

	c := &models.Complaint{
		SocietyID: society.ID,
		RaisedBy:  owner.ID,
		Category:  models.ComplaintPlumbing,
		Title:     "Leaking pipe",
	}
	require.NoError(t, store.CreateComplaint(ctx, c))
	assert.Equal(t, models.ComplaintOpen, c.Status)

	c.Status = models.ComplaintInProgress
	require.NoError(t, store.UpdateComplaintStatus(ctx, c, models.ComplaintOpen))

	c.Status = models.ComplaintRejected
	assert.ErrorIs(t, store.UpdateComplaintStatus(ctx, c, models.ComplaintOpen), storage.ErrStaleState)

	got, err := store.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintInProgress, got.Status)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	society := storagetest.Society(t, store, admin.ID)

	boom := errors.New("boom")
	err := storage.WithTx(ctx, store, func(tx storage.Store) error {
		entry := &models.ActivityLog{
			SocietyID:   &society.ID,
			Type:        models.ActivityFlatsGenerated,
			Description: "flats generated",
		}
		require.NoError(t, tx.CreateActivityLog(ctx, entry))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, count, err := store.ListActivityLogs(ctx, storage.ActivityFilters{SocietyID: &society.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	err = storage.WithTx(ctx, store, func(tx storage.Store) error {
		return tx.CreateActivityLog(ctx, &models.ActivityLog{
			SocietyID:   &society.ID,
			Type:        models.ActivityFlatsGenerated,
			Description: "flats generated",
			Details:     models.Variables{"count": 7},
		})
	})
	require.NoError(t, err)

	entries, count, err := store.ListActivityLogs(ctx, storage.ActivityFilters{SocietyID: &society.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityLevelInfo, entries[0].Level)
	assert.EqualValues(t, 7, entries[0].Details["count"])
}
