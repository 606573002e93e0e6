package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/config"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/occupancy"
	"github.com/societyhub/society-server/internal/storage"
	"github.com/societyhub/society-server/internal/storage/storagetest"
)

func TestScheduledBilling(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	adminUser := storagetest.User(t, store, models.RoleAdmin)
	ownerUser := storagetest.User(t, store, models.RoleOwner)
	tenantUser := storagetest.User(t, store, models.RoleTenant)
	society := storagetest.Society(t, store, adminUser.ID)
	_, flats := storagetest.Building(t, store, society.ID, 1, 3)

	admin := models.Actor{UserID: adminUser.ID, Role: models.RoleAdmin}
	manager := occupancy.NewManager(store)
	_, err := manager.AssignOwner(ctx, admin, flats[0].ID, ownerUser.ID)
	require.NoError(t, err)
	_, err = manager.AssignTenant(ctx, admin, flats[0].ID, tenantUser.ID)
	require.NoError(t, err)
	_, err = manager.SetRentAmount(ctx, admin, flats[0].ID, decimal.NewFromInt(10000))
	require.NoError(t, err)

	// a quarterly society without flats: nothing due in June
	quarterly := storagetest.Society(t, store, adminUser.ID)
	quarterly.MaintenancePolicy.Frequency = models.FrequencyQuarterly
	require.NoError(t, store.UpdateSociety(ctx, quarterly))

	s := NewBillingScheduler(store, config.BillingConfig{})
	s.now = func() time.Time { return time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC) }

	summary := s.RunMaintenance(ctx)
	assert.Equal(t, Summary{Societies: 2, Created: 1}, summary)

	// already billed this month
	summary = s.RunMaintenance(ctx)
	assert.Equal(t, Summary{Societies: 2}, summary)

	summary = s.RunRent(ctx)
	assert.Equal(t, Summary{Societies: 2, Created: 1}, summary)

	summary = s.RunRent(ctx)
	assert.Equal(t, Summary{Societies: 2, Skipped: 1}, summary)

	// rent for June falls due on July 1st
	s.now = func() time.Time { return time.Date(2025, 7, 2, 2, 0, 0, 0, time.UTC) }
	assert.Equal(t, Summary{}, s.RunOverdue(ctx))

	overdue := models.BillStatusOverdue
	bills, total, err := store.ListBills(ctx, models.BillTypeRent, storage.BillFilters{Status: &overdue}, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, flats[0].ID, bills[0].FlatID)
}

func TestSchedulerLifecycle(t *testing.T) {
	store := storagetest.NewStore(t)

	disabled := NewBillingScheduler(store, config.BillingConfig{})
	require.NoError(t, disabled.Start())
	assert.False(t, disabled.IsRunning())

	s := NewBillingScheduler(store, config.BillingConfig{
		SchedulerEnabled:    true,
		RentSchedule:        "0 6 1 * *",
		MaintenanceSchedule: "30 6 1 * *",
		OverdueSchedule:     "0 2 * * *",
	})
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())

	broken := NewBillingScheduler(store, config.BillingConfig{
		SchedulerEnabled: true,
		RentSchedule:     "every day",
	})
	assert.Error(t, broken.Start())
	assert.False(t, broken.IsRunning())
}
