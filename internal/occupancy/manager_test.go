package occupancy_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/occupancy"
	"github.com/societyhub/society-server/internal/storage"
	"github.com/societyhub/society-server/internal/storage/storagetest"
)

type fixture struct {
	store   *storage.SQLStore
	manager *occupancy.Manager
	admin   models.Actor
	society *models.Society
}

func newFixture(t *testing.T) *fixture {
	store := storagetest.NewStore(t)
	admin := storagetest.User(t, store, models.RoleAdmin)
	return &fixture{
		store:   store,
		manager: occupancy.NewManager(store),
		admin:   models.Actor{UserID: admin.ID, Role: models.RoleAdmin},
		society: storagetest.Society(t, store, admin.ID),
	}
}

func (f *fixture) building(t *testing.T, floors, flats int) (*models.Building, []*models.Flat) {
	building := &models.Building{SocietyID: f.society.ID, Name: "A", TotalFloors: floors, TotalFlats: flats}
	created, err := f.manager.CreateBuilding(context.Background(), f.admin, building)
	require.NoError(t, err)
	return building, created
}

func TestCreateBuildingGeneratesFlats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	building, flats := f.building(t, 3, 7)
	require.Len(t, flats, 7)

	stored, err := f.manager.ListFlats(ctx, f.admin, f.society.ID, &building.ID)
	require.NoError(t, err)

	var numbers []string
	for _, flat := range stored {
		numbers = append(numbers, flat.Number)
		assert.Equal(t, models.OccupancyVacant, flat.OccupancyStatus)
	}
	assert.Equal(t, []string{"101", "102", "103", "201", "202", "203", "301"}, numbers)

	// a second generation for the same building is rejected and adds nothing
	_, err = f.manager.CreateFlatsForBuilding(ctx, f.admin, building.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	count, err := f.store.CountFlats(ctx, building.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	entries, _, err := f.store.ListActivityLogs(ctx, storage.ActivityFilters{SocietyID: &f.society.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityFlatsGenerated, entries[0].Type)
}

func TestCreateFlatsForBuilding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	building := &models.Building{SocietyID: f.society.ID, Name: "B", TotalFloors: 2, TotalFlats: 4}
	require.NoError(t, f.store.CreateBuilding(ctx, building))

	flats, err := f.manager.CreateFlatsForBuilding(ctx, f.admin, building.ID)
	require.NoError(t, err)
	assert.Len(t, flats, 4)

	_, err = f.manager.CreateFlatsForBuilding(ctx, f.admin, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	stranger := storagetest.User(t, f.store, models.RoleAdmin)
	_, err = f.manager.CreateFlatsForBuilding(ctx, models.Actor{UserID: stranger.ID, Role: models.RoleAdmin}, building.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestCreateBuildingRejectsEmptyLayout(t *testing.T) {
	f := newFixture(t)

	building := &models.Building{SocietyID: f.society.ID, Name: "Empty", TotalFloors: 3, TotalFlats: 0}
	_, err := f.manager.CreateBuilding(context.Background(), f.admin, building)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestOneFlatPerOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, flats := f.building(t, 1, 2)
	owner := storagetest.User(t, f.store, models.RoleOwner)

	flat, err := f.manager.AssignOwner(ctx, f.admin, flats[0].ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyOwnerOccupied, flat.OccupancyStatus)

	// reassigning the same owner to the same flat is a no-op
	_, err = f.manager.AssignOwner(ctx, f.admin, flats[0].ID, owner.ID)
	require.NoError(t, err)

	_, err = f.manager.AssignOwner(ctx, f.admin, flats[1].ID, owner.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	owned, err := f.manager.GetFlatsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, flats[0].ID, owned[0].ID)

	user, err := f.store.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, user.SocietyID)
	assert.Equal(t, f.society.ID, *user.SocietyID)
}

func TestAssignOwnerChecksRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, flats := f.building(t, 1, 1)
	tenant := storagetest.User(t, f.store, models.RoleTenant)

	_, err := f.manager.AssignOwner(ctx, f.admin, flats[0].ID, tenant.ID)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = f.manager.AssignOwner(ctx, f.admin, flats[0].ID, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOccupancyTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, flats := f.building(t, 1, 1)
	flatID := flats[0].ID

	owner := storagetest.User(t, f.store, models.RoleOwner)
	tenant := storagetest.User(t, f.store, models.RoleTenant)
	ownerActor := models.Actor{UserID: owner.ID, Role: models.RoleOwner}

	_, err := f.manager.AssignOwner(ctx, f.admin, flatID, owner.ID)
	require.NoError(t, err)

	// the owner may bring in a tenant
	flat, err := f.manager.AssignTenant(ctx, ownerActor, flatID, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyTenantOccupied, flat.OccupancyStatus)
	assert.True(t, flat.IsRented)

	other := storagetest.User(t, f.store, models.RoleTenant)
	_, err = f.manager.AssignTenant(ctx, f.admin, flatID, other.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	flat, err = f.manager.RemoveOwner(ctx, f.admin, flatID)
	require.NoError(t, err)
	assert.Nil(t, flat.OwnerID)
	assert.Equal(t, models.OccupancyTenantOccupied, flat.OccupancyStatus)

	flat, err = f.manager.RemoveTenant(ctx, f.admin, flatID)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyVacant, flat.OccupancyStatus)
	assert.False(t, flat.IsRented)

	_, err = f.manager.RemoveTenant(ctx, f.admin, flatID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	stored, err := f.store.GetFlat(ctx, flatID)
	require.NoError(t, err)
	status, rented := models.DeriveOccupancy(stored.OwnerID, stored.TenantID)
	assert.Equal(t, status, stored.OccupancyStatus)
	assert.Equal(t, rented, stored.IsRented)

	removed := models.ActivityOwnerRemoved
	entries, _, err := f.store.ListActivityLogs(ctx, storage.ActivityFilters{FlatID: &flatID, Type: &removed}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityLevelWarning, entries[0].Level)
}

func TestConcurrentOwnerAndTenantAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, flats := f.building(t, 1, 1)
	flatID := flats[0].ID

	owner := storagetest.User(t, f.store, models.RoleOwner)
	tenant := storagetest.User(t, f.store, models.RoleTenant)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.manager.AssignOwner(ctx, f.admin, flatID, owner.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.manager.AssignTenant(ctx, f.admin, flatID, tenant.ID)
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored, err := f.store.GetFlat(ctx, flatID)
	require.NoError(t, err)
	require.NotNil(t, stored.OwnerID)
	require.NotNil(t, stored.TenantID)
	assert.Equal(t, owner.ID, *stored.OwnerID)
	assert.Equal(t, tenant.ID, *stored.TenantID)
	assert.Equal(t, models.OccupancyTenantOccupied, stored.OccupancyStatus)
}

func TestRemoveTenantFallsBackToOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, flats := f.building(t, 1, 1)
	flatID := flats[0].ID

	owner := storagetest.User(t, f.store, models.RoleOwner)
	tenant := storagetest.User(t, f.store, models.RoleTenant)

	_, err := f.manager.AssignOwner(ctx, f.admin, flatID, owner.ID)
	require.NoError(t, err)
	_, err = f.manager.AssignTenant(ctx, f.admin, flatID, tenant.ID)
	require.NoError(t, err)

	flat, err := f.manager.RemoveTenant(ctx, f.admin, flatID)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyOwnerOccupied, flat.OccupancyStatus)
	assert.False(t, flat.IsRented)
}

func TestTenancyAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, flats := f.building(t, 1, 2)

	owner := storagetest.User(t, f.store, models.RoleOwner)
	tenant := storagetest.User(t, f.store, models.RoleTenant)
	_, err := f.manager.AssignOwner(ctx, f.admin, flats[0].ID, owner.ID)
	require.NoError(t, err)

	// an owner cannot place tenants in someone else's flat
	ownerActor := models.Actor{UserID: owner.ID, Role: models.RoleOwner}
	_, err = f.manager.AssignTenant(ctx, ownerActor, flats[1].ID, tenant.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// tenants never manage tenancy
	tenantActor := models.Actor{UserID: tenant.ID, Role: models.RoleTenant}
	_, err = f.manager.AssignTenant(ctx, tenantActor, flats[0].ID, tenant.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.manager.AssignTenant(ctx, f.admin, flats[0].ID, tenant.ID)
	require.NoError(t, err)

	// one flat per tenant
	_, err = f.manager.AssignTenant(ctx, f.admin, flats[1].ID, tenant.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestFlatQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, flats := f.building(t, 1, 2)

	owner := storagetest.User(t, f.store, models.RoleOwner)
	tenant := storagetest.User(t, f.store, models.RoleTenant)
	_, err := f.manager.AssignOwner(ctx, f.admin, flats[0].ID, owner.ID)
	require.NoError(t, err)
	_, err = f.manager.AssignTenant(ctx, f.admin, flats[0].ID, tenant.ID)
	require.NoError(t, err)

	detail, err := f.manager.GetUserFlat(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, flats[0].ID, detail.ID)
	require.NotNil(t, detail.Owner)
	assert.Equal(t, owner.ID, detail.Owner.ID)

	_, err = f.manager.GetUserFlat(ctx, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.manager.GetFlat(ctx, models.Actor{UserID: tenant.ID, Role: models.RoleTenant}, flats[0].ID)
	require.NoError(t, err)

	_, err = f.manager.GetFlat(ctx, models.Actor{UserID: tenant.ID, Role: models.RoleTenant}, flats[1].ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	flat, err := f.manager.SetRentAmount(ctx, models.Actor{UserID: owner.ID, Role: models.RoleOwner}, flats[0].ID, decimal.NewFromInt(15000))
	require.NoError(t, err)
	assert.True(t, flat.RentAmount.Equal(decimal.NewFromInt(15000)))

	_, err = f.manager.SetRentAmount(ctx, f.admin, flats[0].ID, decimal.NewFromInt(-1))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}
