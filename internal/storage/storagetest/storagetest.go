// Package storagetest opens migrated SQLite stores and seeds fixtures for
// package tests.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// NewStore returns a migrated store backed by a temporary SQLite file
func NewStore(t testing.TB) *storage.SQLStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "society.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// User creates an active user with the given role
func User(t testing.TB, store storage.Store, role models.Role) *models.User {
	t.Helper()

	id := uuid.New()
	user := &models.User{
		ID:           id,
		Name:         string(role) + " " + id.String()[:8],
		Email:        fmt.Sprintf("%s-%s@example.com", role, id.String()[:8]),
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

// Society creates a society administered by adminID with monthly maintenance
func Society(t testing.TB, store storage.Store, adminID uuid.UUID) *models.Society {
	t.Helper()

	id := uuid.New()
	society := &models.Society{
		ID:                 id,
		AdminID:            adminID,
		Name:               "Society " + id.String()[:8],
		RegistrationNumber: "REG-" + id.String(),
		City:               "Pune",
		MaintenancePolicy: models.MaintenancePolicy{
			Frequency:     models.FrequencyMonthly,
			AmountPerFlat: decimal.NewFromInt(1500),
		},
	}
	require.NoError(t, store.CreateSociety(context.Background(), society))
	return society
}

// Building creates a building with its flats numbered floor*100+n
func Building(t testing.TB, store storage.Store, societyID uuid.UUID, floors, perFloor int) (*models.Building, []*models.Flat) {
	t.Helper()

	building := &models.Building{
		SocietyID:   societyID,
		Name:        "Tower",
		TotalFloors: floors,
		TotalFlats:  floors * perFloor,
	}
	require.NoError(t, store.CreateBuilding(context.Background(), building))

	var flats []*models.Flat
	for floor := 1; floor <= floors; floor++ {
		for n := 1; n <= perFloor; n++ {
			flats = append(flats, &models.Flat{
				BuildingID: building.ID,
				SocietyID:  societyID,
				Number:     fmt.Sprintf("%d%02d", floor, n),
				Floor:      floor,
			})
		}
	}
	require.NoError(t, store.CreateFlats(context.Background(), flats))
	return building, flats
}
