package access_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
	"github.com/societyhub/society-server/internal/storage/storagetest"
)

func TestAdminSociety(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	admin := storagetest.User(t, store, models.RoleAdmin)
	other := storagetest.User(t, store, models.RoleAdmin)
	society := storagetest.Society(t, store, admin.ID)

	got, err := access.AdminSociety(ctx, store, models.Actor{UserID: admin.ID, Role: models.RoleAdmin}, society.ID)
	require.NoError(t, err)
	assert.Equal(t, society.ID, got.ID)

	_, err = access.AdminSociety(ctx, store, models.Actor{UserID: other.ID, Role: models.RoleAdmin}, society.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// the admin id alone is not enough without the admin role
	_, err = access.AdminSociety(ctx, store, models.Actor{UserID: admin.ID, Role: models.RoleOwner}, society.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = access.AdminSociety(ctx, store, models.Actor{UserID: admin.ID, Role: models.RoleAdmin}, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOccupies(t *testing.T) {
	owner, tenant := uuid.New(), uuid.New()
	flat := &models.Flat{OwnerID: &owner, TenantID: &tenant}

	assert.True(t, access.Occupies(models.Actor{UserID: owner, Role: models.RoleOwner}, flat))
	assert.True(t, access.Occupies(models.Actor{UserID: tenant, Role: models.RoleTenant}, flat))
	assert.False(t, access.Occupies(models.Actor{UserID: owner, Role: models.RoleTenant}, flat))
	assert.False(t, access.Occupies(models.Actor{UserID: uuid.New(), Role: models.RoleOwner}, flat))
	assert.False(t, access.Occupies(models.Actor{UserID: owner, Role: models.RoleAdmin}, flat))
}

func TestErrorMapping(t *testing.T) {
	err := access.NotFoundOr(storage.ErrNotFound, "flat %d not found", 7)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "flat 7 not found", apperr.From(err).Message)

	err = access.ConflictOr(fmt.Errorf("%w: flats_owner_id_key", storage.ErrDuplicateKey), "taken")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = access.ConflictOr(storage.ErrStaleState, "already paid")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = access.NotFoundOr(errors.New("connection reset"), "flat not found")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal error", apperr.From(err).Message)
}
