// Package access resolves what an actor may touch and translates storage
// failures into the apperr taxonomy.
package access

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// AdminSociety loads a society and checks that actor administers it
func AdminSociety(ctx context.Context, store storage.Store, actor models.Actor, societyID uuid.UUID) (*models.Society, error) {
	society, err := store.GetSociety(ctx, societyID)
	if err != nil {
		return nil, NotFoundOr(err, "society %s not found", societyID)
	}
	if !actor.IsAdmin() || society.AdminID != actor.UserID {
		return nil, apperr.Forbidden("not an admin of society %s", societyID)
	}
	return society, nil
}

// CanAdminister reports whether actor administers the society
func CanAdminister(ctx context.Context, store storage.Store, actor models.Actor, societyID uuid.UUID) (bool, error) {
	if !actor.IsAdmin() {
		return false, nil
	}
	society, err := store.GetSociety(ctx, societyID)
	if err != nil {
		return false, NotFoundOr(err, "society %s not found", societyID)
	}
	return society.AdminID == actor.UserID, nil
}

// Occupies reports whether actor is the flat's owner or tenant in the role
// they hold
func Occupies(actor models.Actor, flat *models.Flat) bool {
	switch actor.Role {
	case models.RoleOwner:
		return flat.OwnerID != nil && *flat.OwnerID == actor.UserID
	case models.RoleTenant:
		return flat.TenantID != nil && *flat.TenantID == actor.UserID
	}
	return false
}

// NotFoundOr maps storage.ErrNotFound to a NotFound error with the given
// message and anything else to Internal.
func NotFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(format, args...)
	}
	return apperr.From(err)
}

// ConflictOr maps duplicate-key and stale-state failures to a Conflict error
// with the given message and anything else to Internal.
func ConflictOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, storage.ErrStaleState) {
		return apperr.Conflict(format, args...)
	}
	return apperr.From(err)
}
