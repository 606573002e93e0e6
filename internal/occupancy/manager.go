// Package occupancy owns the owner and tenant fields of flats. Every write to
// those fields goes through Manager so the derived occupancy status never
// drifts from them.
package occupancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// Manager handles buildings, flat generation and occupancy transitions
type Manager struct {
	store storage.Store
}

// NewManager creates an occupancy manager
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// CreateBuilding inserts a building and generates its flats in one transaction
func (m *Manager) CreateBuilding(ctx context.Context, actor models.Actor, building *models.Building) ([]*models.Flat, error) {
	if _, err := access.AdminSociety(ctx, m.store, actor, building.SocietyID); err != nil {
		return nil, err
	}

	slots, err := PlanFlats(building.TotalFloors, building.TotalFlats)
	if err != nil {
		return nil, err
	}

	var flats []*models.Flat
	err = storage.WithTx(ctx, m.store, func(tx storage.Store) error {
		if err := tx.CreateBuilding(ctx, building); err != nil {
			return apperr.From(err)
		}
		flats, err = createFlats(ctx, tx, actor, building, slots)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("building_id", building.ID.String()).
		Str("society_id", building.SocietyID.String()).
		Int("flats", len(flats)).
		Msg("Building created")

	return flats, nil
}

// CreateFlatsForBuilding generates the flats of an existing building. It
// fails with Conflict when the building already has flats.
func (m *Manager) CreateFlatsForBuilding(ctx context.Context, actor models.Actor, buildingID uuid.UUID) ([]*models.Flat, error) {
	building, err := m.store.GetBuilding(ctx, buildingID)
	if err != nil {
		return nil, access.NotFoundOr(err, "building %s not found", buildingID)
	}
	if _, err := access.AdminSociety(ctx, m.store, actor, building.SocietyID); err != nil {
		return nil, err
	}

	slots, err := PlanFlats(building.TotalFloors, building.TotalFlats)
	if err != nil {
		return nil, err
	}

	var flats []*models.Flat
	err = storage.WithTx(ctx, m.store, func(tx storage.Store) error {
		existing, err := tx.CountFlats(ctx, buildingID)
		if err != nil {
			return apperr.From(err)
		}
		if existing > 0 {
			return apperr.Conflict("building %s already has %d flats", buildingID, existing)
		}
		flats, err = createFlats(ctx, tx, actor, building, slots)
		return err
	})
	if err != nil {
		return nil, err
	}

	return flats, nil
}

func createFlats(ctx context.Context, tx storage.Store, actor models.Actor, building *models.Building, slots []Slot) ([]*models.Flat, error) {
	flats := make([]*models.Flat, 0, len(slots))
	for _, slot := range slots {
		flats = append(flats, &models.Flat{
			BuildingID: building.ID,
			SocietyID:  building.SocietyID,
			Number:     slot.Number,
			Floor:      slot.Floor,
			RentAmount: decimal.Zero,
		})
	}

	if err := tx.CreateFlats(ctx, flats); err != nil {
		return nil, access.ConflictOr(err, "flats for building %s already exist", building.ID)
	}

	err := record(ctx, tx, &models.ActivityLog{
		SocietyID:   &building.SocietyID,
		ActorID:     &actor.UserID,
		Type:        models.ActivityFlatsGenerated,
		Description: fmt.Sprintf("Generated %d flats for building %s", len(flats), building.Name),
		Details: models.Variables{
			"buildingId": building.ID.String(),
			"floors":     building.TotalFloors,
			"flats":      len(flats),
		},
	})
	if err != nil {
		return nil, err
	}

	return flats, nil
}

// AssignOwner makes userID the owner of flatID
func (m *Manager) AssignOwner(ctx context.Context, actor models.Actor, flatID, userID uuid.UUID) (*models.Flat, error) {
	flat, err := m.store.GetFlat(ctx, flatID)
	if err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", flatID)
	}
	if _, err := access.AdminSociety(ctx, m.store, actor, flat.SocietyID); err != nil {
		return nil, err
	}

	err = storage.WithTx(ctx, m.store, func(tx storage.Store) error {
		flat, err = AssignOwnerTx(ctx, tx, actor, flatID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return flat, nil
}

// AssignOwnerTx is the single path that writes a flat's owner. It runs on a
// caller-supplied transaction and does no authorization of its own. A user
// may own at most one flat.
func AssignOwnerTx(ctx context.Context, tx storage.Store, actor models.Actor, flatID, userID uuid.UUID) (*models.Flat, error) {
	flat, err := tx.GetFlat(ctx, flatID)
	if err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", flatID)
	}

	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, access.NotFoundOr(err, "user %s not found", userID)
	}
	if user.Role != models.RoleOwner {
		return nil, apperr.BadRequest("user %s has role %s, expected owner", userID, user.Role)
	}
	if !user.IsActive {
		return nil, apperr.BadRequest("user %s is deactivated", userID)
	}

	if flat.OwnerID != nil && *flat.OwnerID == userID {
		return flat, nil
	}

	owned, err := tx.ListFlats(ctx, storage.FlatFilters{OwnerID: &userID})
	if err != nil {
		return nil, apperr.From(err)
	}
	if len(owned) > 0 {
		return nil, apperr.Conflict("user %s already owns flat %s", userID, owned[0].Number)
	}

	previous := flat.OwnerID
	flat.OwnerID = &userID
	if err := tx.UpdateFlatOccupancy(ctx, flat); err != nil {
		return nil, access.ConflictOr(err, "user %s already owns a flat", userID)
	}

	if user.SocietyID == nil {
		user.SocietyID = &flat.SocietyID
		if err := tx.UpdateUser(ctx, user); err != nil {
			return nil, apperr.From(err)
		}
	}

	details := models.Variables{"ownerId": userID.String()}
	if previous != nil {
		details["previousOwnerId"] = previous.String()
	}
	err = record(ctx, tx, &models.ActivityLog{
		SocietyID:   &flat.SocietyID,
		FlatID:      &flat.ID,
		ActorID:     &actor.UserID,
		Type:        models.ActivityOwnerAssigned,
		Description: fmt.Sprintf("Flat %s assigned to owner %s", flat.Number, user.Name),
		Details:     details,
	})
	if err != nil {
		return nil, err
	}

	return flat, nil
}

// RemoveOwner clears a flat's owner. A tenant left behind is allowed but
// recorded as a warning.
func (m *Manager) RemoveOwner(ctx context.Context, actor models.Actor, flatID uuid.UUID) (*models.Flat, error) {
	flat, err := m.store.GetFlat(ctx, flatID)
	if err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", flatID)
	}
	if _, err := access.AdminSociety(ctx, m.store, actor, flat.SocietyID); err != nil {
		return nil, err
	}

	err = storage.WithTx(ctx, m.store, func(tx storage.Store) error {
		flat, err = tx.GetFlat(ctx, flatID)
		if err != nil {
			return access.NotFoundOr(err, "flat %s not found", flatID)
		}
		if flat.OwnerID == nil {
			return apperr.Conflict("flat %s has no owner", flat.Number)
		}

		previous := *flat.OwnerID
		flat.OwnerID = nil
		if err := tx.UpdateFlatOccupancy(ctx, flat); err != nil {
			return apperr.From(err)
		}

		level := models.ActivityLevelInfo
		description := fmt.Sprintf("Owner removed from flat %s", flat.Number)
		if flat.TenantID != nil {
			level = models.ActivityLevelWarning
			description += " while a tenant remains"
		}
		return record(ctx, tx, &models.ActivityLog{
			SocietyID:   &flat.SocietyID,
			FlatID:      &flat.ID,
			ActorID:     &actor.UserID,
			Type:        models.ActivityOwnerRemoved,
			Level:       level,
			Description: description,
			Details:     models.Variables{"previousOwnerId": previous.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	return flat, nil
}

// AssignTenant places a tenant in a flat that has none. Admins of the society
// and the flat's owner may do this.
func (m *Manager) AssignTenant(ctx context.Context, actor models.Actor, flatID, tenantID uuid.UUID) (*models.Flat, error) {
	if err := m.authorizeTenancy(ctx, actor, flatID); err != nil {
		return nil, err
	}

	var flat *models.Flat
	err := storage.WithTx(ctx, m.store, func(tx storage.Store) error {
		var err error
		flat, err = tx.GetFlat(ctx, flatID)
		if err != nil {
			return access.NotFoundOr(err, "flat %s not found", flatID)
		}
		if flat.TenantID != nil {
			return apperr.Conflict("flat %s already has a tenant", flat.Number)
		}

		user, err := tx.GetUser(ctx, tenantID)
		if err != nil {
			return access.NotFoundOr(err, "user %s not found", tenantID)
		}
		if user.Role != models.RoleTenant {
			return apperr.BadRequest("user %s has role %s, expected tenant", tenantID, user.Role)
		}
		if !user.IsActive {
			return apperr.BadRequest("user %s is deactivated", tenantID)
		}

		rented, err := tx.ListFlats(ctx, storage.FlatFilters{TenantID: &tenantID})
		if err != nil {
			return apperr.From(err)
		}
		if len(rented) > 0 {
			return apperr.Conflict("user %s is already a tenant of flat %s", tenantID, rented[0].Number)
		}

		flat.TenantID = &tenantID
		if err := tx.UpdateFlatOccupancy(ctx, flat); err != nil {
			return access.ConflictOr(err, "user %s is already a tenant", tenantID)
		}

		if user.SocietyID == nil {
			user.SocietyID = &flat.SocietyID
			if err := tx.UpdateUser(ctx, user); err != nil {
				return apperr.From(err)
			}
		}

		return record(ctx, tx, &models.ActivityLog{
			SocietyID:   &flat.SocietyID,
			FlatID:      &flat.ID,
			ActorID:     &actor.UserID,
			Type:        models.ActivityTenantAssigned,
			Description: fmt.Sprintf("Tenant %s moved into flat %s", user.Name, flat.Number),
			Details:     models.Variables{"tenantId": tenantID.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	return flat, nil
}

// RemoveTenant clears a flat's tenant
func (m *Manager) RemoveTenant(ctx context.Context, actor models.Actor, flatID uuid.UUID) (*models.Flat, error) {
	if err := m.authorizeTenancy(ctx, actor, flatID); err != nil {
		return nil, err
	}

	var flat *models.Flat
	err := storage.WithTx(ctx, m.store, func(tx storage.Store) error {
		var err error
		flat, err = tx.GetFlat(ctx, flatID)
		if err != nil {
			return access.NotFoundOr(err, "flat %s not found", flatID)
		}
		if flat.TenantID == nil {
			return apperr.Conflict("flat %s has no tenant", flat.Number)
		}

		previous := *flat.TenantID
		flat.TenantID = nil
		if err := tx.UpdateFlatOccupancy(ctx, flat); err != nil {
			return apperr.From(err)
		}

		return record(ctx, tx, &models.ActivityLog{
			SocietyID:   &flat.SocietyID,
			FlatID:      &flat.ID,
			ActorID:     &actor.UserID,
			Type:        models.ActivityTenantRemoved,
			Description: fmt.Sprintf("Tenant moved out of flat %s", flat.Number),
			Details:     models.Variables{"previousTenantId": previous.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	return flat, nil
}

// authorizeTenancy allows the society admin and the flat's owner
func (m *Manager) authorizeTenancy(ctx context.Context, actor models.Actor, flatID uuid.UUID) error {
	flat, err := m.store.GetFlat(ctx, flatID)
	if err != nil {
		return access.NotFoundOr(err, "flat %s not found", flatID)
	}

	if actor.Role == models.RoleOwner && access.Occupies(actor, flat) {
		return nil
	}

	ok, err := access.CanAdminister(ctx, m.store, actor, flat.SocietyID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not allowed to manage tenants of flat %s", flat.Number)
	}
	return nil
}

// SetRentAmount sets the monthly rent of a flat. The society admin and the
// flat's owner may change it.
func (m *Manager) SetRentAmount(ctx context.Context, actor models.Actor, flatID uuid.UUID, amount decimal.Decimal) (*models.Flat, error) {
	if amount.IsNegative() {
		return nil, apperr.BadRequest("rent amount must not be negative")
	}
	if err := m.authorizeTenancy(ctx, actor, flatID); err != nil {
		return nil, err
	}

	if err := m.store.UpdateFlatRent(ctx, flatID, amount); err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", flatID)
	}

	flat, err := m.store.GetFlat(ctx, flatID)
	if err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", flatID)
	}
	return flat, nil
}

// GetFlatsByOwner returns the flats owned by ownerID
func (m *Manager) GetFlatsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Flat, error) {
	flats, err := m.store.ListFlats(ctx, storage.FlatFilters{OwnerID: &ownerID})
	if err != nil {
		return nil, apperr.From(err)
	}
	return flats, nil
}

// GetUserFlat returns the flat the user owns, or else the one they rent
func (m *Manager) GetUserFlat(ctx context.Context, userID uuid.UUID) (*models.FlatDetail, error) {
	for _, filters := range []storage.FlatFilters{{OwnerID: &userID}, {TenantID: &userID}} {
		flats, err := m.store.ListFlats(ctx, filters)
		if err != nil {
			return nil, apperr.From(err)
		}
		if len(flats) > 0 {
			detail, err := m.store.GetFlatDetail(ctx, flats[0].ID)
			if err != nil {
				return nil, access.NotFoundOr(err, "flat %s not found", flats[0].ID)
			}
			return detail, nil
		}
	}
	return nil, apperr.NotFound("user %s has no flat", userID)
}

// GetFlat returns a flat with its references. Admins of the society and the
// flat's occupants may read it.
func (m *Manager) GetFlat(ctx context.Context, actor models.Actor, flatID uuid.UUID) (*models.FlatDetail, error) {
	detail, err := m.store.GetFlatDetail(ctx, flatID)
	if err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", flatID)
	}

	if access.Occupies(actor, &detail.Flat) {
		return detail, nil
	}
	if detail.Society != nil && actor.IsAdmin() && detail.Society.AdminID == actor.UserID {
		return detail, nil
	}
	return nil, apperr.Forbidden("not allowed to view flat %s", detail.Number)
}

// ListFlats lists the flats of a society, optionally narrowed to one building
func (m *Manager) ListFlats(ctx context.Context, actor models.Actor, societyID uuid.UUID, buildingID *uuid.UUID) ([]*models.Flat, error) {
	if _, err := access.AdminSociety(ctx, m.store, actor, societyID); err != nil {
		return nil, err
	}

	flats, err := m.store.ListFlats(ctx, storage.FlatFilters{SocietyID: &societyID, BuildingID: buildingID})
	if err != nil {
		return nil, apperr.From(err)
	}
	return flats, nil
}

// ListBuildings lists the buildings of a society
func (m *Manager) ListBuildings(ctx context.Context, actor models.Actor, societyID uuid.UUID) ([]*models.Building, error) {
	if _, err := access.AdminSociety(ctx, m.store, actor, societyID); err != nil {
		return nil, err
	}

	buildings, err := m.store.ListBuildings(ctx, societyID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return buildings, nil
}

// record appends an activity entry on the caller's transaction
func record(ctx context.Context, tx storage.Store, entry *models.ActivityLog) error {
	if err := tx.CreateActivityLog(ctx, entry); err != nil {
		return apperr.From(err)
	}
	return nil
}
