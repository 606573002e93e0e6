package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

type societyRequest struct {
	Name                 string          `json:"name" validate:"required,min=2,max=200"`
	RegistrationNumber   string          `json:"registrationNumber" validate:"required,max=100"`
	Address              string          `json:"address" validate:"max=500"`
	City                 string          `json:"city" validate:"max=100"`
	MaintenanceFrequency string          `json:"maintenanceFrequency" validate:"omitempty,oneof=monthly quarterly"`
	MaintenanceAmount    decimal.Decimal `json:"maintenanceAmount"`
}

func (req *societyRequest) apply(society *models.Society) error {
	if req.MaintenanceAmount.IsNegative() {
		return apperr.BadRequest("maintenanceAmount must not be negative")
	}

	society.Name = req.Name
	society.RegistrationNumber = req.RegistrationNumber
	society.Address = req.Address
	society.City = req.City
	society.MaintenancePolicy = models.MaintenancePolicy{
		Frequency:     models.MaintenanceFrequency(req.MaintenanceFrequency),
		AmountPerFlat: req.MaintenanceAmount,
	}
	if society.MaintenancePolicy.Frequency == "" {
		society.MaintenancePolicy.Frequency = models.FrequencyMonthly
	}
	return nil
}

// ========== Society handlers ==========

// HandleCreateSociety creates a society administered by the caller
func (s *RESTServer) HandleCreateSociety(w http.ResponseWriter, r *http.Request) {
	var req societyRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	society := &models.Society{AdminID: actorFrom(r).UserID}
	if err := req.apply(society); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if err := s.store.CreateSociety(r.Context(), society); err != nil {
		s.respondAppError(w, r, access.ConflictOr(err, "registration number %s is already in use", req.RegistrationNumber))
		return
	}

	s.respondJSON(w, http.StatusCreated, society)
}

// HandleListSocieties lists the caller's societies. Residents see the
// society they live in.
func (s *RESTServer) HandleListSocieties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)

	if actor.IsAdmin() {
		limit, offset := parsePagination(r)
		societies, total, err := s.store.ListSocieties(ctx, &actor.UserID, limit, offset)
		if err != nil {
			s.respondAppError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"societies": societies,
			"total":     total,
		})
		return
	}

	societies := []*models.Society{}
	society, err := s.residentSociety(ctx, actor)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	if society != nil {
		societies = append(societies, society)
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"societies": societies,
		"total":     len(societies),
	})
}

// HandleGetSociety gets a society
func (s *RESTServer) HandleGetSociety(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)

	id, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if actor.IsAdmin() {
		society, err := access.AdminSociety(ctx, s.store, actor, id)
		if err != nil {
			s.respondAppError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, society)
		return
	}

	society, err := s.residentSociety(ctx, actor)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	if society == nil || society.ID != id {
		s.respondAppError(w, r, apperr.Forbidden("not a member of society %s", id))
		return
	}

	s.respondJSON(w, http.StatusOK, society)
}

// HandleUpdateSociety updates a society's details and maintenance policy
func (s *RESTServer) HandleUpdateSociety(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	var req societyRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	society, err := access.AdminSociety(ctx, s.store, actorFrom(r), id)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	if err := req.apply(society); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if err := s.store.UpdateSociety(ctx, society); err != nil {
		s.respondAppError(w, r, access.ConflictOr(err, "registration number %s is already in use", req.RegistrationNumber))
		return
	}

	s.respondJSON(w, http.StatusOK, society)
}

// HandleDeleteSociety deletes a society with everything in it
func (s *RESTServer) HandleDeleteSociety(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if _, err := access.AdminSociety(ctx, s.store, actorFrom(r), id); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if err := s.store.DeleteSociety(ctx, id); err != nil {
		s.respondAppError(w, r, access.NotFoundOr(err, "society %s not found", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListSocietyActivity returns a society's audit trail
func (s *RESTServer) HandleListSocietyActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if _, err := access.AdminSociety(ctx, s.store, actorFrom(r), id); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	filters := storage.ActivityFilters{SocietyID: &id}
	if t := r.URL.Query().Get("type"); t != "" {
		activityType := models.ActivityType(t)
		filters.Type = &activityType
	}
	if filters.FlatID, err = parseQueryID(r, "flat_id"); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	limit, offset := parsePagination(r)
	entries, total, err := s.store.ListActivityLogs(ctx, filters, limit, offset)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"activity": entries,
		"total":    total,
	})
}

// HandleListSocietyMembers lists owners and tenants linked to a society
func (s *RESTServer) HandleListSocietyMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if _, err := access.AdminSociety(ctx, s.store, actorFrom(r), id); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	filters := storage.UserFilters{SocietyID: &id}
	if v := r.URL.Query().Get("role"); v != "" {
		role := models.Role(v)
		if role != models.RoleOwner && role != models.RoleTenant {
			s.respondAppError(w, r, apperr.BadRequest("role must be owner or tenant"))
			return
		}
		filters.Role = &role
	}

	limit, offset := parsePagination(r)
	users, total, err := s.store.ListUsers(ctx, filters, limit, offset)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"members": users,
		"total":   total,
	})
}

// residentSociety returns the society of an owner or tenant, nil if none
func (s *RESTServer) residentSociety(ctx context.Context, actor models.Actor) (*models.Society, error) {
	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, access.NotFoundOr(err, "user %s not found", actor.UserID)
	}
	if user.SocietyID == nil {
		return nil, nil
	}

	society, err := s.store.GetSociety(ctx, *user.SocietyID)
	if err != nil {
		return nil, access.NotFoundOr(err, "society %s not found", *user.SocietyID)
	}
	return society, nil
}

// ========== Building handlers ==========

// HandleCreateBuilding creates a building and its flats
func (s *RESTServer) HandleCreateBuilding(w http.ResponseWriter, r *http.Request) {
	societyID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	var req struct {
		Name        string `json:"name" validate:"required,max=100"`
		TotalFloors int    `json:"totalFloors" validate:"required,min=1"`
		TotalFlats  int    `json:"totalFlats" validate:"required,min=1"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	building := &models.Building{
		SocietyID:   societyID,
		Name:        req.Name,
		TotalFloors: req.TotalFloors,
		TotalFlats:  req.TotalFlats,
	}
	flats, err := s.occupancy.CreateBuilding(r.Context(), actorFrom(r), building)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"building": building,
		"flats":    flats,
	})
}

// HandleListBuildings lists a society's buildings
func (s *RESTServer) HandleListBuildings(w http.ResponseWriter, r *http.Request) {
	societyID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	buildings, err := s.occupancy.ListBuildings(r.Context(), actorFrom(r), societyID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"buildings": buildings,
		"total":     len(buildings),
	})
}

// HandleGenerateFlats generates the flats of a building created without them
func (s *RESTServer) HandleGenerateFlats(w http.ResponseWriter, r *http.Request) {
	buildingID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flats, err := s.occupancy.CreateFlatsForBuilding(r.Context(), actorFrom(r), buildingID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"flats": flats,
		"total": len(flats),
	})
}
