package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type occupantRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// ========== Flat handlers ==========

// HandleListFlats lists a society's flats, optionally for one building
func (s *RESTServer) HandleListFlats(w http.ResponseWriter, r *http.Request) {
	societyID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	buildingID, err := parseQueryID(r, "building_id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flats, err := s.occupancy.ListFlats(r.Context(), actorFrom(r), societyID, buildingID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"flats": flats,
		"total": len(flats),
	})
}

// HandleGetFlat gets a flat with its building, society and occupants
func (s *RESTServer) HandleGetFlat(w http.ResponseWriter, r *http.Request) {
	flatID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flat, err := s.occupancy.GetFlat(r.Context(), actorFrom(r), flatID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, flat)
}

// HandleSetRentAmount sets a flat's monthly rent
func (s *RESTServer) HandleSetRentAmount(w http.ResponseWriter, r *http.Request) {
	flatID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	var req struct {
		RentAmount decimal.Decimal `json:"rentAmount"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flat, err := s.occupancy.SetRentAmount(r.Context(), actorFrom(r), flatID, req.RentAmount)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, flat)
}

// HandleAssignOwner makes a user the owner of a flat
func (s *RESTServer) HandleAssignOwner(w http.ResponseWriter, r *http.Request) {
	flatID, userID, ok := s.occupantParams(w, r)
	if !ok {
		return
	}

	flat, err := s.occupancy.AssignOwner(r.Context(), actorFrom(r), flatID, userID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, flat)
}

// HandleRemoveOwner clears a flat's owner
func (s *RESTServer) HandleRemoveOwner(w http.ResponseWriter, r *http.Request) {
	flatID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flat, err := s.occupancy.RemoveOwner(r.Context(), actorFrom(r), flatID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, flat)
}

// HandleAssignTenant moves a tenant into a flat
func (s *RESTServer) HandleAssignTenant(w http.ResponseWriter, r *http.Request) {
	flatID, userID, ok := s.occupantParams(w, r)
	if !ok {
		return
	}

	flat, err := s.occupancy.AssignTenant(r.Context(), actorFrom(r), flatID, userID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, flat)
}

// HandleRemoveTenant clears a flat's tenant
func (s *RESTServer) HandleRemoveTenant(w http.ResponseWriter, r *http.Request) {
	flatID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flat, err := s.occupancy.RemoveTenant(r.Context(), actorFrom(r), flatID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, flat)
}

// occupantParams reads the flat id from the path and the user id from the
// body. It writes the error response itself.
func (s *RESTServer) occupantParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	flatID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}

	var req occupantRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}

	return flatID, uuid.MustParse(req.UserID), true
}
