package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// ========== Complaint handlers ==========

// HandleCreateComplaint raises a complaint about the caller's flat
func (s *RESTServer) HandleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)

	var req struct {
		Category    string `json:"category" validate:"required,oneof=plumbing electrical security cleanliness noise other"`
		Title       string `json:"title" validate:"required,max=200"`
		Description string `json:"description" validate:"required,max=2000"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flat, err := s.occupancy.GetUserFlat(ctx, actor.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			err = apperr.BadRequest("only residents of a flat can raise complaints")
		}
		s.respondAppError(w, r, err)
		return
	}

	complaint := &models.Complaint{
		SocietyID:   flat.SocietyID,
		FlatID:      &flat.ID,
		RaisedBy:    actor.UserID,
		Category:    models.ComplaintCategory(req.Category),
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.store.CreateComplaint(ctx, complaint); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, complaint)
}

// HandleListComplaints lists complaints. Admins list a society's complaints,
// residents their own.
func (s *RESTServer) HandleListComplaints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)

	var filters storage.ComplaintFilters
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.ComplaintStatus(raw)
		filters.Status = &status
	}

	if actor.IsAdmin() {
		societyID, err := parseQueryID(r, "society_id")
		if err != nil {
			s.respondAppError(w, r, err)
			return
		}
		if societyID == nil {
			s.respondAppError(w, r, apperr.BadRequest("society_id is required"))
			return
		}
		if _, err := access.AdminSociety(ctx, s.store, actor, *societyID); err != nil {
			s.respondAppError(w, r, err)
			return
		}
		filters.SocietyID = societyID
	} else {
		filters.RaisedBy = &actor.UserID
	}

	limit, offset := parsePagination(r)
	complaints, total, err := s.store.ListComplaints(ctx, filters, limit, offset)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"complaints": complaints,
		"total":      total,
	})
}

// HandleUpdateComplaintStatus moves a complaint along its workflow
func (s *RESTServer) HandleUpdateComplaintStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	var req struct {
		Status     string `json:"status" validate:"required,oneof=in-progress resolved rejected"`
		Resolution string `json:"resolution" validate:"max=2000"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	complaint, err := s.store.GetComplaint(ctx, id)
	if err != nil {
		s.respondAppError(w, r, access.NotFoundOr(err, "complaint %s not found", id))
		return
	}
	if _, err := access.AdminSociety(ctx, s.store, actorFrom(r), complaint.SocietyID); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	from := complaint.Status
	next := models.ComplaintStatus(req.Status)
	if !from.CanTransitionTo(next) {
		s.respondAppError(w, r, apperr.Conflict("complaint cannot move from %s to %s", from, next))
		return
	}

	complaint.Status = next
	if req.Resolution != "" {
		complaint.Resolution = req.Resolution
	}
	if next == models.ComplaintResolved || next == models.ComplaintRejected {
		now := time.Now().UTC()
		complaint.ResolvedAt = &now
	}

	if err := s.store.UpdateComplaintStatus(ctx, complaint, from); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			err = apperr.Conflict("complaint %s was updated concurrently", id)
		}
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, complaint)
}

// ========== Announcement handlers ==========

// HandleCreateAnnouncement posts a notice to a society
func (s *RESTServer) HandleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)

	var req struct {
		SocietyID  string     `json:"societyId" validate:"required,uuid"`
		Title      string     `json:"title" validate:"required,max=200"`
		Body       string     `json:"body" validate:"required,max=5000"`
		Audience   string     `json:"audience" validate:"omitempty,oneof=all owners tenants"`
		ValidFrom  *time.Time `json:"validFrom"`
		ValidUntil *time.Time `json:"validUntil"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	societyID := uuid.MustParse(req.SocietyID)
	if _, err := access.AdminSociety(ctx, s.store, actor, societyID); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	announcement := &models.Announcement{
		SocietyID:  societyID,
		CreatedBy:  actor.UserID,
		Title:      req.Title,
		Body:       req.Body,
		Audience:   models.Audience(req.Audience),
		ValidUntil: req.ValidUntil,
	}
	if req.ValidFrom != nil {
		announcement.ValidFrom = *req.ValidFrom
	}
	if announcement.ValidUntil != nil && !announcement.ValidFrom.IsZero() && announcement.ValidUntil.Before(announcement.ValidFrom) {
		s.respondAppError(w, r, apperr.BadRequest("validUntil must not be before validFrom"))
		return
	}

	if err := s.store.CreateAnnouncement(ctx, announcement); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, announcement)
}

// HandleListAnnouncements lists announcements. Admins see everything posted
// to a society; residents see what is currently addressed to them.
func (s *RESTServer) HandleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)
	limit, offset := parsePagination(r)

	if actor.IsAdmin() {
		societyID, err := parseQueryID(r, "society_id")
		if err != nil {
			s.respondAppError(w, r, err)
			return
		}
		if societyID == nil {
			s.respondAppError(w, r, apperr.BadRequest("society_id is required"))
			return
		}
		if _, err := access.AdminSociety(ctx, s.store, actor, *societyID); err != nil {
			s.respondAppError(w, r, err)
			return
		}

		announcements, total, err := s.store.ListAnnouncements(ctx, *societyID, limit, offset)
		if err != nil {
			s.respondAppError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"announcements": announcements,
			"total":         total,
		})
		return
	}

	visible := []*models.Announcement{}
	society, err := s.residentSociety(ctx, actor)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	if society != nil {
		announcements, _, err := s.store.ListAnnouncements(ctx, society.ID, limit, offset)
		if err != nil {
			s.respondAppError(w, r, err)
			return
		}
		now := time.Now().UTC()
		for _, a := range announcements {
			if a.VisibleTo(actor.Role, now) {
				visible = append(visible, a)
			}
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"announcements": visible,
		"total":         len(visible),
	})
}
