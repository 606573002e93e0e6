package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/transfer"
)

// ========== Ownership request handlers ==========

// HandleSubmitOwnershipRequest lets an owner ask to transfer their flat
func (s *RESTServer) HandleSubmitOwnershipRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FlatID        string `json:"flatId" validate:"required,uuid"`
		NewOwnerName  string `json:"newOwnerName" validate:"required,min=2,max=100"`
		NewOwnerEmail string `json:"newOwnerEmail" validate:"required,email"`
		NewOwnerPhone string `json:"newOwnerPhone" validate:"omitempty,max=20"`
		Reason        string `json:"reason" validate:"max=1000"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	request, err := s.transfers.Submit(r.Context(), actorFrom(r), transfer.SubmitInput{
		FlatID:        uuid.MustParse(req.FlatID),
		NewOwnerName:  req.NewOwnerName,
		NewOwnerEmail: req.NewOwnerEmail,
		NewOwnerPhone: req.NewOwnerPhone,
		Reason:        req.Reason,
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, request)
}

// HandleListOwnershipRequests lists requests visible to the caller
func (s *RESTServer) HandleListOwnershipRequests(w http.ResponseWriter, r *http.Request) {
	var status *models.RequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := models.RequestStatus(raw)
		switch st {
		case models.RequestPending, models.RequestApproved, models.RequestRejected:
		default:
			s.respondAppError(w, r, apperr.BadRequest("unknown request status %q", raw))
			return
		}
		status = &st
	}

	limit, offset := parsePagination(r)
	requests, total, err := s.transfers.List(r.Context(), actorFrom(r), status, limit, offset)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
	})
}

// HandleReviewOwnershipRequest approves or rejects a pending request
func (s *RESTServer) HandleReviewOwnershipRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	var req struct {
		Decision string `json:"decision" validate:"required,oneof=approve reject"`
		Note     string `json:"note" validate:"max=1000"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	result, err := s.transfers.Review(r.Context(), actorFrom(r), id, transfer.Decision(req.Decision), req.Note)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}
