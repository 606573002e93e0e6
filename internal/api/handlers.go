package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/auth"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
	"github.com/societyhub/society-server/pkg/crypto"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ========== Auth handlers ==========

// HandleRegister creates an account. The role is fixed here and never
// changes through the API.
func (s *RESTServer) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required,min=2,max=100"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8,max=72"`
		Phone    string `json:"phone" validate:"omitempty,max=20"`
		Role     string `json:"role" validate:"required,oneof=admin owner tenant"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.respondAppError(w, r, apperr.Internal(err))
		return
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         models.Role(req.Role),
		IsActive:     true,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.respondAppError(w, r, access.ConflictOr(err, "email %s is already registered", req.Email))
		return
	}

	tokens, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondAppError(w, r, apperr.Internal(err))
		return
	}

	log.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("User registered")

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

// HandleLogin handles user login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	// Get user
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.respondAppError(w, r, err)
			return
		}
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// Verify password
	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// Check user status
	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	// Generate tokens
	tokens, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondAppError(w, r, apperr.Internal(err))
		return
	}

	s.respondJSON(w, http.StatusOK, tokens)
}

// HandleRefresh handles token refresh
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	tokens, err := s.auth.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInactiveUser) {
			s.respondError(w, http.StatusForbidden, "account is disabled")
			return
		}
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.respondJSON(w, http.StatusOK, tokens)
}

// HandleHealth reports liveness
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// HandleGetCurrentUser gets current user
func (s *RESTServer) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	user, err := s.store.GetUser(r.Context(), actor.UserID)
	if err != nil {
		s.respondAppError(w, r, access.NotFoundOr(err, "user %s not found", actor.UserID))
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleGetMyFlat returns the flat the caller owns or rents
func (s *RESTServer) HandleGetMyFlat(w http.ResponseWriter, r *http.Request) {
	flat, err := s.occupancy.GetUserFlat(r.Context(), actorFrom(r).UserID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, flat)
}

// ========== Helper functions ==========

// decodeJSON decodes and validates a request body
func (s *RESTServer) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return s.validator.Validate(dst)
}

// parseID parses a UUID URL parameter
func parseID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid %s", name)
	}
	return id, nil
}

// parseQueryID parses an optional UUID query parameter
func parseQueryID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.BadRequest("invalid %s", name)
	}
	return &id, nil
}

// parsePagination reads limit and offset
func parsePagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindForbidden:  http.StatusForbidden,
	apperr.KindConflict:   http.StatusConflict,
	apperr.KindBadRequest: http.StatusBadRequest,
	apperr.KindInternal:   http.StatusInternalServerError,
}

// respondAppError maps an error kind to its status. The cause of internal
// errors is logged and never written to the client.
func (s *RESTServer) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)

	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if e.Kind == apperr.KindInternal {
		log.Error().
			Err(e.Err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}

	s.respondJSON(w, status, map[string]errorBody{
		"error": {Kind: string(e.Kind), Message: e.Message},
	})
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with an error that did not come from the core
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	kind := strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	s.respondJSON(w, status, map[string]errorBody{
		"error": {Kind: kind, Message: message},
	})
}
