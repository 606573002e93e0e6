// Package transfer implements the ownership transfer workflow: an owner asks
// for their flat to move to someone else and a society admin approves or
// rejects the request.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/metrics"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/notify"
	"github.com/societyhub/society-server/internal/occupancy"
	"github.com/societyhub/society-server/internal/storage"
	"github.com/societyhub/society-server/pkg/crypto"
)

const temporaryPasswordLength = 12

// SubmitInput describes a requested transfer
type SubmitInput struct {
	FlatID        uuid.UUID
	NewOwnerName  string
	NewOwnerEmail string
	NewOwnerPhone string
	Reason        string
}

// Decision is the admin's verdict on a request
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// ReviewResult is the outcome of a review
type ReviewResult struct {
	Request *models.OwnershipRequest `json:"request"`
	// NewOwner is set on approval
	NewOwner *models.User `json:"newOwner,omitempty"`
	// AccountCreated reports that approval provisioned a new account
	AccountCreated bool `json:"accountCreated"`
}

// Workflow runs ownership transfer requests
type Workflow struct {
	store    storage.Store
	notifier notify.Notifier
}

// NewWorkflow creates a workflow. notifier may be nil.
func NewWorkflow(store storage.Store, notifier notify.Notifier) *Workflow {
	return &Workflow{store: store, notifier: notifier}
}

// Submit files a pending transfer request for a flat the actor owns
func (w *Workflow) Submit(ctx context.Context, actor models.Actor, in SubmitInput) (*models.OwnershipRequest, error) {
	if actor.Role != models.RoleOwner {
		return nil, apperr.Forbidden("only owners can request an ownership transfer")
	}

	email := strings.ToLower(strings.TrimSpace(in.NewOwnerEmail))
	if strings.TrimSpace(in.NewOwnerName) == "" || email == "" {
		return nil, apperr.BadRequest("new owner name and email are required")
	}

	flat, err := w.store.GetFlat(ctx, in.FlatID)
	if err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", in.FlatID)
	}
	if !access.Occupies(actor, flat) {
		return nil, apperr.Forbidden("not the owner of flat %s", flat.Number)
	}

	current, err := w.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, access.NotFoundOr(err, "user %s not found", actor.UserID)
	}
	if current.Email == email {
		return nil, apperr.BadRequest("flat %s is already owned by %s", flat.Number, email)
	}

	req := &models.OwnershipRequest{
		FlatID:         flat.ID,
		SocietyID:      flat.SocietyID,
		CurrentOwnerID: actor.UserID,
		NewOwnerName:   strings.TrimSpace(in.NewOwnerName),
		NewOwnerEmail:  email,
		NewOwnerPhone:  strings.TrimSpace(in.NewOwnerPhone),
		Reason:         in.Reason,
	}

	err = storage.WithTx(ctx, w.store, func(tx storage.Store) error {
		pending, err := tx.HasPendingOwnershipRequest(ctx, flat.ID)
		if err != nil {
			return apperr.From(err)
		}
		if pending {
			return apperr.Conflict("flat %s already has a pending transfer request", flat.Number)
		}

		if err := tx.CreateOwnershipRequest(ctx, req); err != nil {
			return access.ConflictOr(err, "flat %s already has a pending transfer request", flat.Number)
		}

		return record(ctx, tx, &models.ActivityLog{
			SocietyID:   &flat.SocietyID,
			FlatID:      &flat.ID,
			ActorID:     &actor.UserID,
			Type:        models.ActivityTransferSubmitted,
			Description: fmt.Sprintf("Transfer of flat %s to %s requested", flat.Number, req.NewOwnerName),
			Details:     models.Variables{"requestId": req.ID.String(), "newOwnerEmail": email},
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("request_id", req.ID.String()).
		Str("flat_id", flat.ID.String()).
		Msg("Ownership transfer requested")

	return req, nil
}

// Review approves or rejects a pending request. Approval finds or creates the
// new owner's account and reassigns the flat in one transaction. Credentials
// are sent after commit and a failed send never undoes the transfer.
func (w *Workflow) Review(ctx context.Context, actor models.Actor, requestID uuid.UUID, decision Decision, note string) (*ReviewResult, error) {
	if decision != Approve && decision != Reject {
		return nil, apperr.BadRequest("decision must be %q or %q", Approve, Reject)
	}

	req, err := w.store.GetOwnershipRequest(ctx, requestID)
	if err != nil {
		return nil, access.NotFoundOr(err, "ownership request %s not found", requestID)
	}
	if _, err := access.AdminSociety(ctx, w.store, actor, req.SocietyID); err != nil {
		return nil, err
	}
	if req.Status != models.RequestPending {
		return nil, apperr.Conflict("ownership request %s is already %s", requestID, req.Status)
	}

	result := &ReviewResult{}
	var password string

	err = storage.WithTx(ctx, w.store, func(tx storage.Store) error {
		req, err = tx.GetOwnershipRequest(ctx, requestID)
		if err != nil {
			return access.NotFoundOr(err, "ownership request %s not found", requestID)
		}
		if req.Status != models.RequestPending {
			return apperr.Conflict("ownership request %s is already %s", requestID, req.Status)
		}

		now := time.Now().UTC()
		req.ReviewedBy = &actor.UserID
		req.ReviewedAt = &now
		req.ReviewNote = note

		activity := models.ActivityTransferRejected
		if decision == Approve {
			activity = models.ActivityTransferApproved
			req.Status = models.RequestApproved

			owner, created, pw, err := w.approve(ctx, tx, actor, req)
			if err != nil {
				return err
			}
			req.NewOwnerID = &owner.ID
			result.NewOwner = owner
			result.AccountCreated = created
			password = pw
		} else {
			req.Status = models.RequestRejected
		}

		if err := tx.ReviewOwnershipRequest(ctx, req); err != nil {
			return access.ConflictOr(err, "ownership request %s was reviewed concurrently", requestID)
		}

		return record(ctx, tx, &models.ActivityLog{
			SocietyID:   &req.SocietyID,
			FlatID:      &req.FlatID,
			ActorID:     &actor.UserID,
			Type:        activity,
			Description: fmt.Sprintf("Transfer request for %s %s", req.NewOwnerEmail, req.Status),
			Details:     models.Variables{"requestId": req.ID.String(), "note": note},
		})
	})
	if err != nil {
		return nil, err
	}

	result.Request = req
	metrics.TransfersReviewed.WithLabelValues(string(req.Status)).Inc()

	log.Info().
		Str("request_id", req.ID.String()).
		Str("status", string(req.Status)).
		Bool("account_created", result.AccountCreated).
		Msg("Ownership transfer reviewed")

	if decision == Approve {
		w.notifyNewOwner(ctx, result.NewOwner, req, password)
	}

	return result, nil
}

// approve provisions or reuses the new owner's account and hands the flat to
// them through the occupancy write path. The password is empty for reused
// accounts.
func (w *Workflow) approve(ctx context.Context, tx storage.Store, actor models.Actor, req *models.OwnershipRequest) (*models.User, bool, string, error) {
	flat, err := tx.GetFlat(ctx, req.FlatID)
	if err != nil {
		return nil, false, "", access.NotFoundOr(err, "flat %s not found", req.FlatID)
	}
	if flat.OwnerID == nil || *flat.OwnerID != req.CurrentOwnerID {
		return nil, false, "", apperr.Conflict("flat %s changed owner since the request was made", flat.Number)
	}

	owner, err := tx.GetUserByEmail(ctx, req.NewOwnerEmail)
	switch {
	case err == nil:
		if err := w.promote(ctx, tx, owner, req); err != nil {
			return nil, false, "", err
		}
		if _, err := occupancy.AssignOwnerTx(ctx, tx, actor, flat.ID, owner.ID); err != nil {
			return nil, false, "", err
		}
		return owner, false, "", nil

	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, false, "", apperr.From(err)
	}

	password, err := crypto.GenerateTemporaryPassword(temporaryPasswordLength)
	if err != nil {
		return nil, false, "", apperr.Internal(err)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, false, "", apperr.Internal(err)
	}

	owner = &models.User{
		Name:         req.NewOwnerName,
		Email:        req.NewOwnerEmail,
		Phone:        req.NewOwnerPhone,
		PasswordHash: hash,
		Role:         models.RoleOwner,
		IsActive:     true,
		SocietyID:    &flat.SocietyID,
	}
	if err := tx.CreateUser(ctx, owner); err != nil {
		return nil, false, "", access.ConflictOr(err, "email %s is already registered", req.NewOwnerEmail)
	}

	err = record(ctx, tx, &models.ActivityLog{
		SocietyID:   &flat.SocietyID,
		FlatID:      &flat.ID,
		ActorID:     &actor.UserID,
		Type:        models.ActivityAccountCreated,
		Description: fmt.Sprintf("Owner account provisioned for %s", owner.Email),
		Details:     models.Variables{"userId": owner.ID.String()},
	})
	if err != nil {
		return nil, false, "", err
	}

	if _, err := occupancy.AssignOwnerTx(ctx, tx, actor, flat.ID, owner.ID); err != nil {
		return nil, false, "", err
	}

	return owner, true, password, nil
}

// promote refreshes an existing account named by the request and makes it an
// owner. Admins keep their role and a tenant still renting a flat cannot be
// promoted until the tenancy ends.
func (w *Workflow) promote(ctx context.Context, tx storage.Store, user *models.User, req *models.OwnershipRequest) error {
	if !user.IsActive {
		return apperr.BadRequest("account %s is deactivated", user.Email)
	}

	switch user.Role {
	case models.RoleAdmin:
		return apperr.BadRequest("%s is an admin account and cannot take ownership", user.Email)
	case models.RoleTenant:
		rented, err := tx.ListFlats(ctx, storage.FlatFilters{TenantID: &user.ID})
		if err != nil {
			return apperr.From(err)
		}
		if len(rented) > 0 {
			return apperr.Conflict("%s still rents flat %s", user.Email, rented[0].Number)
		}
	}

	if req.NewOwnerName != "" {
		user.Name = req.NewOwnerName
	}
	if req.NewOwnerPhone != "" {
		user.Phone = req.NewOwnerPhone
	}
	user.Role = models.RoleOwner

	if err := tx.UpdateUser(ctx, user); err != nil {
		return apperr.From(err)
	}
	return nil
}

func (w *Workflow) notifyNewOwner(ctx context.Context, owner *models.User, req *models.OwnershipRequest, password string) {
	if w.notifier == nil || owner == nil {
		return
	}

	subject := "Flat ownership transferred to you"
	body := fmt.Sprintf("Hello %s,\n\nThe ownership transfer you were named in has been approved.\n", owner.Name)
	if password != "" {
		body += fmt.Sprintf("\nAn account was created for you.\nLogin: %s\nTemporary password: %s\n\nPlease change it after your first login.\n", owner.Email, password)
	}

	if err := w.notifier.Send(ctx, owner.Email, subject, body); err != nil {
		metrics.NotificationsFailed.Inc()
		log.Warn().
			Err(err).
			Str("request_id", req.ID.String()).
			Str("to", owner.Email).
			Msg("Failed to notify new owner")
	}
}

// List returns the requests visible to actor: an admin sees their societies'
// requests and an owner sees their own.
func (w *Workflow) List(ctx context.Context, actor models.Actor, status *models.RequestStatus, limit, offset int) ([]*models.OwnershipRequest, int64, error) {
	filters := storage.RequestFilters{Status: status}
	switch actor.Role {
	case models.RoleAdmin:
		filters.AdminID = &actor.UserID
	case models.RoleOwner:
		filters.CurrentOwnerID = &actor.UserID
	default:
		return nil, 0, apperr.Forbidden("tenants have no ownership requests")
	}

	requests, total, err := w.store.ListOwnershipRequests(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, apperr.From(err)
	}
	return requests, total, nil
}

func record(ctx context.Context, tx storage.Store, entry *models.ActivityLog) error {
	if err := tx.CreateActivityLog(ctx, entry); err != nil {
		return apperr.From(err)
	}
	return nil
}
