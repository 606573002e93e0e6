package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/billing"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// Billing trigger subjects
const (
	SubjectBillingRent        = "society.billing.rent"
	SubjectBillingMaintenance = "society.billing.maintenance"
)

const requestTimeout = 30 * time.Second

// BillingRequest asks for a billing run on behalf of an admin
type BillingRequest struct {
	AdminID   uuid.UUID  `json:"adminId"`
	Month     string     `json:"month"`
	SocietyID *uuid.UUID `json:"societyId,omitempty"`
}

// BillingReply carries either the run result or the error
type BillingReply struct {
	Result *billing.Result `json:"result,omitempty"`
	Error  *ReplyError     `json:"error,omitempty"`
}

// ReplyError is an error returned over NATS
type ReplyError struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// NATSSubscriber serves billing runs over NATS request/reply
type NATSSubscriber struct {
	nc        *nats.Conn
	store     storage.Store
	generator *billing.Generator
	subs      []*nats.Subscription
}

// NewNATSSubscriber creates NATS subscriber
func NewNATSSubscriber(nc *nats.Conn, store storage.Store) *NATSSubscriber {
	return &NATSSubscriber{
		nc:        nc,
		store:     store,
		generator: billing.NewGenerator(store).WithTrigger(billing.TriggerNATS),
		subs:      make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions and blocks until ctx is done
func (s *NATSSubscriber) Start(ctx context.Context) error {
	for _, subject := range []string{SubjectBillingRent, SubjectBillingMaintenance} {
		sub, err := s.nc.Subscribe(subject, s.handleBillingRequest)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("NATS subscriber started")

	<-ctx.Done()

	// Unsubscribe
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleBillingRequest runs the requested billing and replies with the outcome
func (s *NATSSubscriber) handleBillingRequest(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Int("size", len(msg.Data)).
		Msg("Received billing request")

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	reply := s.process(ctx, msg.Subject, msg.Data)

	if msg.Reply == "" {
		if reply.Error != nil {
			log.Warn().Str("subject", msg.Subject).Str("error", reply.Error.Message).Msg("Billing request without reply subject failed")
		}
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal billing reply")
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to send billing reply")
	}
}

// process decodes and runs one billing request
func (s *NATSSubscriber) process(ctx context.Context, subject string, data []byte) *BillingReply {
	result, err := s.run(ctx, subject, data)
	if err != nil {
		e := apperr.From(err)
		if e.Kind == apperr.KindInternal {
			log.Error().Err(e.Err).Str("subject", subject).Msg("Billing request failed")
		}
		return &BillingReply{Error: &ReplyError{Kind: e.Kind, Message: e.Message}}
	}
	return &BillingReply{Result: result}
}

func (s *NATSSubscriber) run(ctx context.Context, subject string, data []byte) (*billing.Result, error) {
	var req BillingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperr.BadRequest("invalid billing request: %v", err)
	}

	month, err := models.ParseBillingMonth(req.Month)
	if err != nil {
		return nil, apperr.BadRequest("%v", err)
	}

	admin, err := s.store.GetUser(ctx, req.AdminID)
	if err != nil {
		return nil, access.NotFoundOr(err, "user %s not found", req.AdminID)
	}
	if admin.Role != models.RoleAdmin || !admin.IsActive {
		return nil, apperr.Forbidden("user %s cannot run billing", req.AdminID)
	}
	actor := models.Actor{UserID: admin.ID, Role: admin.Role}

	switch subject {
	case SubjectBillingRent:
		return s.generator.GenerateRent(ctx, actor, month, req.SocietyID)
	case SubjectBillingMaintenance:
		if req.SocietyID == nil {
			return nil, apperr.BadRequest("societyId is required for maintenance")
		}
		return s.generator.GenerateMaintenance(ctx, actor, *req.SocietyID, month)
	default:
		return nil, apperr.BadRequest("unknown billing subject %s", subject)
	}
}
