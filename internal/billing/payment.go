package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/metrics"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// PaymentRecorder marks bills paid on behalf of the flat's occupants
type PaymentRecorder struct {
	store storage.Store
}

// NewPaymentRecorder creates a payment recorder
func NewPaymentRecorder(store storage.Store) *PaymentRecorder {
	return &PaymentRecorder{store: store}
}

// PayBill records a self-reported payment. Only the flat's owner (acting as
// owner) or tenant (acting as tenant) may pay, and a bill is paid once.
func (p *PaymentRecorder) PayBill(ctx context.Context, actor models.Actor, billType models.BillType, billID uuid.UUID, details models.PaymentDetails) (*models.Bill, error) {
	if !billType.Valid() {
		return nil, apperr.BadRequest("unknown bill type %q", billType)
	}
	if strings.TrimSpace(details.Method) == "" {
		return nil, apperr.BadRequest("payment method is required")
	}

	bill, err := p.store.GetBill(ctx, billType, billID)
	if err != nil {
		return nil, access.NotFoundOr(err, "%s bill %s not found", billType, billID)
	}

	flat, err := p.store.GetFlat(ctx, bill.FlatID)
	if err != nil {
		return nil, access.NotFoundOr(err, "flat %s not found", bill.FlatID)
	}
	if !access.Occupies(actor, flat) {
		return nil, apperr.Forbidden("not allowed to pay bills of flat %s", flat.Number)
	}

	if bill.Status == models.BillStatusPaid {
		return nil, apperr.Conflict("%s bill %s is already paid", billType, billID)
	}

	now := time.Now().UTC()
	bill.PaidOn = &now
	bill.PaidBy = &actor.UserID
	bill.PaymentMethod = strings.TrimSpace(details.Method)
	bill.TransactionID = strings.TrimSpace(details.TransactionID)

	err = storage.WithTx(ctx, p.store, func(tx storage.Store) error {
		if err := tx.MarkBillPaid(ctx, bill); err != nil {
			return access.ConflictOr(err, "%s bill %s is already paid", billType, billID)
		}

		err := tx.CreateActivityLog(ctx, &models.ActivityLog{
			SocietyID:   &bill.SocietyID,
			FlatID:      &bill.FlatID,
			ActorID:     &actor.UserID,
			Type:        models.ActivityBillPaid,
			Description: fmt.Sprintf("%s bill for %s paid", billType, bill.BillingMonth),
			Details: models.Variables{
				"billId":        bill.ID.String(),
				"amount":        bill.Amount.String(),
				"method":        bill.PaymentMethod,
				"transactionId": bill.TransactionID,
			},
		})
		if err != nil {
			return apperr.From(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsRecorded.WithLabelValues(string(billType)).Inc()
	log.Info().
		Str("bill_id", bill.ID.String()).
		Str("type", string(billType)).
		Str("paid_by", actor.UserID.String()).
		Msg("Bill paid")

	return bill, nil
}
