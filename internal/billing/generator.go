// Package billing creates rent and maintenance bills per billing month and
// records their payment.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/societyhub/society-server/internal/access"
	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/metrics"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// rentDueDays is the number of days after the start of the month rent falls due
const rentDueDays = 30

// Trigger names what started a billing run
type Trigger string

const (
	TriggerAPI       Trigger = "api"
	TriggerNATS      Trigger = "nats"
	TriggerScheduler Trigger = "scheduler"
	TriggerCLI       Trigger = "cli"
)

// Result summarizes a billing run. Skipped counts eligible flats that
// already had a bill for the month.
type Result struct {
	Type      models.BillType     `json:"type"`
	Month     models.BillingMonth `json:"month"`
	SocietyID *uuid.UUID          `json:"societyId,omitempty"`
	Created   int                 `json:"created"`
	Skipped   int                 `json:"skipped"`
}

// Generator produces at most one bill per flat and billing month. Re-running
// a month only fills in flats that are still unbilled.
type Generator struct {
	store   storage.Store
	trigger Trigger
}

// NewGenerator creates a generator
func NewGenerator(store storage.Store) *Generator {
	return &Generator{store: store, trigger: TriggerAPI}
}

// WithTrigger returns a copy that labels its runs with t
func (g *Generator) WithTrigger(t Trigger) *Generator {
	c := *g
	c.trigger = t
	return &c
}

// GenerateRent bills every rented flat with a rent amount for month. With a
// nil societyID it covers all societies the actor administers. A repeat run
// creates nothing and succeeds.
func (g *Generator) GenerateRent(ctx context.Context, actor models.Actor, month models.BillingMonth, societyID *uuid.UUID) (*Result, error) {
	if month.IsZero() {
		return nil, apperr.BadRequest("billing month is required")
	}

	filters := storage.FlatFilters{RentedOnly: true}
	if societyID != nil {
		if _, err := access.AdminSociety(ctx, g.store, actor, *societyID); err != nil {
			return nil, err
		}
		filters.SocietyID = societyID
	} else {
		if !actor.IsAdmin() {
			return nil, apperr.Forbidden("only admins can generate rent")
		}
		filters.AdminID = &actor.UserID
	}

	result := &Result{Type: models.BillTypeRent, Month: month, SocietyID: societyID}
	due := month.Start().AddDate(0, 0, rentDueDays)

	err := storage.WithTx(ctx, g.store, func(tx storage.Store) error {
		flats, err := tx.ListFlats(ctx, filters)
		if err != nil {
			return apperr.From(err)
		}

		var eligible []*models.Flat
		for _, f := range flats {
			if f.TenantID != nil && f.RentAmount.IsPositive() {
				eligible = append(eligible, f)
			}
		}
		if len(eligible) == 0 {
			return apperr.BadRequest("no rented flats with a rent amount to bill for %s", month)
		}

		bills, err := unbilled(ctx, tx, models.BillTypeRent, month, filters, eligible, func(f *models.Flat) *models.Bill {
			return &models.Bill{
				FlatID:       f.ID,
				SocietyID:    f.SocietyID,
				BilledTo:     f.TenantID,
				BillingMonth: month,
				Amount:       f.RentAmount,
				DueDate:      due,
			}
		})
		if err != nil {
			return err
		}

		created, err := insert(ctx, tx, actor, models.BillTypeRent, month, bills)
		if err != nil {
			return err
		}
		result.Created = created
		result.Skipped = len(eligible) - created
		return nil
	})

	g.observe(result, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateMaintenance bills every owned flat of a society for month at the
// society's per-flat amount. A repeat run that finds every owned flat
// already billed fails with Conflict.
func (g *Generator) GenerateMaintenance(ctx context.Context, actor models.Actor, societyID uuid.UUID, month models.BillingMonth) (*Result, error) {
	if month.IsZero() {
		return nil, apperr.BadRequest("billing month is required")
	}

	society, err := access.AdminSociety(ctx, g.store, actor, societyID)
	if err != nil {
		return nil, err
	}

	policy := society.MaintenancePolicy
	if !policy.BillsIn(month) {
		return nil, apperr.BadRequest("society %s bills maintenance %s, not in %s", society.Name, policy.Frequency, month)
	}
	if !policy.AmountPerFlat.IsPositive() {
		return nil, apperr.BadRequest("society %s has no maintenance amount configured", society.Name)
	}

	result := &Result{Type: models.BillTypeMaintenance, Month: month, SocietyID: &societyID}
	filters := storage.FlatFilters{SocietyID: &societyID, OwnedOnly: true}

	err = storage.WithTx(ctx, g.store, func(tx storage.Store) error {
		flats, err := tx.ListFlats(ctx, filters)
		if err != nil {
			return apperr.From(err)
		}
		if len(flats) == 0 {
			return apperr.BadRequest("society %s has no owned flats to bill", society.Name)
		}

		bills, err := unbilled(ctx, tx, models.BillTypeMaintenance, month, filters, flats, func(f *models.Flat) *models.Bill {
			return &models.Bill{
				FlatID:       f.ID,
				SocietyID:    f.SocietyID,
				BilledTo:     f.OwnerID,
				BillingMonth: month,
				Amount:       policy.AmountPerFlat,
				DueDate:      month.LastDay(),
			}
		})
		if err != nil {
			return err
		}

		created, err := insert(ctx, tx, actor, models.BillTypeMaintenance, month, bills)
		if err != nil {
			return err
		}
		if created == 0 {
			return apperr.Conflict("maintenance for %s is already generated for society %s", month, society.Name)
		}
		result.Created = created
		result.Skipped = len(flats) - created
		return nil
	})

	g.observe(result, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// unbilled builds bills for the flats that have none for month yet
func unbilled(ctx context.Context, tx storage.Store, billType models.BillType, month models.BillingMonth,
	filters storage.FlatFilters, flats []*models.Flat, build func(*models.Flat) *models.Bill) ([]*models.Bill, error) {

	billed, err := tx.BilledFlatIDs(ctx, billType, month, filters)
	if err != nil {
		return nil, apperr.From(err)
	}

	var bills []*models.Bill
	for _, f := range flats {
		if !billed[f.ID] {
			bills = append(bills, build(f))
		}
	}
	return bills, nil
}

// insert stores bills and writes one activity entry per society touched. The
// returned count excludes rows another run inserted first.
func insert(ctx context.Context, tx storage.Store, actor models.Actor, billType models.BillType,
	month models.BillingMonth, bills []*models.Bill) (int, error) {

	if len(bills) == 0 {
		return 0, nil
	}

	n, err := tx.InsertBills(ctx, billType, bills)
	if err != nil {
		return 0, apperr.From(err)
	}

	perSociety := make(map[uuid.UUID]int)
	var order []uuid.UUID
	for _, b := range bills {
		if _, ok := perSociety[b.SocietyID]; !ok {
			order = append(order, b.SocietyID)
		}
		perSociety[b.SocietyID]++
	}

	activity := models.ActivityRentGenerated
	if billType == models.BillTypeMaintenance {
		activity = models.ActivityMaintenanceGenerated
	}

	for _, id := range order {
		societyID := id
		err := tx.CreateActivityLog(ctx, &models.ActivityLog{
			SocietyID:   &societyID,
			ActorID:     &actor.UserID,
			Type:        activity,
			Description: fmt.Sprintf("Generated %s bills for %s", billType, month),
			Details: models.Variables{
				"month": month.String(),
				"bills": perSociety[id],
			},
		})
		if err != nil {
			return 0, apperr.From(err)
		}
	}

	return int(n), nil
}

func (g *Generator) observe(result *Result, err error) {
	status := "success"
	if err != nil {
		status = string(apperr.KindOf(err))
	}
	metrics.BillingRuns.WithLabelValues(string(result.Type), string(g.trigger), status).Inc()

	if err != nil {
		log.Warn().
			Err(err).
			Str("type", string(result.Type)).
			Str("month", result.Month.String()).
			Str("trigger", string(g.trigger)).
			Msg("Billing run rejected")
		return
	}

	metrics.BillsGenerated.WithLabelValues(string(result.Type), string(g.trigger)).Add(float64(result.Created))
	metrics.BillsSkipped.WithLabelValues(string(result.Type), string(g.trigger)).Add(float64(result.Skipped))

	log.Info().
		Str("type", string(result.Type)).
		Str("month", result.Month.String()).
		Str("trigger", string(g.trigger)).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Msg("Billing run completed")
}

// MarkOverdue flags unpaid rent whose due date is before asOf
func (g *Generator) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var marked int64
	err := storage.WithTx(ctx, g.store, func(tx storage.Store) error {
		n, err := tx.MarkRentOverdue(ctx, asOf)
		if err != nil {
			return apperr.From(err)
		}
		marked = n
		if n == 0 {
			return nil
		}

		err = tx.CreateActivityLog(ctx, &models.ActivityLog{
			Type:        models.ActivityRentOverdue,
			Level:       models.ActivityLevelWarning,
			Description: fmt.Sprintf("Marked %d rent bills overdue", n),
			Details:     models.Variables{"asOf": asOf.UTC().Format(time.RFC3339), "bills": n},
		})
		if err != nil {
			return apperr.From(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.RentMarkedOverdue.Add(float64(marked))
	log.Info().Int64("bills", marked).Str("trigger", string(g.trigger)).Msg("Overdue rent marked")

	return marked, nil
}

// BillQuery narrows a bill listing
type BillQuery struct {
	SocietyID *uuid.UUID
	Month     *models.BillingMonth
	Status    *models.BillStatus
}

// ListBills lists bills visible to actor. Admins see their societies'
// bills; owners and tenants see the bills of their own flat.
func (g *Generator) ListBills(ctx context.Context, actor models.Actor, billType models.BillType, q BillQuery, limit, offset int) ([]*models.Bill, int64, error) {
	if !billType.Valid() {
		return nil, 0, apperr.BadRequest("unknown bill type %q", billType)
	}

	filters := storage.BillFilters{Month: q.Month, Status: q.Status}
	switch actor.Role {
	case models.RoleAdmin:
		filters.AdminID = &actor.UserID
		filters.SocietyID = q.SocietyID

	case models.RoleOwner, models.RoleTenant:
		flatFilters := storage.FlatFilters{OwnerID: &actor.UserID}
		if actor.Role == models.RoleTenant {
			flatFilters = storage.FlatFilters{TenantID: &actor.UserID}
		}
		flats, err := g.store.ListFlats(ctx, flatFilters)
		if err != nil {
			return nil, 0, apperr.From(err)
		}
		if len(flats) == 0 {
			return []*models.Bill{}, 0, nil
		}
		filters.FlatID = &flats[0].ID

	default:
		return nil, 0, apperr.Forbidden("unknown role %q", actor.Role)
	}

	bills, total, err := g.store.ListBills(ctx, billType, filters, limit, offset)
	if err != nil {
		return nil, 0, apperr.From(err)
	}
	return bills, total, nil
}
