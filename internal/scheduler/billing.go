package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/billing"
	"github.com/societyhub/society-server/internal/config"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

const societyPageSize = 100

// Summary reports one scheduled pass over all societies
type Summary struct {
	Societies int `json:"societies"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// BillingScheduler runs the current month's billing for every society on
// the configured schedules
type BillingScheduler struct {
	store     storage.Store
	generator *billing.Generator
	config    config.BillingConfig
	now       func() time.Time
	cron      *cron.Cron
	mu        sync.Mutex
	running   bool
}

// NewBillingScheduler creates a new billing scheduler
func NewBillingScheduler(store storage.Store, cfg config.BillingConfig) *BillingScheduler {
	return &BillingScheduler{
		store:     store,
		generator: billing.NewGenerator(store).WithTrigger(billing.TriggerScheduler),
		config:    cfg,
		now:       time.Now,
	}
}

// Start starts the scheduler
func (s *BillingScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if !s.config.SchedulerEnabled {
		log.Info().Msg("Billing scheduler is disabled")
		return nil
	}

	s.cron = cron.New(cron.WithLocation(time.UTC))

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) Summary
	}{
		{"rent", s.config.RentSchedule, s.RunRent},
		{"maintenance", s.config.MaintenanceSchedule, s.RunMaintenance},
		{"overdue", s.config.OverdueSchedule, s.RunOverdue},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.schedule, func() { job.run(context.Background()) }); err != nil {
			log.Error().Err(err).Str("job", job.name).Str("schedule", job.schedule).Msg("Failed to schedule billing job")
			return err
		}
	}

	s.cron.Start()
	s.running = true

	log.Info().
		Str("rent", s.config.RentSchedule).
		Str("maintenance", s.config.MaintenanceSchedule).
		Str("overdue", s.config.OverdueSchedule).
		Msg("Billing scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *BillingScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cron == nil {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	log.Info().Msg("Billing scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *BillingScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunRent bills the current month's rent for every society
func (s *BillingScheduler) RunRent(ctx context.Context) Summary {
	month := models.MonthOf(s.now())

	return s.eachSociety(ctx, "rent", func(actor models.Actor, society *models.Society) (*billing.Result, error) {
		return s.generator.GenerateRent(ctx, actor, month, &society.ID)
	})
}

// RunMaintenance bills the current month's maintenance for every society
// whose policy is due this month
func (s *BillingScheduler) RunMaintenance(ctx context.Context) Summary {
	month := models.MonthOf(s.now())

	return s.eachSociety(ctx, "maintenance", func(actor models.Actor, society *models.Society) (*billing.Result, error) {
		if !society.MaintenancePolicy.BillsIn(month) {
			return nil, nil
		}
		return s.generator.GenerateMaintenance(ctx, actor, society.ID, month)
	})
}

// RunOverdue marks unpaid rent past its due date
func (s *BillingScheduler) RunOverdue(ctx context.Context) Summary {
	var summary Summary

	if _, err := s.generator.MarkOverdue(ctx, s.now()); err != nil {
		log.Error().Err(err).Msg("Failed to mark overdue rent")
		summary.Failed++
	}

	return summary
}

// eachSociety runs fn as the admin of every society. Societies with nothing
// to bill, or already billed, count as skipped.
func (s *BillingScheduler) eachSociety(ctx context.Context, job string, fn func(models.Actor, *models.Society) (*billing.Result, error)) Summary {
	startTime := time.Now()
	var summary Summary

	log.Info().Str("job", job).Msg("Starting scheduled billing")

	for offset := 0; ; offset += societyPageSize {
		societies, _, err := s.store.ListSocieties(ctx, nil, societyPageSize, offset)
		if err != nil {
			log.Error().Err(err).Str("job", job).Msg("Failed to list societies for billing")
			summary.Failed++
			break
		}

		for _, society := range societies {
			summary.Societies++
			actor := models.Actor{UserID: society.AdminID, Role: models.RoleAdmin}

			result, err := fn(actor, society)
			switch apperr.KindOf(err) {
			case "":
				if result == nil {
					continue
				}
				summary.Created += result.Created
				summary.Skipped += result.Skipped
			case apperr.KindConflict, apperr.KindBadRequest:
				log.Debug().Err(err).Str("job", job).Str("society_id", society.ID.String()).Msg("Nothing to bill")
			default:
				log.Warn().Err(err).Str("job", job).Str("society_id", society.ID.String()).Msg("Scheduled billing failed")
				summary.Failed++
			}
		}

		if len(societies) < societyPageSize {
			break
		}
	}

	log.Info().
		Str("job", job).
		Int("societies", summary.Societies).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(startTime)).
		Msg("Completed scheduled billing")

	return summary
}
