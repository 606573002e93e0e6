package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/societyhub/society-server/internal/billing"
	"github.com/societyhub/society-server/internal/config"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/storage"
)

// openStore loads the configuration and opens the configured database
func openStore(configFile string) (*storage.SQLStore, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN, storage.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

// adminActor loads the admin the run is performed as
func adminActor(ctx context.Context, store storage.Store, raw string) (models.Actor, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid --admin %q: %w", raw, err)
	}

	user, err := store.GetUser(ctx, id)
	if err != nil {
		return models.Actor{}, fmt.Errorf("load admin %s: %w", id, err)
	}
	if user.Role != models.RoleAdmin || !user.IsActive {
		return models.Actor{}, fmt.Errorf("user %s is not an active admin", id)
	}

	return models.Actor{UserID: user.ID, Role: user.Role}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configFile)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			version, err := store.MigrationVersion(ctx)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}

			fmt.Printf("Schema is at version %d\n", version)
			return nil
		},
	}
}

func rentCmd(configFile *string) *cobra.Command {
	var month, admin, society string

	cmd := &cobra.Command{
		Use:   "rent",
		Short: "Generate rent bills for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			billingMonth, err := models.ParseBillingMonth(month)
			if err != nil {
				return err
			}

			var societyID *uuid.UUID
			if society != "" {
				id, err := uuid.Parse(society)
				if err != nil {
					return fmt.Errorf("invalid --society %q: %w", society, err)
				}
				societyID = &id
			}

			store, err := openStore(*configFile)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			actor, err := adminActor(ctx, store, admin)
			if err != nil {
				return err
			}

			result, err := billing.NewGenerator(store).WithTrigger(billing.TriggerCLI).
				GenerateRent(ctx, actor, billingMonth, societyID)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&month, "month", models.MonthOf(time.Now()).String(), "Billing month (YYYY-MM)")
	cmd.Flags().StringVar(&admin, "admin", "", "Admin user id the run is performed as")
	cmd.Flags().StringVar(&society, "society", "", "Limit the run to one society")
	_ = cmd.MarkFlagRequired("admin")

	return cmd
}

func maintenanceCmd(configFile *string) *cobra.Command {
	var month, admin, society string

	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Generate maintenance bills for a society and month",
		RunE: func(cmd *cobra.Command, args []string) error {
			billingMonth, err := models.ParseBillingMonth(month)
			if err != nil {
				return err
			}
			societyID, err := uuid.Parse(society)
			if err != nil {
				return fmt.Errorf("invalid --society %q: %w", society, err)
			}

			store, err := openStore(*configFile)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			actor, err := adminActor(ctx, store, admin)
			if err != nil {
				return err
			}

			result, err := billing.NewGenerator(store).WithTrigger(billing.TriggerCLI).
				GenerateMaintenance(ctx, actor, societyID, billingMonth)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&month, "month", models.MonthOf(time.Now()).String(), "Billing month (YYYY-MM)")
	cmd.Flags().StringVar(&admin, "admin", "", "Admin user id the run is performed as")
	cmd.Flags().StringVar(&society, "society", "", "Society to bill")
	_ = cmd.MarkFlagRequired("admin")
	_ = cmd.MarkFlagRequired("society")

	return cmd
}

func overdueCmd(configFile *string) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Mark unpaid rent past its due date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now().UTC()
			if asOf != "" {
				t, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: %w", asOf, err)
				}
				at = t
			}

			store, err := openStore(*configFile)
			if err != nil {
				return err
			}
			defer store.Close()

			marked, err := billing.NewGenerator(store).WithTrigger(billing.TriggerCLI).MarkOverdue(cmd.Context(), at)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"asOf": at, "marked": marked})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "Cut-off date (YYYY-MM-DD), defaults to now")

	return cmd
}
