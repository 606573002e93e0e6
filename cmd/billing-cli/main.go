package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var configFile string
	rootCmd := &cobra.Command{
		Use:          "billing-cli",
		Short:        "One-shot billing runs and schema migrations",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config/society-server.yml", "Configuration file path")

	rootCmd.AddCommand(
		migrateCmd(&configFile),
		rentCmd(&configFile),
		maintenanceCmd(&configFile),
		overdueCmd(&configFile),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
