package main

import (
	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			db, err := database.Open(cmd.Context(), cfg.Database(), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return runMigrations(db, cfg, logger)
		},
	}
}

func runMigrations(db database.DB, cfg *config.Config, logger ectologger.Logger) error {
	sqlxDB, err := database.Unwrap(db)
	if err != nil {
		return err
	}
	return database.NewMigrationService(logger, cfg.Migration()).MigratePostgres(sqlxDB, cfg.DatabaseName)
}
