package cli

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"analyzeit/internal/shared/storage/db"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrateDB(cmd.Context(), v, db.RunMigrations)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrateDB(cmd.Context(), v, db.MigrationStatus)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrateDB(cmd.Context(), v, db.RollbackLast)
			},
		},
	)
	return cmd
}

func withMigrateDB(ctx context.Context, v *viper.Viper, run func(context.Context, *sql.DB) error) error {
	cfg := loadConfig(v)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return err
	}
	defer conn.Close()
	return run(ctx, conn.DB)
}
