package cli

import (
	"context"
	"database/sql"
	"log"

	"github.com/sat-prep/backend/internal/config"
	"github.com/sat-prep/backend/internal/database"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "satprep",
	Short: "SAT practice backend",
	Long:  "satprep serves the SAT practice API and manages its question bank.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: postgres or sqlite (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("db-dsn", "", "Database DSN (overrides DATABASE_URL and DB_* variables)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

// loadConfig reads the environment and applies flag overrides, which win.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db-dsn"); v != "" {
		cfg.DBDSN = v
	}
	return cfg
}

// openDB connects and brings the schema up to date.
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, cfg.DBDriver); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("[db] connected (%s), migrations applied", cfg.DBDriver)
	return db, nil
}
