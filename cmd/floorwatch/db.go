package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dialflow/floorwatch/internal/config"
	"github.com/dialflow/floorwatch/internal/db"
	"github.com/dialflow/floorwatch/internal/status"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Floorwatch database",
		Long:  "Migrates all tables and seeds the status catalogue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "floorwatch.yaml", "path to Floorwatch config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database %q\n", cfg.DB.Driver, databaseName(cfg))

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedStatusCatalog(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d statuses:", len(status.All()))
	for _, s := range status.All() {
		fmt.Fprintf(out, " %s", s.Code)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nFloorwatch database initialized successfully.")
	return nil
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  "Runs AutoMigrate for all tables without reseeding. Safe to run on an initialized database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "floorwatch.yaml", "path to Floorwatch config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

// connectFromConfig loads the config file and opens the configured backend.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var gormDB *gorm.DB
	switch cfg.DB.Driver {
	case "mysql":
		gormDB, err = db.Connect(cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	default:
		gormDB, err = db.ConnectSQLite(cfg.DB.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", databaseName(cfg), err)
	}

	return cfg, gormDB, nil
}

func databaseName(cfg *config.Config) string {
	if cfg.DB.Driver == "mysql" {
		return cfg.DB.Database
	}
	return cfg.DB.Path
}
