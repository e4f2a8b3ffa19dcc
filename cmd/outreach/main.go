package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/config"
	"github.com/livinlefevreloca/outreach/internal/db"
	"github.com/livinlefevreloca/outreach/internal/logging"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

// app is the state shared by every command after the root pre-run
type app struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "outreach",
		Short: "Profile outreach campaign runner",
		Long: `outreach - Drive a list of profiles through enrichment, connection
requests and a follow-up message.

Examples:
  outreach migrate                    # Create or upgrade the database
  outreach import people.csv          # Register profiles from a CSV
  outreach run                        # One pass over campaign.input_csv
  outreach run --loop                 # Keep passing until interrupted
  outreach status                     # Profile counts and the last run
  outreach classify <profile-url>     # Inspect one profile's status
  outreach export -o profiles.jsonl   # Append newly enriched profiles`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to configuration file (TOML or YAML)")

	root.AddCommand(
		newMigrateCmd(a),
		newImportCmd(a),
		newRunCmd(a),
		newStatusCmd(a),
		newClassifyCmd(a),
		newExportCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger, err := logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openDB connects and applies migrations unless configured not to
func (a *app) openDB() (*db.DB, error) {
	a.logger.Info("connecting to database", "driver", a.cfg.Database.Driver, "dsn", a.cfg.Database.DSN)
	database, err := db.OpenWithConfig(a.cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if a.cfg.Database.SkipMigrations {
		a.logger.Info("skipping migrations", "reason", "configured to skip")
		return database, nil
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	version, err := database.SchemaVersion()
	if err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to get schema version")
	}
	a.logger.Info("database schema ready", "version", version)
	return database, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hints := errors.FlattenHints(err); hints != "" {
			fmt.Fprintln(os.Stderr, "hint:", hints)
		}
		os.Exit(1)
	}
}
