// Package commands implements the agendactl subcommands. Every command
// works directly on the local state database named by the configuration.
package commands

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/agenda/internal/backup"
	"github.com/dukerupert/agenda/internal/config"
	"github.com/dukerupert/agenda/internal/database"
	"github.com/dukerupert/agenda/internal/logging"
	"github.com/dukerupert/agenda/internal/schedule"
	"github.com/dukerupert/agenda/internal/store"
)

// NewRootCmd creates the agendactl root command with all subcommands.
func NewRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "agendactl",
		Short:         "Manage a local agenda schedule",
		Long:          "Import, export, expand and snapshot the schedule stored in the agenda database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("AGENDA_CONFIG"), "path to YAML config file")

	env := &env{configPath: &configPath, stderr: os.Stderr}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		env.stderr = cmd.ErrOrStderr()
	}
	root.AddCommand(newExportCmd(env))
	root.AddCommand(newImportCmd(env))
	root.AddCommand(newExpandCmd(env))
	root.AddCommand(newAgendaCmd(env))
	root.AddCommand(newConvertCmd(env))
	root.AddCommand(newSnapshotCmd(env))
	root.AddCommand(newZonesCmd(env))
	return root
}

// env opens what a command needs from the shared --config flag.
type env struct {
	configPath *string
	stderr     io.Writer
}

type session struct {
	cfg      *config.Config
	db       *sql.DB
	service  *schedule.Service
	snapshot *backup.Manager
}

func (e *env) config() (*config.Config, error) {
	cfg, err := config.Load(*e.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (e *env) open() (*session, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	svc := schedule.New(store.NewStateStore(db), schedule.Options{
		Zone:        cfg.Timezone,
		DefaultView: cfg.DefaultView,
		DefaultSort: cfg.DefaultSort,
	})
	mgr := backup.NewManager(backup.Config{
		Dir:        cfg.Snapshots.Dir,
		Passphrase: cfg.Snapshots.Passphrase,
		Keep:       cfg.Snapshots.Keep,
	}, svc, store.NewSnapshotStore(db), nil, logging.New(e.stderr, cfg.LogLevel).With("component", "backup"))
	return &session{cfg: cfg, db: db, service: svc, snapshot: mgr}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}
