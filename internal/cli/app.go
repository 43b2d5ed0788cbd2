// Package cli implements the notekeep command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notekeep/notekeep/internal/config"
	"github.com/notekeep/notekeep/internal/migrate"
	"github.com/notekeep/notekeep/internal/reminder"
	"github.com/notekeep/notekeep/internal/repository"
	"github.com/notekeep/notekeep/internal/repository/postgres"
	"github.com/notekeep/notekeep/internal/repository/sqlite"
	"github.com/notekeep/notekeep/internal/service"
)

// App carries the wired services shared by all commands.
type App struct {
	Cfg    *config.Config
	Log    *zap.Logger
	Notes  service.NoteService
	Labels service.LabelService
	Sched  reminder.Scheduler

	noteRepo  repository.NoteRepository
	labelRepo repository.LabelRepository

	closers []func()
}

// Close releases storage handles in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// logAlarm is the CLI stand-in for a platform alarm facility. It only
// records what would fire; notifications are the shell's problem.
type logAlarm struct{ log *zap.Logger }

func (l logAlarm) Schedule(noteID int64, at time.Time) {
	l.log.Info("reminder scheduled", zap.Int64("note_id", noteID), zap.Time("at", at))
}

func (l logAlarm) Cancel(noteID int64) {
	l.log.Debug("reminder canceled", zap.Int64("note_id", noteID))
}

func newLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(cfg.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func (a *App) init(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a.Cfg = cfg

	log, err := newLogger(cfg.Logger)
	if err != nil {
		return err
	}
	a.Log = log
	a.closers = append(a.closers, func() { _ = log.Sync() })

	switch cfg.Storage.Driver {
	case "postgres":
		if err := migrate.UpPostgres(ctx, cfg.Storage.DSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		db, err := postgres.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.noteRepo = postgres.NewNoteRepo(db)
		a.labelRepo = postgres.NewLabelRepo(db)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
			return err
		}
		if err := migrate.UpSQLite(ctx, cfg.Storage.Path); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		db, err := sqlite.New(ctx, cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.noteRepo = sqlite.NewNoteRepo(db)
		a.labelRepo = sqlite.NewLabelRepo(db)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	a.Sched = reminder.NewAlarmScheduler(a.noteRepo, logAlarm{log: log}, time.Now, log)
	a.Notes = service.NewNoteService(a.noteRepo, a.labelRepo, a.Sched, cfg.Trash.Retention, time.Now, log)
	a.Labels = service.NewLabelService(a.labelRepo, a.noteRepo)

	// Enforce the trash retention window before any command runs.
	if _, err := a.Notes.PurgeTrash(ctx); err != nil {
		log.Warn("trash purge failed", zap.Error(err))
	}
	return nil
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}
	var configPath string

	root := &cobra.Command{
		Use:           "notekeep",
		Short:         "Keep notes, lists, labels and reminders",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd.Context(), configPath)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		newAddCmd(app),
		newListCmd(app),
		newShowCmd(app),
		newSearchCmd(app),
		newPinCmd(app),
		newArchiveCmd(app),
		newTrashCmd(app),
		newRestoreCmd(app),
		newDeleteCmd(app),
		newPurgeCmd(app),
		newLabelCmd(app),
		newRemindCmd(app),
		newExportCmd(app),
		newImportCmd(app),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}
