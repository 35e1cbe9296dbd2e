package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/boardstore/internal/config"
	"github.com/roach88/boardstore/internal/kv"
	"github.com/roach88/boardstore/internal/logging"
	"github.com/roach88/boardstore/internal/model"
	"github.com/roach88/boardstore/internal/repo"
	"github.com/roach88/boardstore/internal/storeerr"
	"github.com/roach88/boardstore/internal/view"
)

// Session is one open store with everything a command needs.
type Session struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    kv.Store
	Repo     *repo.Repository
	View     *view.ViewCache
	Prefs    *config.Preferences
	Registry *prometheus.Registry
}

// openSession loads the config, opens and instruments the store, registers
// the catalog and checks the driver preference.
func (o *RootOptions) openSession(ctx context.Context) (*Session, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.DB != "" {
		cfg.Path = o.DB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, o.Verbose)
	if err != nil {
		return nil, err
	}

	path := cfg.DataPath()
	if cfg.Driver != kv.DriverMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	open := o.openStore
	if open == nil {
		open = kv.Open
	}
	store, err := open(cfg.Driver, path)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	store = kv.Instrument(store, kv.NewMetrics(reg), cfg.Driver)
	r := repo.New(store, repo.WithLogger(logger), repo.WithDriverName(cfg.Driver))
	if err := model.Register(r); err != nil {
		_ = store.Close()
		return nil, err
	}

	prefs := config.NewPreferences(r)
	stored, err := prefs.CheckDriver(ctx, cfg.Driver)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if stored != cfg.Driver {
		logger.Warn("store was written by another driver",
			zap.String("stored", stored), zap.String("active", cfg.Driver))
	}
	logger.Debug("store opened", zap.String("driver", cfg.Driver), zap.String("path", path))

	return &Session{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Repo:     r,
		View:     view.New(r, view.WithLogger(logger)),
		Prefs:    prefs,
		Registry: reg,
	}, nil
}

// Close closes the store and flushes the logger.
func (s *Session) Close() error {
	_ = s.Logger.Sync()
	return s.Store.Close()
}

// withSession opens a session, runs fn, closes the session and turns any
// error into formatted output plus an ExitError.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *Session, f *OutputFormatter) error) error {
	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := opts.openSession(ctx)
	if err != nil {
		return fail(f, err)
	}
	err = fn(ctx, s, f)
	if cerr := s.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close store: %w", cerr)
	}
	if err != nil {
		return fail(f, err)
	}
	return nil
}

// usageError reports a malformed argument.
func usageError(format string, args ...any) error {
	return NewExitError(ExitFailure, fmt.Sprintf(format, args...))
}

// fail writes err through the formatter and maps it to an exit code.
// Validation errors exit with ExitFailure, everything else with
// ExitCommandError.
func fail(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_ = f.Error(ErrCodeUsage, exitErr.Message, nil)
		return err
	}

	code := storeerr.CodeOf(err)
	if code == "" {
		code = ErrCodeGeneric
	}
	var details any
	if fields := storeerr.FieldsOf(err); len(fields) > 0 {
		details = fields
	}
	_ = f.Error(code, err.Error(), details)

	exit := ExitCommandError
	if storeerr.IsValidation(err) {
		exit = ExitFailure
	}
	return WrapExitError(exit, code, err)
}
