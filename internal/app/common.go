package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/c9install/internal/arch"
	"github.com/blackwell-systems/c9install/internal/config"
	"github.com/blackwell-systems/c9install/internal/installed"
	"github.com/blackwell-systems/c9install/internal/installer"
	"github.com/blackwell-systems/c9install/internal/managers"
	"github.com/blackwell-systems/c9install/internal/output"
	"github.com/blackwell-systems/c9install/internal/registry"
	"github.com/blackwell-systems/c9install/internal/store"
)

// errInstallFailed is returned once the failure has been reported.
var errInstallFailed = errors.New("installation failed")

// newProber is replaced in tests so they never run uname.
var newProber = func() arch.Prober { return arch.UnameProber{} }

// appContext holds what the install commands share.
type appContext struct {
	cfg      config.Config
	logger   *log.Logger
	registry *registry.Registry
	record   *installed.Store
	arch     *arch.Detector
	history  *store.Store
}

func loadConfig() (config.Config, *log.Logger, error) {
	cfg, err := config.Load(config.Overrides{
		Dir:        dirFlag,
		ConfigFile: configFlag,
		LogLevel:   logLevelFlag,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.NewLogger(cfg.LogLevel, logOutput)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newAppContext() (*appContext, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, err
	}

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	history, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open install history: %w", err)
	}
	if err := history.CreateSchema(); err != nil {
		history.Close()
		return nil, fmt.Errorf("failed to create install history schema: %w", err)
	}

	return &appContext{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		record:   installed.NewStore(cfg.Record, logger),
		arch:     arch.New(newProber(), logger),
		history:  history,
	}, nil
}

func (a *appContext) Close() {
	a.arch.Close()
	a.history.Close()
}

// loadRecord reads the installed record. A missing record means nothing
// is installed yet.
func (a *appContext) loadRecord() error {
	_, err := a.record.Load()
	if err != nil && !errors.Is(err, installed.ErrRecordMissing) {
		return fmt.Errorf("failed to read installed record: %w", err)
	}
	return nil
}

// newFactory returns a factory wired to the shared stores, with the
// history recorder subscribed. The host counts as ready once the record is
// loaded.
func (a *appContext) newFactory(manualStart bool) (*installer.Factory, error) {
	f, err := installer.NewFactory(installer.Options{
		Store:       a.record,
		Arch:        a.arch,
		Executor:    registry.Executor{Registry: a.registry},
		Logger:      a.logger,
		ManualStart: manualStart,
	})
	if err != nil {
		return nil, err
	}
	f.Subscribe(store.NewRecorder(a.history, a.logger).Handle)
	f.MarkSystemReady()
	return f, nil
}

func buildRegistry(cfg config.Config, logger *log.Logger) (*registry.Registry, error) {
	reg := registry.New()
	managers.Register(reg, managers.Config{
		BrewPath: cfg.BrewPath,
		ExecPTY:  cfg.ExecPTY,
		WorkDir:  cfg.Dir,
	})
	n, err := reg.ApplyAliases(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load manager aliases: %w", err)
	}
	if n > 0 {
		logger.Debug("loaded manager aliases", "count", n)
	}
	return reg, nil
}

// prepare waits until s is populated. A session that failed to populate
// is reported as an error.
func prepare(ctx context.Context, s *installer.Session) error {
	select {
	case <-s.Populated():
	case <-s.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.State() == installer.StateFailed {
		return fmt.Errorf("failed to prepare %s: %w", s.Package().Name, s.Err())
	}
	if s.State() == installer.StateAborted {
		return installer.ErrAborted
	}
	return nil
}

// report prints the outcome of a run.
func report(out, errOut io.Writer, res *installer.Result, err error) error {
	if err == nil {
		fmt.Fprint(out, output.CompletionMessage(res))
		return nil
	}
	if errors.Is(err, installer.ErrAborted) {
		fmt.Fprintln(out, "Installation aborted")
		return err
	}
	fmt.Fprint(errOut, output.FailureMessage(err))
	return errInstallFailed
}

// abortOnInterrupt aborts the engine on SIGINT or SIGTERM until the
// returned function is called.
func abortOnInterrupt(e *installer.Engine, logger *log.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("aborting installation", "signal", sig)
			e.Abort()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// confirm prompts on out and accepts "y" or "yes" from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
