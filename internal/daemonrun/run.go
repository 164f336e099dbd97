package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"strikearr/internal/config"
	"strikearr/internal/daemon"
	"strikearr/internal/daemonctl"
	"strikearr/internal/ledger"
	"strikearr/internal/logging"
	"strikearr/internal/metrics"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Foreground keeps log output on stdout only, without the log file.
	Foreground bool
}

// Run starts the strikearr daemon and blocks until SIGINT or SIGTERM.
// Configuration errors during startup are returned; everything after Start
// is handled inside the daemon.
func Run(cmdCtx context.Context, cfg *config.Config, configPath string, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout"}
	if !opts.Foreground {
		outputs = append(outputs, cfg.LogPath())
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	snap, err := config.Resolve(signalCtx, cfg, configPath)
	if err != nil {
		logger.Error("resolve configuration", logging.Error(err))
		return err
	}

	store, err := ledger.Open(cfg.Ledger.Path, ledger.WithHistoryLimit(cfg.Ledger.HistoryLimit))
	if err != nil {
		logger.Error("open strike ledger", logging.Error(err))
		return err
	}

	metrics.Init()
	d, err := daemon.New(snap, store, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the api bind address and that no other daemon holds the lock"),
		)
		return err
	}

	// The pid file is only written while the lock is held.
	pidPath := cfg.PIDPath()
	if err := daemonctl.WritePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("strikearr daemon shutting down")
	return nil
}
