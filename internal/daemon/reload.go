package daemon

import (
	"context"
	"time"

	"strikearr/internal/config"
	"strikearr/internal/logging"
	"strikearr/internal/metrics"
	"strikearr/internal/notifications"
)

const defaultSweepInterval = time.Hour

// Reload re-reads the configuration file, resolves block-rule sources, and
// swaps the snapshot in. A file that fails to load, validate, or resolve is
// rejected and the previous snapshot stays active. Instance loops are added or
// stopped to match the new instance list; running loops pick up changes at
// their next cycle.
func (d *Daemon) Reload(ctx context.Context) error {
	prev := d.holder.Load()
	path := prev.Path

	cfg, _, _, err := config.Load(path)
	var next *config.Snapshot
	if err == nil {
		next, err = config.Resolve(ctx, cfg, path)
	}
	if err != nil {
		metrics.ObserveReload("rejected")
		logging.WarnWithContext(d.logger, "config reload rejected", "config_reload_rejected",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the configuration file; the previous configuration stays active"),
		)
		return err
	}

	d.holder.Swap(next)
	if prev.Config.Notifications != cfg.Notifications {
		d.notifier.swap(notifications.NewFromConfig(cfg, d.logger))
	}
	if prev.Config.API != cfg.API {
		d.logger.Warn("api settings changed; restart the daemon to apply them",
			logging.String("bind", cfg.API.Bind))
	}
	d.reconcile()

	metrics.ObserveReload("ok")
	d.logger.Info("configuration reloaded",
		logging.String("path", path),
		logging.Int("instances", len(cfg.EnabledInstances())),
		logging.String("notifications", d.notifier.summary()),
	)
	return nil
}

func (d *Daemon) watchConfig(ctx context.Context, path string) {
	defer d.wg.Done()
	err := config.Watch(ctx, path, 0, func() {
		_ = d.Reload(ctx)
	})
	if err != nil {
		logging.WarnWithContext(d.logger, "config watcher stopped", "config_watch_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "configuration changes require a restart"),
		)
	}
}

func (d *Daemon) runSweeper(ctx context.Context) {
	defer d.wg.Done()

	interval := d.sweepInterval()
	_, _ = d.Sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if next := d.sweepInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
			_, _ = d.Sweep(ctx)
		}
	}
}

func (d *Daemon) sweepInterval() time.Duration {
	if interval := d.holder.Load().Config.SweepInterval(); interval > 0 {
		return interval
	}
	return defaultSweepInterval
}

// Sweep forgets strike records older than the configured reset interval. A
// zero interval keeps records forever.
func (d *Daemon) Sweep(ctx context.Context) (int64, error) {
	age := d.holder.Load().Config.ResetInterval()
	if age <= 0 {
		return 0, nil
	}
	n, err := d.store.ExpireOlderThan(ctx, age)
	if err != nil {
		logging.WarnWithContext(d.logger, "strike expiry failed", "ledger_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale strikes are kept until the next sweep"),
		)
		return 0, err
	}
	metrics.ObserveExpired(n)
	if n > 0 {
		d.logger.Info("expired stale strikes", logging.Int64("records", n), logging.Duration("age", age))
	}
	return n, nil
}
