package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"strikearr/internal/config"
	"strikearr/internal/ledger"
	"strikearr/internal/logging"
	"strikearr/internal/notifications"
	"strikearr/internal/poller"
	"strikearr/internal/remediate"
	"strikearr/internal/strike"
)

// Daemon coordinates the per-instance poll loops and enforces single-instance
// execution.
type Daemon struct {
	holder     *config.Holder
	store      *ledger.Store
	notifier   *notifier
	remediator *remediate.Remediator
	factory    poller.ClientFactory
	logger     *slog.Logger
	now        func() time.Time
	watch      bool
	serveAPI   bool

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	loops     map[string]*loop
	startedAt time.Time
	api       *apiServer
}

type loop struct {
	poller *poller.Poller
	cancel context.CancelFunc
	done   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	ConfigPath     string
	ConfigLoadedAt time.Time
	LockPath       string
	Channels       []string
	Instances      []poller.Status
	Totals         map[string]map[strike.Category]int
	Database       ledger.DatabaseHealth
}

// Option customises a Daemon.
type Option func(*Daemon)

// WithClientFactory overrides how instance API clients are built.
func WithClientFactory(factory poller.ClientFactory) Option {
	return func(d *Daemon) {
		if factory != nil {
			d.factory = factory
		}
	}
}

// WithClock overrides the clock handed to pollers.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) {
		if now != nil {
			d.now = now
		}
	}
}

// WithoutWatch disables the config file watcher. Reload can still be called.
func WithoutWatch() Option {
	return func(d *Daemon) { d.watch = false }
}

// WithoutAPI disables the HTTP query API.
func WithoutAPI() Option {
	return func(d *Daemon) { d.serveAPI = false }
}

// New constructs a daemon around an already resolved configuration snapshot
// and an open ledger. The daemon owns the ledger from here on and closes it
// in Close.
func New(snap *config.Snapshot, store *ledger.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if snap == nil || snap.Config == nil || store == nil {
		return nil, errors.New("daemon requires configuration snapshot and ledger")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	notify := newNotifier(notifications.NewFromConfig(snap.Config, logger))
	lockPath := snap.Config.LockPath()
	d := &Daemon{
		holder:     config.NewHolder(snap),
		store:      store,
		notifier:   notify,
		remediator: remediate.New(store, notify, logger),
		factory:    poller.NewHTTPClientFactory(logger),
		logger:     logger,
		now:        time.Now,
		watch:      true,
		serveAPI:   true,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		loops:      make(map[string]*loop),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock and launches the poll loops, the ledger
// sweeper, the config watcher, and the query API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another strikearr daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	snap := d.holder.Load()

	if d.serveAPI {
		srv := newAPIServer(snap.Config.API, d, d.logger)
		if err := srv.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx, d.cancel = nil, nil
			return fmt.Errorf("start api: %w", err)
		}
		d.mu.Lock()
		d.api = srv
		d.mu.Unlock()
	}

	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()
	d.running.Store(true)

	d.reconcile()

	d.wg.Add(1)
	go d.runSweeper(d.ctx)
	if d.watch && strings.TrimSpace(snap.Path) != "" {
		d.wg.Add(1)
		go d.watchConfig(d.ctx, snap.Path)
	}

	d.logger.Info("strikearr daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("instances", len(snap.Config.EnabledInstances())),
		logging.String("notifications", d.notifier.summary()),
	)
	return nil
}

// Stop cancels the poll loops, waits for in-flight items, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}

	d.mu.Lock()
	loops := d.loops
	d.loops = make(map[string]*loop)
	srv := d.api
	d.api = nil
	d.mu.Unlock()

	for _, l := range loops {
		l.cancel()
		<-l.done
	}
	d.wg.Wait()
	srv.stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx, d.cancel = nil, nil
	d.logger.Info("strikearr daemon stopped")
}

// Close stops the daemon, drains pending notifications, and closes the ledger.
func (d *Daemon) Close() error {
	d.Stop()
	d.notifier.close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Snapshot returns the active configuration snapshot.
func (d *Daemon) Snapshot() *config.Snapshot {
	return d.holder.Load()
}

// reconcile starts a loop for every enabled instance without one and stops
// loops whose instance was removed or disabled.
func (d *Daemon) reconcile() {
	if !d.running.Load() {
		return
	}
	cfg := d.holder.Load().Config
	want := make(map[string]config.Instance)
	for _, inst := range cfg.EnabledInstances() {
		want[inst.Name] = inst
	}

	var stopped []*loop
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	for name, l := range d.loops {
		if _, ok := want[name]; ok {
			continue
		}
		stopped = append(stopped, l)
		delete(d.loops, name)
		d.logger.Info("instance loop stopping", logging.String(logging.FieldInstance, name))
	}
	for name := range want {
		if _, ok := d.loops[name]; ok {
			continue
		}
		d.loops[name] = d.startLoop(name)
	}
	d.mu.Unlock()

	for _, l := range stopped {
		l.cancel()
		<-l.done
	}
}

// startLoop must be called with d.mu held.
func (d *Daemon) startLoop(name string) *loop {
	ctx, cancel := context.WithCancel(d.ctx)
	p := poller.New(name, d.holder, d.store, d.remediator, d.factory, d.logger, poller.WithClock(d.now))
	l := &loop{poller: p, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		if err := p.Run(ctx); err != nil {
			d.logger.Error("instance loop exited", logging.String(logging.FieldInstance, name), logging.Error(err))
		}
	}()
	d.logger.Info("instance loop started", logging.String(logging.FieldInstance, name))
	return l
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	snap := d.holder.Load()

	d.mu.Lock()
	instances := make([]poller.Status, 0, len(d.loops))
	for _, l := range d.loops {
		instances = append(instances, l.poller.Status())
	}
	startedAt := d.startedAt
	d.mu.Unlock()
	slices.SortFunc(instances, func(a, b poller.Status) int {
		return strings.Compare(a.Instance, b.Instance)
	})

	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      startedAt,
		ConfigPath:     snap.Path,
		ConfigLoadedAt: snap.LoadedAt,
		LockPath:       d.lockPath,
		Channels:       d.notifier.channels(),
		Instances:      instances,
	}
	totals, err := d.store.Totals(ctx)
	if err != nil {
		d.logger.Warn("strike totals unavailable", logging.Error(err))
	}
	status.Totals = totals
	health, err := d.store.CheckHealth(ctx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	status.Database = health
	return status
}

// Strikes lists ledger records, optionally filtered.
func (d *Daemon) Strikes(ctx context.Context, filter ledger.Filter) ([]strike.Record, error) {
	return d.store.List(ctx, filter)
}

// Actions returns the most recent remediation actions, newest first.
func (d *Daemon) Actions(ctx context.Context, limit int) ([]strike.Action, error) {
	return d.store.RecentActions(ctx, limit)
}

// TestNotification sends a test message on every configured channel and
// returns the channel names it tried.
func (d *Daemon) TestNotification(ctx context.Context) ([]string, error) {
	return d.notifier.test(ctx)
}
