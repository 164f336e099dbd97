package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"strikearr/internal/arr"
	"strikearr/internal/classify"
	"strikearr/internal/config"
	"strikearr/internal/logging"
	"strikearr/internal/metrics"
	"strikearr/internal/remediate"
	"strikearr/internal/services"
	"strikearr/internal/strike"
)

const fallbackInterval = 10 * time.Minute

// SnapshotSource publishes the current configuration.
type SnapshotSource interface {
	Load() *config.Snapshot
}

// Ledger is the subset of the strike store the poller touches directly.
type Ledger interface {
	Clear(ctx context.Context, instanceID, identity string) (int64, error)
}

// Processor remediates one classified item.
type Processor interface {
	Process(ctx context.Context, cycleID string, item arr.QueueItem, categories []strike.Category, target remediate.Target, snap *config.Snapshot) (strike.Action, error)
}

// ClientFactory builds the API client for an instance configuration.
type ClientFactory func(inst config.Instance) (arr.Client, error)

// NewHTTPClientFactory returns a factory producing rate-limited HTTP clients.
func NewHTTPClientFactory(logger *slog.Logger) ClientFactory {
	return func(inst config.Instance) (arr.Client, error) {
		serviceType, err := arr.ParseServiceType(inst.ServiceType)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "poller", "build client", inst.Name, err)
		}
		return arr.NewHTTPClient(arr.Options{
			Name:              inst.Name,
			ServiceType:       serviceType,
			BaseURL:           inst.BaseURL,
			APIKey:            inst.APIKey,
			Timeout:           inst.RequestTimeout(),
			RequestsPerSecond: inst.RequestsPerSecond,
			Logger:            logger,
		})
	}
}

// Poller drives the cycle loop for one instance.
type Poller struct {
	name      string
	source    SnapshotSource
	ledger    Ledger
	processor Processor
	factory   ClientFactory
	tracker   *classify.Tracker
	logger    *slog.Logger
	now       func() time.Time

	clientMu   sync.Mutex
	client     arr.Client
	clientConf config.Instance

	mu     sync.RWMutex
	status Status
}

// Option customises a Poller.
type Option func(*Poller)

// WithClock overrides the clock used for classification.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a poller for the named instance.
func New(name string, source SnapshotSource, store Ledger, processor Processor, factory ClientFactory, logger *slog.Logger, opts ...Option) *Poller {
	if factory == nil {
		factory = NewHTTPClientFactory(logger)
	}
	p := &Poller{
		name:      name,
		source:    source,
		ledger:    store,
		processor: processor,
		factory:   factory,
		tracker:   classify.NewTracker(),
		logger:    logging.NewComponentLogger(logger, "poller").With(logging.String(logging.FieldInstance, name)),
		now:       time.Now,
		status:    Status{Instance: name, State: StateIdle},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the instance name.
func (p *Poller) Name() string { return p.name }

// Run executes a cycle immediately and then on every poll interval until ctx
// is cancelled. Interval changes from a reload apply at the next tick.
func (p *Poller) Run(ctx context.Context) error {
	defer p.setState(StateStopped)

	interval := p.interval()
	p.runCycle(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if next := p.interval(); next != interval {
				interval = next
				ticker.Reset(interval)
				p.logger.Info("poll interval changed", logging.Duration("interval", interval))
			}
			p.runCycle(ctx, interval)
		}
	}
}

func (p *Poller) runCycle(ctx context.Context, interval time.Duration) {
	if _, err := p.Cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		var transient *TransientInstanceError
		if errors.As(err, &transient) {
			logging.WarnWithContext(p.logger, "queue fetch failed; retrying next cycle", "queue_fetch_failed",
				logging.String(logging.FieldCycleID, transient.CycleID),
				logging.String(logging.FieldErrorHint, "check the instance base_url, api_key and network reachability"),
				logging.String(logging.FieldImpact, "no strikes recorded for this instance this cycle"),
				logging.Error(err),
			)
		} else {
			p.logger.Error("poll cycle failed", logging.Error(err))
		}
	}
	p.mu.Lock()
	p.status.NextCycleAt = p.now().Add(interval)
	p.mu.Unlock()
}

func (p *Poller) interval() time.Duration {
	snap := p.source.Load()
	if snap == nil || snap.Config == nil {
		return fallbackInterval
	}
	if d := snap.Config.PollInterval(); d > 0 {
		return d
	}
	return fallbackInterval
}

// Cycle performs one Fetching, Classifying, Remediating pass. Only a failed
// fetch or an unusable configuration returns an error; per-item failures are
// counted in the result.
func (p *Poller) Cycle(ctx context.Context) (CycleResult, error) {
	started := p.now()
	snap := p.source.Load()
	if snap == nil || snap.Config == nil {
		return CycleResult{Skipped: true}, services.Wrap(services.ErrConfiguration, "poller", "cycle", "configuration snapshot unavailable", nil)
	}
	inst, ok := snap.Config.Instance(p.name)
	if !ok || !inst.IsEnabled() {
		p.logger.Debug("instance disabled; skipping cycle")
		return CycleResult{Skipped: true}, nil
	}

	cycleID := uuid.NewString()
	ctx = services.WithInstance(ctx, p.name)
	ctx = services.WithCycleID(ctx, cycleID)
	logger := p.logger.With(logging.String(logging.FieldCycleID, cycleID))

	client, err := p.clientFor(inst)
	if err != nil {
		p.recordFailure(inst, cycleID, started, err)
		return CycleResult{CycleID: cycleID}, err
	}

	p.setState(StateFetching)
	items, err := client.FetchQueue(ctx)
	if err != nil {
		tErr := &TransientInstanceError{InstanceID: p.name, CycleID: cycleID, Err: err}
		p.recordFailure(inst, cycleID, started, tErr)
		metrics.ObservePoll(p.name, "error", 0, p.now().Sub(started))
		return CycleResult{CycleID: cycleID}, tErr
	}

	p.setState(StateClassifying)
	now := p.now()
	pass := p.tracker.Observe(items, now)
	cfg := snap.Config
	rules := classify.Rules{
		StallTimeout:  time.Duration(cfg.Engine.StallTimeout) * time.Second,
		MinSpeed:      int64(cfg.Engine.MinSpeedKBps) * 1024,
		MaxETA:        time.Duration(cfg.Engine.MaxETA) * time.Second,
		ImportMarkers: classify.DefaultImportMarkers,
	}
	filters := classify.Filters{
		MonitoredOnly:      cfg.MonitoredOnly(inst),
		SkipFutureReleases: cfg.SkipFutureReleases(inst),
	}

	result := CycleResult{CycleID: cycleID, QueueSize: len(pass.Current)}
	var work []job
	var completed []string
	for _, obs := range pass.Current {
		if obs.Item.Status == arr.StatusCompleted {
			completed = append(completed, obs.Item.Identity)
			continue
		}
		if !classify.Eligible(obs.Item, filters, now) {
			continue
		}
		categories := classify.Classify(obs, pass.PreviousOf(obs.Item.Identity), rules, now)
		if len(categories) > 0 {
			work = append(work, job{item: obs.Item, categories: categories})
		}
	}
	for _, obs := range pass.Vanished() {
		if !classify.Eligible(obs.Item, filters, now) {
			continue
		}
		result.Vanished++
		work = append(work, job{item: obs.Item, categories: []strike.Category{strike.QueueItemDeleted}})
	}
	logger.Debug("queue classified",
		logging.Int("items", len(pass.Current)),
		logging.Int("failing", len(work)),
		logging.Int("completed", len(completed)),
		logging.Bool("baseline", pass.Baseline),
	)

	p.setState(StateRemediating)
	result.Cleared = p.clearCompleted(ctx, logger, completed)
	p.remediate(ctx, logger, cycleID, work, remediate.Target{Instance: inst, Client: client}, snap, &result)

	duration := p.now().Sub(started)
	metrics.ObservePoll(p.name, "ok", result.QueueSize, duration)
	p.mu.Lock()
	p.status.ServiceType = inst.ServiceType
	p.status.State = StateIdle
	p.status.Cycles++
	p.status.LastCycleID = cycleID
	p.status.LastCycleAt = started
	p.status.LastDuration = duration
	p.status.QueueSize = result.QueueSize
	p.status.Struck = result.Struck
	p.status.Removed = result.Removed
	p.status.Failed = result.Failed
	p.status.TrackedItems = len(pass.Current)
	p.status.ConsecutiveFailures = 0
	if result.Failed == 0 {
		p.status.LastError = ""
	}
	p.mu.Unlock()

	logger.Info("poll cycle complete",
		logging.String(logging.FieldEventType, "poll_cycle_complete"),
		logging.Int("items", result.QueueSize),
		logging.Int("struck", result.Struck),
		logging.Int("removed", result.Removed),
		logging.Int("failed", result.Failed),
		logging.Duration("duration", duration),
	)
	return result, nil
}

type job struct {
	item       arr.QueueItem
	categories []strike.Category
}

func (p *Poller) remediate(ctx context.Context, logger *slog.Logger, cycleID string, work []job, target remediate.Target, snap *config.Snapshot, result *CycleResult) {
	if len(work) == 0 {
		return
	}
	workers := snap.Config.Engine.ItemWorkers
	if workers <= 0 {
		workers = 1
	}
	// In-flight items finish on a detached context; cancellation only stops
	// new items from starting.
	detached := context.WithoutCancel(ctx)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(workers)
	for i, j := range work {
		if ctx.Err() != nil {
			logger.Info("shutdown requested; leaving remaining items for the next run",
				logging.Int("remaining", len(work)-i))
			break
		}
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()

			itemCtx := services.WithIdentity(detached, j.item.Identity)
			action, err := p.processor.Process(itemCtx, cycleID, j.item, j.categories, target, snap)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				p.noteItemError(err)
				var remErr *remediate.RemediationError
				if !errors.As(err, &remErr) {
					logger.Error("item remediation failed",
						logging.String(logging.FieldIdentity, j.item.Identity),
						logging.Error(err),
					)
				}
				return nil
			}
			result.Struck++
			if action.Removed {
				result.Removed++
				p.tracker.Forget(j.item.Identity)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Poller) clearCompleted(ctx context.Context, logger *slog.Logger, identities []string) int {
	cleared := 0
	for _, identity := range identities {
		n, err := p.ledger.Clear(ctx, p.name, identity)
		if err != nil {
			logger.Warn("failed to clear strikes for completed item",
				logging.String(logging.FieldIdentity, identity),
				logging.Error(err),
			)
			continue
		}
		if n > 0 {
			cleared++
			logger.Debug("cleared strikes for completed item",
				logging.String(logging.FieldIdentity, identity),
				logging.Int64("records", n),
			)
		}
	}
	return cleared
}

func (p *Poller) clientFor(inst config.Instance) (arr.Client, error) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()
	if p.client != nil && sameConnection(p.clientConf, inst) {
		return p.client, nil
	}
	client, err := p.factory(inst)
	if err != nil {
		return nil, err
	}
	if p.client != nil {
		p.logger.Info("instance connection settings changed; rebuilt client")
	}
	p.client = client
	p.clientConf = inst
	return client, nil
}

func sameConnection(a, b config.Instance) bool {
	return a.ServiceType == b.ServiceType &&
		a.BaseURL == b.BaseURL &&
		a.APIKey == b.APIKey &&
		a.Timeout == b.Timeout &&
		a.RequestsPerSecond == b.RequestsPerSecond
}

func (p *Poller) recordFailure(inst config.Instance, cycleID string, started time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.ServiceType = inst.ServiceType
	p.status.State = StateIdle
	p.status.Cycles++
	p.status.LastCycleID = cycleID
	p.status.LastCycleAt = started
	p.status.LastDuration = p.now().Sub(started)
	p.status.LastError = err.Error()
	p.status.LastErrorAt = p.now()
	p.status.ConsecutiveFailures++
}

func (p *Poller) noteItemError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastError = err.Error()
	p.status.LastErrorAt = p.now()
}
