package remediate

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"strikearr/internal/arr"
	"strikearr/internal/config"
	"strikearr/internal/logging"
	"strikearr/internal/metrics"
	"strikearr/internal/notifications"
	"strikearr/internal/services"
	"strikearr/internal/strike"
)

const (
	defaultBackoff    = 2 * time.Second
	maxBackoff        = 30 * time.Second
	defaultAttempts   = 3
	removalEventType  = "queue_item_removed"
	removalFailedType = "queue_item_removal_failed"
)

// Ledger is the subset of the strike store the remediator mutates.
type Ledger interface {
	RecordStrike(ctx context.Context, key strike.Key, title, cycleID string) (int, error)
	Clear(ctx context.Context, instanceID, identity string) (int64, error)
	RecordAction(ctx context.Context, action strike.Action) (strike.Action, error)
}

// Target is the instance an item belongs to together with its API client.
type Target struct {
	Instance config.Instance
	Client   arr.Client
}

// Remediator applies strike decisions for every instance.
type Remediator struct {
	ledger  Ledger
	emitter notifications.Emitter
	logger  *slog.Logger
	backoff time.Duration
	sleep   func(context.Context, time.Duration) error
}

// Option customises a Remediator.
type Option func(*Remediator)

// WithBackoff sets the initial delay between removal attempts.
func WithBackoff(d time.Duration) Option {
	return func(r *Remediator) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// New builds a remediator. A nil emitter discards events.
func New(store Ledger, emitter notifications.Emitter, logger *slog.Logger, opts ...Option) *Remediator {
	r := &Remediator{
		ledger:  store,
		emitter: emitter,
		logger:  logging.NewComponentLogger(logger, "remediate"),
		backoff: defaultBackoff,
		sleep:   sleepWithContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process records strikes for item and performs removal when any category
// has reached its threshold. The returned action is what was appended to the
// action log. Only a failed removal yields a *RemediationError.
func (r *Remediator) Process(ctx context.Context, cycleID string, item arr.QueueItem, categories []strike.Category, target Target, snap *config.Snapshot) (strike.Action, error) {
	categories = strike.Sort(categories)
	if len(categories) == 0 {
		return strike.Action{}, nil
	}
	if snap == nil || snap.Config == nil {
		return strike.Action{}, services.Wrap(services.ErrConfiguration, "remediate", "process", "configuration snapshot unavailable", nil)
	}
	inst := target.Instance
	logger := logging.WithContext(ctx, r.logger).With(
		logging.String(logging.FieldInstance, inst.Name),
		logging.String(logging.FieldIdentity, item.Identity),
	)

	action := strike.Action{
		CycleID:    cycleID,
		InstanceID: inst.Name,
		Identity:   item.Identity,
		Title:      item.Title,
		Kind:       strike.StrikeOnly,
		Categories: categories,
		Counts:     make(map[strike.Category]int, len(categories)),
	}

	var reached []strike.Category
	for _, category := range categories {
		key := strike.Key{InstanceID: inst.Name, Identity: item.Identity, Category: category}
		count, err := r.ledger.RecordStrike(ctx, key, item.Title, cycleID)
		if err != nil {
			return action, services.Wrap(services.ErrTransient, "remediate", "record strike", key.String(), err)
		}
		metrics.ObserveStrike(inst.Name, string(category))
		action.Counts[category] = count
		threshold := snap.Threshold(inst, category)
		logger.Info("strike recorded",
			logging.String(logging.FieldCategory, string(category)),
			logging.Int("count", count),
			logging.Int("threshold", threshold),
			logging.String("title", item.Title),
		)
		if strike.Reached(count, threshold) {
			reached = append(reached, category)
		}
	}

	for _, category := range categories {
		if category == strike.DownloadCleaned {
			continue
		}
		r.emit(notifications.Event{
			Type:       notifications.EventForCategory(category),
			InstanceID: inst.Name,
			Item:       item,
			Categories: categories,
			Count:      action.Counts[category],
		})
	}

	var removeErr error
	if len(reached) > 0 {
		action.Kind = strike.RemoveAndBlock
		removeErr = r.remove(ctx, logger, item, reached, target, snap, &action)
	}

	stored, err := r.ledger.RecordAction(ctx, action)
	if err != nil {
		logging.WarnWithContext(logger, "failed to append action log", "action_log_failed",
			logging.String(logging.FieldErrorHint, "check ledger database health with strikearr status"),
			logging.String(logging.FieldImpact, "action history is incomplete"),
			logging.Error(err),
		)
	} else {
		action = stored
	}
	metrics.ObserveAction(inst.Name, string(action.Kind))
	return action, removeErr
}

func (r *Remediator) remove(ctx context.Context, logger *slog.Logger, item arr.QueueItem, reached []strike.Category, target Target, snap *config.Snapshot, action *strike.Action) error {
	inst := target.Instance
	reasons := make([]string, 0, len(reached))
	for _, c := range reached {
		reasons = append(reasons, string(c))
	}

	// A vanished item is already out of the queue; only announce the cleanup.
	if slices.Contains(action.Categories, strike.QueueItemDeleted) {
		action.Removed = true
		logger.Info("queue item already removed upstream",
			logging.String(logging.FieldEventType, removalEventType),
			logging.Any("reasons", reasons),
		)
		r.emitCleaned(inst.Name, item, action)
		return nil
	}

	blocked := snap.BlockList(inst.Name).Blocked(item.Filename)
	if target.Client == nil {
		err := services.Wrap(services.ErrConfiguration, "remediate", "remove", "no client for "+inst.Name, nil)
		action.Error = err.Error()
		return &RemediationError{InstanceID: inst.Name, Identity: item.Identity, Err: err}
	}

	attempts := snap.Config.Engine.RemoveAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	opts := arr.RemoveOptions{RemoveFromClient: true, Blocklist: blocked, SkipRedownload: true}
	made, err := r.removeWithRetry(ctx, logger, target, item, opts, attempts)
	if err != nil {
		metrics.ObserveRemovalFailure(inst.Name)
		action.Error = err.Error()
		logging.WarnWithContext(logger, "queue item removal failed", removalFailedType,
			logging.Int("attempts", made),
			logging.Any("reasons", reasons),
			logging.String(logging.FieldErrorHint, "check instance connectivity and API key"),
			logging.String(logging.FieldImpact, "strikes kept; removal retried next cycle"),
			logging.Error(err),
		)
		return &RemediationError{InstanceID: inst.Name, Identity: item.Identity, Attempts: made, Err: err}
	}
	action.Removed = true
	action.Blocked = blocked

	if blocked {
		callCtx, cancel := context.WithTimeout(ctx, inst.RequestTimeout())
		err := target.Client.TriggerResearch(callCtx, item)
		cancel()
		if err != nil {
			logging.WarnWithContext(logger, "re-search request failed", "research_failed",
				logging.String(logging.FieldErrorHint, "trigger a manual search in the instance UI"),
				logging.String(logging.FieldImpact, "no replacement release was requested"),
				logging.Error(err),
			)
		} else {
			action.Researched = true
		}
	}

	if cleared, err := r.ledger.Clear(ctx, inst.Name, item.Identity); err != nil {
		logging.WarnWithContext(logger, "failed to clear strike records", "ledger_clear_failed",
			logging.String(logging.FieldErrorHint, "records will age out with the expiry sweep"),
			logging.Error(err),
		)
	} else {
		logger.Debug("strike records cleared", logging.Int64("records", cleared))
	}

	logger.Info("queue item removed",
		logging.String(logging.FieldEventType, removalEventType),
		logging.Any("reasons", reasons),
		logging.Bool("blocked", blocked),
		logging.Bool("researched", action.Researched),
		logging.String("filename", item.Filename),
	)
	r.emitCleaned(inst.Name, item, action)
	return nil
}

func (r *Remediator) removeWithRetry(ctx context.Context, logger *slog.Logger, target Target, item arr.QueueItem, opts arr.RemoveOptions, attempts int) (int, error) {
	timeout := target.Instance.RequestTimeout()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := target.Client.RemoveQueueItem(callCtx, item, opts)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if attempt == attempts || errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrRemediation) {
			return attempt, lastErr
		}
		backoff := r.backoff * time.Duration(1<<uint(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		logger.Debug("removal attempt failed; retrying",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", backoff),
			logging.Error(err),
		)
		if err := r.sleep(ctx, backoff); err != nil {
			return attempt, errors.Join(lastErr, err)
		}
	}
	return attempts, lastErr
}

func (r *Remediator) emitCleaned(instance string, item arr.QueueItem, action *strike.Action) {
	count := 0
	for _, c := range action.Counts {
		count = max(count, c)
	}
	r.emit(notifications.Event{
		Type:       notifications.EventDownloadCleaned,
		InstanceID: instance,
		Item:       item,
		Categories: action.Categories,
		Count:      count,
	})
}

func (r *Remediator) emit(event notifications.Event) {
	if r.emitter == nil {
		return
	}
	event.Timestamp = time.Now()
	r.emitter.Dispatch(event)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
