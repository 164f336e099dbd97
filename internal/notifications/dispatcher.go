package notifications

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"strikearr/internal/config"
	"strikearr/internal/logging"
	"strikearr/internal/metrics"
	"strikearr/internal/services"
)

const defaultSendTimeout = 10 * time.Second

// Emitter accepts events for delivery. Implementations must not block on
// network I/O.
type Emitter interface {
	Dispatch(event Event)
}

// Route binds a channel to the event types it should receive.
type Route struct {
	Channel Channel
	Events  config.EventToggles
}

// dedupKey includes the strike count, so each new strike on an item is
// delivered and only repeats of the same count are debounced.
type dedupKey struct {
	channel  string
	typ      EventType
	instance string
	identity string
	count    int
}

// Dispatcher fans events out to every routed channel.
type Dispatcher struct {
	routes  []Route
	timeout time.Duration
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	recent map[dedupKey]time.Time
	closed bool
	wg     sync.WaitGroup
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the dedup clock.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New builds a dispatcher over explicit routes. A zero window disables dedup.
func New(routes []Route, timeout, window time.Duration, logger *slog.Logger, opts ...Option) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	d := &Dispatcher{
		routes:  routes,
		timeout: timeout,
		window:  window,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		now:     time.Now,
		recent:  make(map[dedupKey]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFromConfig builds a dispatcher for every enabled channel in cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Dispatcher {
	n := cfg.Notifications
	client := &http.Client{Timeout: cfg.NotificationTimeout()}
	var routes []Route
	if n.Apprise.Enabled {
		routes = append(routes, Route{
			Channel: NewAppriseChannel(n.Apprise.URL, n.Apprise.Key, n.Apprise.Tag, client),
			Events:  n.Apprise.Events,
		})
	}
	if n.Notifiarr.Enabled {
		routes = append(routes, Route{
			Channel: NewNotifiarrChannel(n.Notifiarr.BaseURL, n.Notifiarr.APIKey, n.Notifiarr.ChannelID, client),
			Events:  n.Notifiarr.Events,
		})
	}
	if n.Ntfy.Enabled {
		routes = append(routes, Route{
			Channel: NewNtfyChannel(n.Ntfy.Topic, n.Ntfy.Priority, client),
			Events:  n.Ntfy.Events,
		})
	}
	return New(routes, cfg.NotificationTimeout(), cfg.DedupWindow(), logger, opts...)
}

// Channels lists the routed channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.routes))
	for _, r := range d.routes {
		names = append(names, r.Channel.Name())
	}
	return names
}

// Dispatch queues event for every channel whose toggles allow it.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	now := d.now()
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("dispatcher closed; dropping event", logging.String(logging.FieldEventType, string(event.Type)))
		return
	}
	d.pruneLocked(now)
	pending := make([]Channel, 0, len(d.routes))
	for _, r := range d.routes {
		if !Enabled(event.Type, r.Events) {
			continue
		}
		name := r.Channel.Name()
		if d.window > 0 {
			key := dedupKey{channel: name, typ: event.Type, instance: event.InstanceID, identity: event.Item.Identity, count: event.Count}
			if last, ok := d.recent[key]; ok && now.Sub(last) < d.window {
				metrics.ObserveNotification(name, "suppressed")
				d.logger.Debug("notification suppressed by dedup window",
					logging.String("channel", name),
					logging.String(logging.FieldEventType, string(event.Type)),
					logging.String(logging.FieldInstance, event.InstanceID),
					logging.String(logging.FieldIdentity, event.Item.Identity),
				)
				continue
			}
			d.recent[key] = now
		}
		pending = append(pending, r.Channel)
	}
	d.wg.Add(len(pending))
	d.mu.Unlock()

	for _, ch := range pending {
		go func(ch Channel) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			_ = d.send(ctx, ch, event)
		}(ch)
	}
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, event Event) error {
	name := ch.Name()
	if err := ch.Send(ctx, event); err != nil {
		metrics.ObserveNotification(name, "failed")
		logging.WarnWithContext(d.logger, "notification delivery failed", "notification_failed",
			logging.String("channel", name),
			logging.String("notification_type", string(event.Type)),
			logging.String(logging.FieldInstance, event.InstanceID),
			logging.String(logging.FieldIdentity, event.Item.Identity),
			logging.String(logging.FieldErrorHint, "check the "+name+" endpoint and credentials"),
			logging.String(logging.FieldImpact, "operators were not notified of this event"),
			logging.Error(err),
		)
		return services.Wrap(services.ErrNotification, "notifications", "send", name, err)
	}
	metrics.ObserveNotification(name, "sent")
	d.logger.Debug("notification sent",
		logging.String("channel", name),
		logging.String("notification_type", string(event.Type)),
		logging.String(logging.FieldIdentity, event.Item.Identity),
	)
	return nil
}

func (d *Dispatcher) pruneLocked(now time.Time) {
	if d.window <= 0 {
		return
	}
	for key, at := range d.recent {
		if now.Sub(at) >= d.window {
			delete(d.recent, key)
		}
	}
}

// Test sends a test event to every routed channel synchronously and returns
// the joined delivery errors.
func (d *Dispatcher) Test(ctx context.Context) error {
	if len(d.routes) == 0 {
		return services.Wrap(services.ErrNotification, "notifications", "test", "no notification channels are enabled", nil)
	}
	event := Event{
		Type:      EventTest,
		Timestamp: d.now(),
		Message:   "Notification system test",
	}
	var errs []error
	for _, r := range d.routes {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.send(sendCtx, r.Channel, event)
		cancel()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and waits for in-flight sends.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Summary describes the dispatcher for status output.
func (d *Dispatcher) Summary() string {
	names := d.Channels()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
