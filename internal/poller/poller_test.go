package poller_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/arr"
	"strikearr/internal/config"
	"strikearr/internal/ledger"
	"strikearr/internal/notifications"
	"strikearr/internal/poller"
	"strikearr/internal/remediate"
	"strikearr/internal/services"
	"strikearr/internal/strike"
	"strikearr/internal/testsupport"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	cfg    *config.Config
	holder *config.Holder
	store  *ledger.Store
	events *testsupport.EventRecorder
	clock  *clock
	fakes  map[string]*testsupport.FakeArr
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{
		cfg:    cfg,
		holder: config.NewHolder(testsupport.MustSnapshot(t, cfg)),
		store:  testsupport.MustOpenLedger(t, cfg),
		events: &testsupport.EventRecorder{},
		clock:  newClock(),
		fakes:  make(map[string]*testsupport.FakeArr),
	}
	for _, inst := range cfg.Instances {
		h.fakes[inst.Name] = testsupport.NewFakeArr()
	}
	return h
}

func (h *harness) poller(name string) *poller.Poller {
	factory := func(inst config.Instance) (arr.Client, error) {
		return h.fakes[inst.Name], nil
	}
	r := remediate.New(h.store, h.events, nil, remediate.WithBackoff(0))
	return poller.New(name, h.holder, h.store, r, factory, nil, poller.WithClock(h.clock.Now))
}

func (h *harness) counts(t *testing.T, instance, identity string) map[strike.Category]int {
	t.Helper()
	counts, err := h.store.Counts(context.Background(), instance, identity)
	require.NoError(t, err)
	return counts
}

func failedItem() arr.QueueItem {
	return arr.QueueItem{
		Identity:     "abc|Broken.Release",
		QueueID:      42,
		DownloadID:   "abc",
		Title:        "Broken.Release",
		Filename:     "Broken.Release.mkv",
		Status:       arr.StatusFailed,
		ErrorMessage: "Import failed, no files found",
		MediaID:      9,
	}
}

func TestImportFailedRemovedOnThirdCycle(t *testing.T) {
	h := newHarness(t)
	h.fakes["sonarr"].SetQueue(failedItem())
	p := h.poller("sonarr")
	ctx := context.Background()

	for cycle := 1; cycle <= 2; cycle++ {
		result, err := p.Cycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Struck)
		assert.Zero(t, result.Removed)
		assert.Equal(t, cycle, h.counts(t, "sonarr", "abc|Broken.Release")[strike.ImportFailed])
		h.clock.Advance(10 * time.Minute)
	}
	assert.Equal(t, []notifications.EventType{
		notifications.EventImportFailedStrike,
		notifications.EventImportFailedStrike,
	}, h.events.Types())
	h.events.Reset()

	result, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []notifications.EventType{
		notifications.EventImportFailedStrike,
		notifications.EventDownloadCleaned,
	}, h.events.Types())
	assert.Len(t, h.fakes["sonarr"].Removals(), 1)
	assert.Empty(t, h.counts(t, "sonarr", "abc|Broken.Release"))

	actions, err := h.store.RecentActions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, strike.RemoveAndBlock, actions[0].Kind)
	assert.Equal(t, 3, actions[0].Counts[strike.ImportFailed])
	assert.Equal(t, strike.StrikeOnly, actions[1].Kind)
	assert.Equal(t, strike.StrikeOnly, actions[2].Kind)

	// The engine removed the item itself; its absence is not a vanish.
	h.events.Reset()
	h.clock.Advance(10 * time.Minute)
	result, err = p.Cycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Vanished)
	assert.Empty(t, h.events.Types())
}

type deliveryChannel struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (c *deliveryChannel) Name() string { return "ntfy" }

func (c *deliveryChannel) Send(_ context.Context, event notifications.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *deliveryChannel) delivered() []notifications.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notifications.Event(nil), c.events...)
}

func TestImportFailedScenarioThroughDispatcher(t *testing.T) {
	cases := []struct {
		name           string
		cleanedEnabled bool
	}{
		{name: "download-cleaned enabled", cleanedEnabled: true},
		{name: "download-cleaned disabled", cleanedEnabled: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			toggles := h.cfg.Notifications.Ntfy.Events
			toggles.DownloadCleaned = tc.cleanedEnabled

			ch := &deliveryChannel{}
			dispatcher := notifications.New(
				[]notifications.Route{{Channel: ch, Events: toggles}},
				time.Second, h.cfg.DedupWindow(), nil, notifications.WithClock(h.clock.Now))

			factory := func(inst config.Instance) (arr.Client, error) {
				return h.fakes[inst.Name], nil
			}
			r := remediate.New(h.store, dispatcher, nil, remediate.WithBackoff(0))
			p := poller.New("sonarr", h.holder, h.store, r, factory, nil, poller.WithClock(h.clock.Now))
			h.fakes["sonarr"].SetQueue(failedItem())

			ctx := context.Background()
			for cycle := 1; cycle <= 3; cycle++ {
				_, err := p.Cycle(ctx)
				require.NoError(t, err)
				// Back-to-back cycles, well inside the dedup window.
				h.clock.Advance(2 * time.Second)
			}
			dispatcher.Close()

			strikeCounts := []int{}
			cleaned := 0
			for _, event := range ch.delivered() {
				switch event.Type {
				case notifications.EventImportFailedStrike:
					strikeCounts = append(strikeCounts, event.Count)
				case notifications.EventDownloadCleaned:
					cleaned++
				default:
					t.Fatalf("unexpected event %s", event.Type)
				}
			}
			assert.ElementsMatch(t, []int{1, 2, 3}, strikeCounts)
			if tc.cleanedEnabled {
				assert.Equal(t, 1, cleaned)
			} else {
				assert.Zero(t, cleaned)
			}
			assert.Len(t, h.fakes["sonarr"].Removals(), 1)
		})
	}
}

func TestVanishedItemProducesSingleEvent(t *testing.T) {
	h := newHarness(t)
	item := arr.QueueItem{
		Identity:        "dl-7|Show.S02E03",
		QueueID:         7,
		Title:           "Show.S02E03",
		Status:          arr.StatusDownloading,
		DownloadedBytes: 100,
		TotalBytes:      1000,
	}
	h.fakes["sonarr"].SetQueue(item)
	p := h.poller("sonarr")
	ctx := context.Background()

	_, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.events.Types())

	h.fakes["sonarr"].SetQueue()
	h.clock.Advance(time.Minute)
	result, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Vanished)
	assert.Equal(t, []notifications.EventType{notifications.EventQueueItemDeleted}, h.events.Types())
	assert.Equal(t, 1, h.counts(t, "sonarr", item.Identity)[strike.QueueItemDeleted])

	h.clock.Advance(time.Minute)
	_, err = p.Cycle(ctx)
	require.NoError(t, err)
	assert.Len(t, h.events.Types(), 1)
	assert.Equal(t, 1, h.counts(t, "sonarr", item.Identity)[strike.QueueItemDeleted])
	assert.Empty(t, h.fakes["sonarr"].Removals())
}

func TestStalledStrikesOncePerCycle(t *testing.T) {
	h := newHarness(t, testsupport.WithEngine(func(e *config.Engine) {
		e.StallTimeout = 60
	}))
	item := arr.QueueItem{
		Identity:        "dl-8|Movie.2024",
		QueueID:         8,
		Title:           "Movie.2024",
		Status:          arr.StatusDownloading,
		DownloadedBytes: 500,
		TotalBytes:      1000,
	}
	h.fakes["sonarr"].SetQueue(item)
	p := h.poller("sonarr")
	ctx := context.Background()

	_, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.counts(t, "sonarr", item.Identity))

	for want := 1; want <= 2; want++ {
		h.clock.Advance(2 * time.Minute)
		_, err := p.Cycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, h.counts(t, "sonarr", item.Identity)[strike.Stalled])
	}
}

func TestFetchFailureIsIsolatedPerInstance(t *testing.T) {
	h := newHarness(t, testsupport.WithInstances(
		config.Instance{Name: "sonarr", ServiceType: "sonarr", BaseURL: "http://127.0.0.1:8989", APIKey: "a", Timeout: 5},
		config.Instance{Name: "radarr", ServiceType: "radarr", BaseURL: "http://127.0.0.1:7878", APIKey: "b", Timeout: 5},
	))
	h.fakes["sonarr"].FailFetch(services.Wrap(services.ErrTransient, "arr", "fetch queue", "", errors.New("401 unauthorized")))
	item := failedItem()
	item.Identity = "xyz|Movie"
	h.fakes["radarr"].SetQueue(item)

	sonarr := h.poller("sonarr")
	radarr := h.poller("radarr")
	ctx := context.Background()

	_, err := sonarr.Cycle(ctx)
	require.Error(t, err)
	var transient *poller.TransientInstanceError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, "sonarr", transient.InstanceID)
	assert.True(t, errors.Is(err, services.ErrTransient))

	status := sonarr.Status()
	assert.Equal(t, poller.StateIdle, status.State)
	assert.Contains(t, status.LastError, "401 unauthorized")
	assert.Equal(t, 1, status.ConsecutiveFailures)

	result, err := radarr.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Struck)
	assert.Empty(t, radarr.Status().LastError)
}

func TestFetchFailureLeavesTrackerUntouched(t *testing.T) {
	h := newHarness(t)
	item := arr.QueueItem{
		Identity:        "dl-9|Album",
		QueueID:         9,
		Title:           "Album",
		Status:          arr.StatusDownloading,
		DownloadedBytes: 10,
		TotalBytes:      100,
	}
	fake := h.fakes["sonarr"]
	fake.SetQueue(item)
	p := h.poller("sonarr")
	ctx := context.Background()

	_, err := p.Cycle(ctx)
	require.NoError(t, err)

	fake.FailFetch(errors.New("connection refused"))
	_, err = p.Cycle(ctx)
	require.Error(t, err)

	fake.FailFetch(nil)
	result, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Vanished)
	assert.Empty(t, h.events.Types())
	assert.Zero(t, p.Status().ConsecutiveFailures)
}

func TestCompletedItemsClearStrikes(t *testing.T) {
	h := newHarness(t)
	item := failedItem()
	fake := h.fakes["sonarr"]
	fake.SetQueue(item)
	p := h.poller("sonarr")
	ctx := context.Background()

	_, err := p.Cycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, h.counts(t, "sonarr", item.Identity)[strike.ImportFailed])

	item.Status = arr.StatusCompleted
	item.ErrorMessage = ""
	fake.SetQueue(item)
	result, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleared)
	assert.Empty(t, h.counts(t, "sonarr", item.Identity))
}

func TestMonitoredOnlyFiltersItems(t *testing.T) {
	h := newHarness(t, testsupport.WithEngine(func(e *config.Engine) {
		e.MonitoredOnly = true
	}))
	h.fakes["sonarr"].SetQueue(failedItem())
	p := h.poller("sonarr")

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Struck)
	assert.Empty(t, h.events.Types())
}

func TestDisabledInstanceIsSkipped(t *testing.T) {
	disabled := false
	h := newHarness(t, testsupport.WithInstances(config.Instance{
		Name: "sonarr", ServiceType: "sonarr", BaseURL: "http://127.0.0.1:8989", APIKey: "a", Enabled: &disabled,
	}))
	p := h.poller("sonarr")

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, h.fakes["sonarr"].Fetches())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	p := h.poller("sonarr")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.fakes["sonarr"].Fetches() >= 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, poller.StateStopped, p.Status().State)
	assert.EqualValues(t, 1, p.Status().Cycles)
}
