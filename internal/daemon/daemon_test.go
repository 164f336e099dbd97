package daemon_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/arr"
	"strikearr/internal/config"
	"strikearr/internal/daemon"
	"strikearr/internal/ledger"
	"strikearr/internal/strike"
	"strikearr/internal/testsupport"
)

type fakeFactory struct {
	mu    sync.Mutex
	fakes map[string]*testsupport.FakeArr
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{fakes: make(map[string]*testsupport.FakeArr)}
}

func (f *fakeFactory) build(inst config.Instance) (arr.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fake, ok := f.fakes[inst.Name]
	if !ok {
		fake = testsupport.NewFakeArr()
		f.fakes[inst.Name] = fake
	}
	return fake, nil
}

func (f *fakeFactory) fetches(name string) int {
	f.mu.Lock()
	fake := f.fakes[name]
	f.mu.Unlock()
	if fake == nil {
		return 0
	}
	return fake.Fetches()
}

func instanceNames(status daemon.Status) []string {
	names := make([]string, 0, len(status.Instances))
	for _, inst := range status.Instances {
		names = append(names, inst.Instance)
	}
	sort.Strings(names)
	return names
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	snap := testsupport.MustSnapshot(t, cfg)
	store := testsupport.MustOpenLedger(t, cfg)
	factory := newFakeFactory()

	d, err := daemon.New(snap, store, nil, daemon.WithoutAPI(), daemon.WithoutWatch(), daemon.WithClientFactory(factory.build))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Start(ctx))
	assert.True(t, d.Running())
	assert.Error(t, d.Start(ctx), "second start on the same daemon")

	require.Eventually(t, func() bool { return factory.fetches("sonarr") >= 1 }, 5*time.Second, 10*time.Millisecond)

	status := d.Status(ctx)
	assert.True(t, status.Running)
	assert.Equal(t, []string{"sonarr"}, instanceNames(status))
	assert.Equal(t, os.Getpid(), status.PID)
	assert.True(t, status.Database.DatabaseExists)

	other, err := daemon.New(snap, store, nil, daemon.WithoutAPI(), daemon.WithoutWatch(), daemon.WithClientFactory(factory.build))
	require.NoError(t, err)
	assert.Error(t, other.Start(ctx), "lock is held by the first daemon")

	d.Stop()
	assert.False(t, d.Running())
	assert.Empty(t, d.Status(ctx).Instances)

	require.NoError(t, other.Start(ctx))
	other.Stop()
}

func TestDaemonSweepExpiresStaleStrikes(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	cfg := testsupport.NewConfig(t)
	cfg.Ledger.ResetInterval = 3600
	snap := testsupport.MustSnapshot(t, cfg)
	store := testsupport.MustOpenLedger(t, cfg, ledger.WithClock(clock))

	ctx := context.Background()
	key := strike.Key{InstanceID: "sonarr", Identity: "abc|Show", Category: strike.Stalled}
	_, err := store.RecordStrike(ctx, key, "Show", "cycle-1")
	require.NoError(t, err)

	d, err := daemon.New(snap, store, nil, daemon.WithoutAPI(), daemon.WithoutWatch())
	require.NoError(t, err)

	n, err := d.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	n, err = d.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := store.CurrentCount(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDaemonSweepDisabledByZeroInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ledger.ResetInterval = 0
	snap := testsupport.MustSnapshot(t, cfg)
	store := testsupport.MustOpenLedger(t, cfg)

	d, err := daemon.New(snap, store, nil, daemon.WithoutAPI(), daemon.WithoutWatch())
	require.NoError(t, err)

	n, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func writeConfig(t *testing.T, path, base string, pollInterval int, instances ...string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[engine]
poll_interval = %d

[ledger]
path = %q
`, filepath.Join(base, "state"), filepath.Join(base, "logs"), pollInterval, filepath.Join(base, "state", "ledger.db"))
	for i, name := range instances {
		content += fmt.Sprintf(`
[[instances]]
name = %q
service_type = "sonarr"
base_url = "http://127.0.0.1:%d"
api_key = "test"
`, name, 8989+i)
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDaemonReloadReconcilesInstances(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	writeConfig(t, path, base, 60, "sonarr")

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	snap, err := config.Resolve(context.Background(), cfg, resolved)
	require.NoError(t, err)
	store := testsupport.MustOpenLedger(t, cfg)
	factory := newFakeFactory()

	d, err := daemon.New(snap, store, nil, daemon.WithoutAPI(), daemon.WithoutWatch(), daemon.WithClientFactory(factory.build))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	assert.Equal(t, []string{"sonarr"}, instanceNames(d.Status(ctx)))

	writeConfig(t, path, base, 60, "sonarr", "sonarr-4k")
	require.NoError(t, d.Reload(ctx))
	assert.Equal(t, []string{"sonarr", "sonarr-4k"}, instanceNames(d.Status(ctx)))
	require.Eventually(t, func() bool { return factory.fetches("sonarr-4k") >= 1 }, 5*time.Second, 10*time.Millisecond)

	writeConfig(t, path, base, 1, "sonarr-4k")
	assert.Error(t, d.Reload(ctx), "poll interval below minimum is rejected")
	assert.Equal(t, []string{"sonarr", "sonarr-4k"}, instanceNames(d.Status(ctx)))
	assert.Equal(t, 60, d.Snapshot().Config.Engine.PollInterval)

	writeConfig(t, path, base, 60, "sonarr-4k")
	require.NoError(t, d.Reload(ctx))
	assert.Equal(t, []string{"sonarr-4k"}, instanceNames(d.Status(ctx)))
}

func TestDaemonTestNotificationWithoutChannels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	snap := testsupport.MustSnapshot(t, cfg)
	store := testsupport.MustOpenLedger(t, cfg)

	d, err := daemon.New(snap, store, nil, daemon.WithoutAPI(), daemon.WithoutWatch())
	require.NoError(t, err)

	channels, err := d.TestNotification(context.Background())
	assert.Empty(t, channels)
	assert.Error(t, err)
}
