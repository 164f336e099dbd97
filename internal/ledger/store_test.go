package ledger_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/ledger"
	"strikearr/internal/strike"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func openStore(t *testing.T, opts ...ledger.Option) (*ledger.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]ledger.Option{ledger.WithClock(clock.Now)}, opts...)
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func key(identity string, c strike.Category) strike.Key {
	return strike.Key{InstanceID: "sonarr", Identity: identity, Category: c}
}

func TestRecordStrikeIncrementsOncePerCycle(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	k := key("abc|Show.S01E01", strike.ImportFailed)

	for cycle := 1; cycle <= 3; cycle++ {
		id := fmt.Sprintf("cycle-%d", cycle)
		count, err := store.RecordStrike(ctx, k, "Show.S01E01", id)
		require.NoError(t, err)
		assert.Equal(t, cycle, count)

		again, err := store.RecordStrike(ctx, k, "Show.S01E01", id)
		require.NoError(t, err)
		assert.Equal(t, cycle, again, "replaying a cycle must not double count")
	}

	current, err := store.CurrentCount(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, 3, current)
}

func TestCountsNeverDecreaseWithoutClear(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()
	k := key("abc|Movie", strike.Stalled)

	last := 0
	for i := 0; i < 20; i++ {
		clock.Advance(time.Minute)
		count, err := store.RecordStrike(ctx, k, "", fmt.Sprintf("c%d", i%4))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, last)
		last = count
	}
}

func TestConcurrentStrikesSameCycleCountOnce(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	k := key("abc|Movie", strike.Slow)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RecordStrike(ctx, k, "Movie", "cycle-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.CurrentCount(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClearRemovesAllCategoriesForItem(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	_, err := store.RecordStrike(ctx, key("a", strike.Stalled), "", "c1")
	require.NoError(t, err)
	_, err = store.RecordStrike(ctx, key("a", strike.Slow), "", "c1")
	require.NoError(t, err)
	_, err = store.RecordStrike(ctx, key("b", strike.Slow), "", "c1")
	require.NoError(t, err)

	counts, err := store.Counts(ctx, "sonarr", "a")
	require.NoError(t, err)
	assert.Equal(t, map[strike.Category]int{strike.Stalled: 1, strike.Slow: 1}, counts)

	removed, err := store.Clear(ctx, "sonarr", "a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	counts, err = store.Counts(ctx, "sonarr", "a")
	require.NoError(t, err)
	assert.Empty(t, counts)

	remaining, err := store.CurrentCount(ctx, key("b", strike.Slow))
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestExpireOlderThan(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	_, err := store.RecordStrike(ctx, key("old", strike.Stalled), "", "c1")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = store.RecordStrike(ctx, key("fresh", strike.Stalled), "", "c2")
	require.NoError(t, err)

	removed, err := store.ExpireOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	records, err := store.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fresh", records[0].Identity)

	noop, err := store.ExpireOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, noop)
}

func TestListFilters(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	_, err := store.RecordStrike(ctx, key("a", strike.Stalled), "Title A", "c1")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = store.RecordStrike(ctx, strike.Key{InstanceID: "radarr", Identity: "b", Category: strike.Slow}, "Title B", "c1")
	require.NoError(t, err)

	all, err := store.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "radarr", all[0].InstanceID, "newest first")

	sonarr, err := store.List(ctx, ledger.Filter{InstanceID: "sonarr"})
	require.NoError(t, err)
	require.Len(t, sonarr, 1)
	assert.Equal(t, "Title A", sonarr[0].Title)
	assert.Equal(t, "c1", sonarr[0].LastCycle)
	assert.False(t, sonarr[0].FirstSeenAt.IsZero())

	totals, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals["radarr"][strike.Slow])
}

func TestRecordStrikeRejectsInvalidKey(t *testing.T) {
	store, _ := openStore(t)
	_, err := store.RecordStrike(context.Background(), strike.Key{InstanceID: "sonarr"}, "", "c1")
	assert.Error(t, err)
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	require.NoError(t, err)
	_, err = store.RecordStrike(context.Background(), key("a", strike.Stalled), "", "c1")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := ledger.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	count, err := reopened.CurrentCount(context.Background(), key("a", strike.Stalled))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
