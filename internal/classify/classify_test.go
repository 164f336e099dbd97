package classify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/arr"
	"strikearr/internal/classify"
	"strikearr/internal/strike"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func item(identity string, status arr.Status, bytes int64) arr.QueueItem {
	return arr.QueueItem{
		Identity:        identity,
		Title:           identity,
		Status:          status,
		DownloadedBytes: bytes,
		TotalBytes:      1 << 30,
		Category:        "tv-sonarr",
		Monitored:       true,
	}
}

func classifyPass(pass classify.Pass, rules classify.Rules, now time.Time) map[string][]strike.Category {
	out := make(map[string][]strike.Category)
	for _, obs := range pass.Current {
		out[obs.Item.Identity] = classify.Classify(obs, pass.PreviousOf(obs.Item.Identity), rules, now)
	}
	return out
}

func TestImportFailedNeedsPreviousPresenceAfterBaseline(t *testing.T) {
	tracker := classify.NewTracker()
	rules := classify.Rules{}

	first := tracker.Observe([]arr.QueueItem{item("abc", arr.StatusFailed, 0)}, t0)
	assert.Equal(t, []strike.Category{strike.ImportFailed}, classifyPass(first, rules, t0)["abc"],
		"first poll has no baseline so presence is waived")

	second := tracker.Observe([]arr.QueueItem{
		item("abc", arr.StatusFailed, 0),
		item("new", arr.StatusFailed, 0),
	}, t0.Add(time.Minute))
	got := classifyPass(second, rules, t0.Add(time.Minute))
	assert.Equal(t, []strike.Category{strike.ImportFailed}, got["abc"])
	assert.Empty(t, got["new"], "items new to a baselined instance wait one poll")
}

func TestWarningRequiresImportMarker(t *testing.T) {
	warn := item("w", arr.StatusWarning, 0)
	warn.StatusMessages = []string{"Download client unreachable"}
	prev := classify.Observation{Item: warn, ObservedAt: t0}
	cur := classify.Observation{Item: warn, ObservedAt: t0.Add(time.Minute), LastProgressAt: t0}
	assert.Empty(t, classify.Classify(cur, &prev, classify.Rules{}, t0.Add(time.Minute)))

	warn.StatusMessages = []string{"No files found are eligible for import in /downloads/x"}
	cur.Item = warn
	assert.Equal(t, []strike.Category{strike.ImportFailed}, classify.Classify(cur, &prev, classify.Rules{}, t0.Add(time.Minute)))
}

func TestStalledUsesPreservedProgressReference(t *testing.T) {
	tracker := classify.NewTracker()
	rules := classify.Rules{StallTimeout: 10 * time.Minute}

	tracker.Observe([]arr.QueueItem{item("s", arr.StatusDownloading, 500)}, t0)

	mid := tracker.Observe([]arr.QueueItem{item("s", arr.StatusDownloading, 500)}, t0.Add(5*time.Minute))
	assert.Empty(t, classifyPass(mid, rules, t0.Add(5*time.Minute))["s"])
	assert.Equal(t, t0, mid.Current[0].LastProgressAt)

	late := tracker.Observe([]arr.QueueItem{item("s", arr.StatusDownloading, 500)}, t0.Add(11*time.Minute))
	assert.Equal(t, []strike.Category{strike.Stalled}, classifyPass(late, rules, t0.Add(11*time.Minute))["s"])

	moved := tracker.Observe([]arr.QueueItem{item("s", arr.StatusDownloading, 600)}, t0.Add(12*time.Minute))
	assert.Empty(t, classifyPass(moved, rules, t0.Add(12*time.Minute))["s"])
	assert.Equal(t, t0.Add(12*time.Minute), moved.Current[0].LastProgressAt)
}

func TestStalledCoversZeroByteMetadataDownloads(t *testing.T) {
	tracker := classify.NewTracker()
	rules := classify.Rules{StallTimeout: time.Minute}
	meta := item("m", arr.StatusDownloading, 0)
	meta.TotalBytes = 0

	tracker.Observe([]arr.QueueItem{meta}, t0)
	pass := tracker.Observe([]arr.QueueItem{meta}, t0.Add(2*time.Minute))
	assert.Equal(t, []strike.Category{strike.Stalled}, classifyPass(pass, rules, t0.Add(2*time.Minute))["m"])
}

func TestReplayWithoutTimeAdvanceIsIdempotent(t *testing.T) {
	tracker := classify.NewTracker()
	rules := classify.Rules{StallTimeout: 10 * time.Minute, MinSpeed: 1 << 20}
	queue := []arr.QueueItem{item("r", arr.StatusDownloading, 100)}

	tracker.Observe(queue, t0)
	for i := 0; i < 3; i++ {
		pass := tracker.Observe(queue, t0.Add(time.Minute))
		assert.Empty(t, classifyPass(pass, rules, t0.Add(time.Minute))["r"], "replay %d", i)
	}
}

func TestSlowByThroughput(t *testing.T) {
	tracker := classify.NewTracker()
	rules := classify.Rules{MinSpeed: 100 * 1024}

	tracker.Observe([]arr.QueueItem{item("slow", arr.StatusDownloading, 0)}, t0)
	pass := tracker.Observe([]arr.QueueItem{item("slow", arr.StatusDownloading, 60*1024)}, t0.Add(time.Minute))
	assert.Equal(t, []strike.Category{strike.Slow}, classifyPass(pass, rules, t0.Add(time.Minute))["slow"])

	fast := tracker.Observe([]arr.QueueItem{item("slow", arr.StatusDownloading, 60*1024+60*1024*1024)}, t0.Add(2*time.Minute))
	assert.Empty(t, classifyPass(fast, rules, t0.Add(2*time.Minute))["slow"])
}

func TestSlowByETA(t *testing.T) {
	rules := classify.Rules{MaxETA: time.Hour}
	prevItem := item("eta", arr.StatusDownloading, 0)
	curItem := item("eta", arr.StatusDownloading, 1024)
	curItem.EstimatedCompletion = t0.Add(3 * time.Hour)

	prev := classify.Observation{Item: prevItem, ObservedAt: t0.Add(-time.Minute)}
	cur := classify.Observation{Item: curItem, ObservedAt: t0, LastProgressAt: t0}
	assert.Equal(t, []strike.Category{strike.Slow}, classify.Classify(cur, &prev, rules, t0))

	curItem.EstimatedCompletion = t0.Add(10 * time.Minute)
	cur.Item = curItem
	assert.Empty(t, classify.Classify(cur, &prev, rules, t0))
}

func TestMultipleCategoriesInOneCycle(t *testing.T) {
	rules := classify.Rules{MinSpeed: 1 << 30}
	prevItem := item("multi", arr.StatusDownloading, 0)
	curItem := item("multi", arr.StatusDownloading, 10)
	curItem.Category = "tv-other"

	prev := classify.Observation{Item: prevItem, ObservedAt: t0}
	cur := classify.Observation{Item: curItem, ObservedAt: t0.Add(time.Minute), LastProgressAt: t0.Add(time.Minute)}
	assert.Equal(t, []strike.Category{strike.Slow, strike.CategoryChanged},
		classify.Classify(cur, &prev, rules, t0.Add(time.Minute)))
}

func TestVanishedSkipsFinishedDownloads(t *testing.T) {
	tracker := classify.NewTracker()
	tracker.Observe([]arr.QueueItem{
		item("gone", arr.StatusDownloading, 10),
		item("done", arr.StatusCompleted, 10),
		item("importing", arr.StatusImporting, 10),
		item("stays", arr.StatusDownloading, 10),
	}, t0)

	pass := tracker.Observe([]arr.QueueItem{item("stays", arr.StatusDownloading, 20)}, t0.Add(time.Minute))
	vanished := pass.Vanished()
	require.Len(t, vanished, 1)
	assert.Equal(t, "gone", vanished[0].Item.Identity)

	again := tracker.Observe([]arr.QueueItem{item("stays", arr.StatusDownloading, 30)}, t0.Add(2*time.Minute))
	assert.Empty(t, again.Vanished(), "a vanished item is reported once")
}

func TestFirstPassHasNoVanished(t *testing.T) {
	tracker := classify.NewTracker()
	assert.False(t, tracker.HasBaseline())
	pass := tracker.Observe(nil, t0)
	assert.Empty(t, pass.Vanished())
	assert.True(t, tracker.HasBaseline())
}

func TestEligible(t *testing.T) {
	unmonitored := item("u", arr.StatusDownloading, 0)
	unmonitored.Monitored = false
	future := item("f", arr.StatusDownloading, 0)
	future.ReleaseDate = t0.Add(48 * time.Hour)

	filters := classify.Filters{MonitoredOnly: true, SkipFutureReleases: true}
	assert.False(t, classify.Eligible(unmonitored, filters, t0))
	assert.False(t, classify.Eligible(future, filters, t0))
	assert.True(t, classify.Eligible(item("ok", arr.StatusDownloading, 0), filters, t0))
	assert.True(t, classify.Eligible(unmonitored, classify.Filters{}, t0))
}

func TestTrackerKeepsFirstDuplicate(t *testing.T) {
	tracker := classify.NewTracker()
	a := item("dup", arr.StatusDownloading, 1)
	b := item("dup", arr.StatusFailed, 2)
	pass := tracker.Observe([]arr.QueueItem{a, b}, t0)
	require.Len(t, pass.Current, 1)
	assert.Equal(t, arr.StatusDownloading, pass.Current[0].Item.Status)
	assert.Len(t, tracker.Snapshot(), 1)
}
