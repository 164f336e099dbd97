package classify

import (
	"sync"
	"time"

	"strikearr/internal/arr"
)

// Tracker remembers the last successful poll of one instance.
type Tracker struct {
	mu       sync.Mutex
	snapshot map[string]Observation
	baseline bool
}

// NewTracker returns an empty tracker with no baseline.
func NewTracker() *Tracker {
	return &Tracker{snapshot: make(map[string]Observation)}
}

// Pass is the result of observing one fetched queue.
type Pass struct {
	Current  []Observation
	Previous map[string]Observation
	Baseline bool
}

// PreviousOf returns the prior observation of identity, if any.
func (p Pass) PreviousOf(identity string) *Observation {
	obs, ok := p.Previous[identity]
	if !ok {
		return nil
	}
	return &obs
}

// Vanished lists items present in the previous poll but not in this one.
func (p Pass) Vanished() []Observation {
	if !p.Baseline {
		return nil
	}
	return Vanished(p.Previous, p.Current)
}

// Observe records a successfully fetched queue and returns the pass to
// classify. Duplicate identities keep their first record. LastProgressAt only
// moves when downloaded bytes change.
func (t *Tracker) Observe(items []arr.QueueItem, now time.Time) Pass {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous := t.snapshot
	next := make(map[string]Observation, len(items))
	current := make([]Observation, 0, len(items))

	for _, item := range items {
		if _, dup := next[item.Identity]; dup {
			continue
		}
		obs := Observation{
			Item:              item,
			ObservedAt:        now,
			FirstSeenAt:       now,
			LastProgressAt:    now,
			LastProgressBytes: item.DownloadedBytes,
			Initial:           !t.baseline,
		}
		if prev, ok := previous[item.Identity]; ok {
			obs.FirstSeenAt = prev.FirstSeenAt
			if item.DownloadedBytes == prev.LastProgressBytes {
				obs.LastProgressAt = prev.LastProgressAt
			}
		}
		next[item.Identity] = obs
		current = append(current, obs)
	}

	pass := Pass{Current: current, Previous: previous, Baseline: t.baseline}
	t.snapshot = next
	t.baseline = true
	return pass
}

// Snapshot returns a copy of the last committed observations.
func (t *Tracker) Snapshot() map[string]Observation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Observation, len(t.snapshot))
	for k, v := range t.snapshot {
		out[k] = v
	}
	return out
}

// HasBaseline reports whether at least one poll has been observed.
func (t *Tracker) HasBaseline() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baseline
}

// Forget drops identity from the committed snapshot so an item the engine
// removed itself is not reported as vanished on the next pass.
func (t *Tracker) Forget(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.snapshot, identity)
}
