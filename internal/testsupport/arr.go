package testsupport

import (
	"context"
	"sync"

	"strikearr/internal/arr"
)

// Removal captures one RemoveQueueItem call.
type Removal struct {
	Item    arr.QueueItem
	Options arr.RemoveOptions
}

// FakeArr is an in-memory arr.Client. Queue is returned by FetchQueue until
// changed with SetQueue.
type FakeArr struct {
	mu          sync.Mutex
	queue       []arr.QueueItem
	fetchErr    error
	removeErrs  []error
	researchErr error
	removals    []Removal
	researched  []arr.QueueItem
	fetches     int
}

var _ arr.Client = (*FakeArr)(nil)

// NewFakeArr returns a fake serving items.
func NewFakeArr(items ...arr.QueueItem) *FakeArr {
	return &FakeArr{queue: items}
}

// SetQueue replaces the served queue.
func (f *FakeArr) SetQueue(items ...arr.QueueItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = items
}

// FailFetch makes FetchQueue return err until cleared with nil.
func (f *FakeArr) FailFetch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

// FailRemovals queues errors returned by successive RemoveQueueItem calls.
func (f *FakeArr) FailRemovals(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeErrs = append(f.removeErrs, errs...)
}

// FailResearch makes TriggerResearch return err.
func (f *FakeArr) FailResearch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.researchErr = err
}

func (f *FakeArr) FetchQueue(_ context.Context) ([]arr.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]arr.QueueItem, len(f.queue))
	copy(out, f.queue)
	return out, nil
}

func (f *FakeArr) RemoveQueueItem(_ context.Context, item arr.QueueItem, opts arr.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals = append(f.removals, Removal{Item: item, Options: opts})
	if len(f.removeErrs) > 0 {
		err := f.removeErrs[0]
		f.removeErrs = f.removeErrs[1:]
		if err != nil {
			return err
		}
	}
	kept := f.queue[:0:0]
	for _, q := range f.queue {
		if q.Identity != item.Identity {
			kept = append(kept, q)
		}
	}
	f.queue = kept
	return nil
}

func (f *FakeArr) TriggerResearch(_ context.Context, item arr.QueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.researchErr != nil {
		return f.researchErr
	}
	f.researched = append(f.researched, item)
	return nil
}

// Removals returns every RemoveQueueItem call so far.
func (f *FakeArr) Removals() []Removal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Removal, len(f.removals))
	copy(out, f.removals)
	return out
}

// Researched returns every item a re-search was triggered for.
func (f *FakeArr) Researched() []arr.QueueItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]arr.QueueItem, len(f.researched))
	copy(out, f.researched)
	return out
}

// Fetches reports how many times FetchQueue was called.
func (f *FakeArr) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}
