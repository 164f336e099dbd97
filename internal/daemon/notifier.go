package daemon

import (
	"context"
	"sync"

	"strikearr/internal/notifications"
)

// notifier forwards events to the current dispatcher. A reload that changes
// notification settings swaps the dispatcher without touching the remediator.
type notifier struct {
	mu      sync.RWMutex
	current *notifications.Dispatcher
}

func newNotifier(d *notifications.Dispatcher) *notifier {
	return &notifier{current: d}
}

func (n *notifier) Dispatch(event notifications.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current != nil {
		n.current.Dispatch(event)
	}
}

// swap installs next and closes the previous dispatcher once its in-flight
// sends finish.
func (n *notifier) swap(next *notifications.Dispatcher) {
	n.mu.Lock()
	prev := n.current
	n.current = next
	n.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

func (n *notifier) channels() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil {
		return []string{}
	}
	return n.current.Channels()
}

func (n *notifier) summary() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil {
		return "none"
	}
	return n.current.Summary()
}

func (n *notifier) test(ctx context.Context) ([]string, error) {
	n.mu.RLock()
	current := n.current
	n.mu.RUnlock()
	if current == nil {
		return []string{}, nil
	}
	return current.Channels(), current.Test(ctx)
}

func (n *notifier) close() {
	n.mu.Lock()
	current := n.current
	n.current = nil
	n.mu.Unlock()
	if current != nil {
		current.Close()
	}
}
