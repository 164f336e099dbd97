package poller

import "time"

// State is the position of a poller in its cycle.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateClassifying State = "classifying"
	StateRemediating State = "remediating"
	StateStopped     State = "stopped"
)

// Status is a point-in-time view of one instance loop.
type Status struct {
	Instance            string
	ServiceType         string
	State               State
	Cycles              int64
	LastCycleID         string
	LastCycleAt         time.Time
	LastDuration        time.Duration
	LastError           string
	LastErrorAt         time.Time
	QueueSize           int
	Struck              int
	Removed             int
	Failed              int
	TrackedItems        int
	NextCycleAt         time.Time
	ConsecutiveFailures int
}

// CycleResult summarises one completed cycle.
type CycleResult struct {
	CycleID   string
	Skipped   bool
	QueueSize int
	Struck    int
	Removed   int
	Failed    int
	Vanished  int
	Cleared   int
}

func (p *Poller) setState(state State) {
	p.mu.Lock()
	p.status.State = state
	p.mu.Unlock()
}

// Status returns a copy of the current status.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
