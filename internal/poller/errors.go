package poller

import (
	"fmt"

	"strikearr/internal/services"
)

// TransientInstanceError reports a cycle that could not fetch the queue.
// The next cycle retries from the same tracker state.
type TransientInstanceError struct {
	InstanceID string
	CycleID    string
	Err        error
}

func (e *TransientInstanceError) Error() string {
	return fmt.Sprintf("instance %s unavailable: %v", e.InstanceID, e.Err)
}

func (e *TransientInstanceError) Unwrap() []error {
	return []error{services.ErrTransient, e.Err}
}
