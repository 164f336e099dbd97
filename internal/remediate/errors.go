package remediate

import (
	"fmt"

	"strikearr/internal/services"
)

// RemediationError reports a removal that failed after every retry. Strike
// records for the item are left in place so the next cycle tries again.
type RemediationError struct {
	InstanceID string
	Identity   string
	Attempts   int
	Err        error
}

func (e *RemediationError) Error() string {
	return fmt.Sprintf("remove %s from %s failed after %d attempt(s): %v", e.Identity, e.InstanceID, e.Attempts, e.Err)
}

func (e *RemediationError) Unwrap() []error {
	return []error{services.ErrRemediation, e.Err}
}
