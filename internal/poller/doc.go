// Package poller runs the per-instance queue loop.
//
// Each Poller owns one instance: it fetches the queue on its own ticker,
// feeds the result through the classifier's progress tracker, hands every
// failing item to the remediator on a bounded worker pool and publishes a
// Status snapshot for the query API. A failed fetch is recorded as a
// TransientInstanceError and leaves the tracker untouched, so one unreachable
// instance never disturbs another.
package poller
