// Package classify decides which failure categories apply to a queue item.
//
// Classification is pure: it looks only at the current observation, the
// previous one for the same identity, and the configured rules. The Tracker
// owns the per-instance memory between polls, most importantly the point at
// which an item last made progress, so that stall detection measures from the
// last real change rather than from the last poll.
package classify
