// Package remediate turns classified failures into strikes and, once a
// category reaches its threshold, removes the queue item.
//
// Process is the single entry point. It records one strike per category for
// the current cycle, resolves the effective threshold for the instance, and
// either stops there (strike-only) or performs the removal sequence: block
// decision, removal with retries, re-search for blocked releases, ledger
// cleanup. Every decision is appended to the action log and announced through
// the notification emitter.
package remediate
