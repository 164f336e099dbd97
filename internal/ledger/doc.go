// Package ledger persists strike counters and the remediation action log in
// SQLite.
//
// The ledger is the only shared mutable state in the engine. Every mutation
// goes through RecordStrike, Clear, ExpireOlderThan, or RecordAction; no other
// package touches the database. Strike recording is serialised per key and
// increments a counter at most once per poll cycle, so replaying a cycle never
// double-counts a failure.
package ledger
