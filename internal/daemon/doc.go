// Package daemon coordinates the long-running strikearr process.
//
// It wires the configuration snapshot, the strike ledger, the notification
// dispatcher, and one poll loop per enabled instance into a single lifecycle
// with flock-based locking to prevent multiple daemons sharing a ledger. Around
// the loops it runs a sweeper that expires stale strikes, an fsnotify watcher
// that reloads configuration, and a chi HTTP server exposing status, strikes,
// actions, health, and Prometheus metrics.
//
// Keep orchestration logic here: classification and remediation live in their
// own packages while the daemon focuses on startup, shutdown, reload, and
// high level coordination.
package daemon
