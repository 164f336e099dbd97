// Package config loads, normalises, and validates the strikearr TOML
// configuration.
//
// Load returns a fully expanded Config; Resolve turns it into an immutable
// Snapshot with block-rule sources fetched and compiled. The daemon publishes
// snapshots through a Holder and swaps them between poll cycles when Watch
// reports a change, so a cycle never observes a half-applied reload.
package config
