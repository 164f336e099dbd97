// Package api defines wire-format types, converters, and a client for the
// daemon's HTTP query API. It translates ledger and poller models into
// transport-friendly DTOs that the CLI and other consumers can render without
// coupling to internal types.
//
// # Key Types
//
// StatusResponse: daemon running state, per-instance loop status, strike
// totals, and ledger diagnostics.
//
// StrikeRecord/StrikesResponse: current strike ledger rows.
//
// Action/ActionsResponse: the remediation action log, newest first.
//
// # Converters
//
// FromPollerStatus, FromRecord, FromAction, FromDatabaseHealth, FromTotals.
//
// # Client
//
// Client wraps the query endpoints with bearer-token auth. Transport failures
// wrap ErrUnavailable so callers can fall back to reading the ledger directly;
// non-2xx responses surface as *StatusError.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Categories and action kinds are exposed as
// their lowercase string values. Timestamps use RFC3339 with milliseconds and
// are omitted when unset.
package api
