// Package services defines shared utilities consumed by the strike engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp instance names, item identities, and poll
//     cycle identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     configuration, transient, remediation, or notification problems.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across instances.
package services
