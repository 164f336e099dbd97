// Package logging builds the slog loggers used by the daemon and CLI.
//
// Two output formats are supported: a human-oriented console layout that puts
// the component and subject (instance, item identity) up front, and a JSON
// layout suitable for log shippers. Console output is coloured only when the
// destination is a terminal.
//
// Components should derive their logger with NewComponentLogger and attach
// standard fields from the helpers in this package rather than inventing ad hoc
// keys, so log queries stay stable across releases.
package logging
