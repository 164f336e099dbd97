// Package notifications fans strike engine events out to operator channels.
//
// Apprise, Notifiarr and ntfy are supported. The Dispatcher applies the
// per-channel event toggles from config.toml, suppresses repeats inside the
// dedup window and sends asynchronously with a bounded timeout. Delivery
// failures are logged and counted; they never reach the caller.
package notifications
