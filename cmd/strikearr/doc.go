// Command strikearr runs the download-queue remediation daemon and the CLI
// used to control and inspect it.
//
// The daemon polls every configured *arr instance, strikes failing downloads,
// and removes them once a category threshold is reached. CLI commands talk to
// the running daemon over its HTTP query API and fall back to reading the
// strike ledger directly when the daemon is not running.
package main
