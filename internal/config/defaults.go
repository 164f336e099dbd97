package config

import "strikearr/internal/strike"

const (
	defaultConfigPath         = "~/.config/strikearr/config.toml"
	defaultStateDir           = "~/.local/share/strikearr"
	defaultLogDir             = "~/.local/share/strikearr/logs"
	defaultLedgerFile         = "ledger.db"
	defaultAPIBind            = "127.0.0.1:9797"
	defaultPollInterval       = 600
	defaultItemWorkers        = 4
	defaultStallTimeout       = 1800
	defaultRemoveAttempts     = 3
	defaultResetInterval      = 7 * 24 * 3600
	defaultSweepInterval      = 3600
	defaultHistoryLimit       = 500
	defaultNotifyTimeout      = 10
	defaultDedupWindowSeconds = 60
	defaultInstanceTimeout    = 30
	defaultNtfyPriority       = "default"
	defaultNotifiarrBaseURL   = "https://notifiarr.com"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// DefaultThresholds returns the global per-category max strikes. Categories
// that only inform operators default to 0 (never remove).
func DefaultThresholds() map[string]int {
	return map[string]int{
		string(strike.ImportFailed):     3,
		string(strike.Stalled):          3,
		string(strike.Slow):             3,
		string(strike.QueueItemDeleted): 0,
		string(strike.DownloadCleaned):  0,
		string(strike.CategoryChanged):  0,
	}
}

// AllEvents returns toggles with every event type enabled.
func AllEvents() EventToggles {
	return EventToggles{
		ImportFailedStrike: true,
		StalledStrike:      true,
		SlowStrike:         true,
		QueueItemDeleted:   true,
		DownloadCleaned:    true,
		CategoryChanged:    true,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Engine: Engine{
			PollInterval:   defaultPollInterval,
			ItemWorkers:    defaultItemWorkers,
			StallTimeout:   defaultStallTimeout,
			RemoveAttempts: defaultRemoveAttempts,
		},
		Thresholds: Thresholds{
			Global:  DefaultThresholds(),
			Service: map[string]map[string]int{},
		},
		BlockRules: BlockRules{
			Mode: "blacklist",
		},
		Ledger: Ledger{
			ResetInterval: defaultResetInterval,
			SweepInterval: defaultSweepInterval,
			HistoryLimit:  defaultHistoryLimit,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			DedupWindowSeconds: defaultDedupWindowSeconds,
			Apprise:            Apprise{Events: AllEvents()},
			Notifiarr:          Notifiarr{BaseURL: defaultNotifiarrBaseURL, Events: AllEvents()},
			Ntfy:               Ntfy{Priority: defaultNtfyPriority, Events: AllEvents()},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
