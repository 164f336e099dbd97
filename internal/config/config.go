package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"strikearr/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// API contains the read-only query API settings.
type API struct {
	Bind  string `toml:"bind" validate:"omitempty,hostname_port"`
	Token string `toml:"token"`
}

// Engine contains poll loop timing and classification thresholds. Durations
// are in seconds.
type Engine struct {
	PollInterval   int  `toml:"poll_interval" validate:"gte=5"`
	ItemWorkers    int  `toml:"item_workers" validate:"gte=1,lte=64"`
	StallTimeout   int  `toml:"stall_timeout" validate:"gte=0"`
	MinSpeedKBps   int  `toml:"min_speed_kbps" validate:"gte=0"`
	MaxETA         int  `toml:"max_eta" validate:"gte=0"`
	RemoveAttempts int  `toml:"remove_attempts" validate:"gte=1,lte=10"`
	MonitoredOnly  bool `toml:"monitored_only"`
	SkipFuture     bool `toml:"skip_future_releases"`
}

// Thresholds maps failure category names to max-strike counts. Service
// overrides are keyed by service type.
type Thresholds struct {
	Global  map[string]int            `toml:"global"`
	Service map[string]map[string]int `toml:"service"`
}

// BlockRules describes where block patterns come from and how they apply.
type BlockRules struct {
	Mode       string   `toml:"mode" validate:"omitempty,oneof=blacklist whitelist"`
	Patterns   []string `toml:"patterns"`
	SourceFile string   `toml:"source_file"`
	SourceURL  string   `toml:"source_url" validate:"omitempty,url"`
}

// Ledger contains strike persistence settings. Intervals are in seconds.
type Ledger struct {
	Path          string `toml:"path"`
	ResetInterval int    `toml:"reset_interval" validate:"gte=0"`
	SweepInterval int    `toml:"sweep_interval" validate:"gte=10"`
	HistoryLimit  int    `toml:"history_limit" validate:"gte=1,lte=100000"`
}

// EventToggles enables or disables each notification event type per channel.
type EventToggles struct {
	ImportFailedStrike bool `toml:"import_failed_strike"`
	StalledStrike      bool `toml:"stalled_strike"`
	SlowStrike         bool `toml:"slow_strike"`
	QueueItemDeleted   bool `toml:"queue_item_deleted"`
	DownloadCleaned    bool `toml:"download_cleaned"`
	CategoryChanged    bool `toml:"category_changed"`
}

// Apprise configures an Apprise API endpoint.
type Apprise struct {
	Enabled bool         `toml:"enabled"`
	URL     string       `toml:"url" validate:"omitempty,url"`
	Key     string       `toml:"key"`
	Tag     string       `toml:"tag"`
	Events  EventToggles `toml:"events"`
}

// Notifiarr configures the Notifiarr passthrough integration.
type Notifiarr struct {
	Enabled   bool         `toml:"enabled"`
	APIKey    string       `toml:"api_key"`
	ChannelID string       `toml:"channel_id"`
	BaseURL   string       `toml:"base_url" validate:"omitempty,url"`
	Events    EventToggles `toml:"events"`
}

// Ntfy configures ntfy push notifications.
type Ntfy struct {
	Enabled  bool         `toml:"enabled"`
	Topic    string       `toml:"topic" validate:"omitempty,url"`
	Priority string       `toml:"priority" validate:"omitempty,oneof=min low default high urgent"`
	Events   EventToggles `toml:"events"`
}

// Notifications contains channel configuration shared by the dispatcher.
type Notifications struct {
	RequestTimeout     int       `toml:"request_timeout" validate:"gte=1,lte=300"`
	DedupWindowSeconds int       `toml:"dedup_window_seconds" validate:"gte=0"`
	Apprise            Apprise   `toml:"apprise"`
	Notifiarr          Notifiarr `toml:"notifiarr"`
	Ntfy               Ntfy      `toml:"ntfy"`
}

// Instance is one configured *arr endpoint.
type Instance struct {
	Name               string         `toml:"name" validate:"required,max=64"`
	ServiceType        string         `toml:"service_type" validate:"required,oneof=sonarr radarr lidarr readarr whisparr"`
	BaseURL            string         `toml:"base_url" validate:"required,url"`
	APIKey             string         `toml:"api_key"`
	Enabled            *bool          `toml:"enabled"`
	Timeout            int            `toml:"timeout" validate:"gte=0,lte=600"`
	RequestsPerSecond  float64        `toml:"requests_per_second" validate:"gte=0"`
	MonitoredOnly      *bool          `toml:"monitored_only"`
	SkipFutureReleases *bool          `toml:"skip_future_releases"`
	Thresholds         map[string]int `toml:"thresholds"`
	BlockRules         *BlockRules    `toml:"block_rules"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn warning error"`
}

// Config encapsulates all configuration values for strikearr.
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Engine        Engine        `toml:"engine"`
	Thresholds    Thresholds    `toml:"thresholds"`
	BlockRules    BlockRules    `toml:"block_rules"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Instances     []Instance    `toml:"instances" validate:"dive"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and defaults applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "read", resolvedPath, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "normalize", "", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("strikearr.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Ledger.Path)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "strikearr.lock")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "strikearr.pid")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "strikearr.log")
}

// EnabledInstances returns the instances that should be polled.
func (c *Config) EnabledInstances() []Instance {
	out := make([]Instance, 0, len(c.Instances))
	for _, inst := range c.Instances {
		if inst.IsEnabled() {
			out = append(out, inst)
		}
	}
	return out
}

// Instance looks up a configured instance by name.
func (c *Config) Instance(name string) (Instance, bool) {
	for _, inst := range c.Instances {
		if strings.EqualFold(inst.Name, name) {
			return inst, true
		}
	}
	return Instance{}, false
}

// IsEnabled reports whether the instance should be polled. Unset means enabled.
func (i Instance) IsEnabled() bool {
	return i.Enabled == nil || *i.Enabled
}

// RequestTimeout returns the per-call timeout for the instance. Unset falls
// back to the default.
func (i Instance) RequestTimeout() time.Duration {
	if i.Timeout <= 0 {
		return defaultInstanceTimeout * time.Second
	}
	return seconds(i.Timeout)
}

// PollInterval returns the delay between poll cycles.
func (c *Config) PollInterval() time.Duration { return seconds(c.Engine.PollInterval) }

// ResetInterval returns the strike age-out window; zero disables expiry.
func (c *Config) ResetInterval() time.Duration { return seconds(c.Ledger.ResetInterval) }

// SweepInterval returns how often expired strikes are purged.
func (c *Config) SweepInterval() time.Duration { return seconds(c.Ledger.SweepInterval) }

// NotificationTimeout bounds each channel send.
func (c *Config) NotificationTimeout() time.Duration {
	if c.Notifications.RequestTimeout <= 0 {
		return defaultNotifyTimeout * time.Second
	}
	return seconds(c.Notifications.RequestTimeout)
}

// DedupWindow returns the notification suppression window.
func (c *Config) DedupWindow() time.Duration {
	return seconds(c.Notifications.DedupWindowSeconds)
}

func seconds(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
