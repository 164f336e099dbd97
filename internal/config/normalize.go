package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"strikearr/internal/strike"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeThresholds()
	if err := c.normalizeBlockRules(&c.BlockRules); err != nil {
		return fmt.Errorf("block_rules: %w", err)
	}
	c.normalizeNotifications()
	if err := c.normalizeInstances(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = filepath.Join(c.Paths.StateDir, defaultLedgerFile)
	}
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("STRIKEARR_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeThresholds() {
	global := DefaultThresholds()
	for k, v := range normalizeThresholdMap(c.Thresholds.Global) {
		global[k] = v
	}
	c.Thresholds.Global = global

	service := make(map[string]map[string]int, len(c.Thresholds.Service))
	for name, overrides := range c.Thresholds.Service {
		service[strings.ToLower(strings.TrimSpace(name))] = normalizeThresholdMap(overrides)
	}
	c.Thresholds.Service = service
}

// normalizeThresholdMap canonicalises category keys. Unknown keys are kept so
// Validate can report them.
func normalizeThresholdMap(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		if c, err := strike.ParseCategory(k); err == nil {
			out[string(c)] = v
			continue
		}
		out[k] = v
	}
	return out
}

func (c *Config) normalizeBlockRules(rules *BlockRules) error {
	rules.Mode = strings.ToLower(strings.TrimSpace(rules.Mode))
	if rules.Mode == "" {
		rules.Mode = "blacklist"
	}
	trimmed := rules.Patterns[:0]
	for _, p := range rules.Patterns {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	rules.Patterns = trimmed
	rules.SourceURL = strings.TrimSpace(rules.SourceURL)
	if file := strings.TrimSpace(rules.SourceFile); file != "" {
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("source_file: %w", err)
		}
		rules.SourceFile = expanded
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	n := &c.Notifications
	n.Apprise.URL = strings.TrimRight(strings.TrimSpace(n.Apprise.URL), "/")
	n.Apprise.Key = strings.TrimSpace(n.Apprise.Key)
	n.Apprise.Tag = strings.TrimSpace(n.Apprise.Tag)

	n.Notifiarr.APIKey = strings.TrimSpace(n.Notifiarr.APIKey)
	if n.Notifiarr.APIKey == "" {
		if value, ok := os.LookupEnv("STRIKEARR_NOTIFIARR_API_KEY"); ok {
			n.Notifiarr.APIKey = strings.TrimSpace(value)
		}
	}
	n.Notifiarr.BaseURL = strings.TrimRight(strings.TrimSpace(n.Notifiarr.BaseURL), "/")
	if n.Notifiarr.BaseURL == "" {
		n.Notifiarr.BaseURL = defaultNotifiarrBaseURL
	}

	n.Ntfy.Topic = strings.TrimSpace(n.Ntfy.Topic)
	n.Ntfy.Priority = strings.ToLower(strings.TrimSpace(n.Ntfy.Priority))
	if n.Ntfy.Priority == "" {
		n.Ntfy.Priority = defaultNtfyPriority
	}
}

func (c *Config) normalizeInstances() error {
	for i := range c.Instances {
		inst := &c.Instances[i]
		inst.Name = strings.TrimSpace(inst.Name)
		inst.ServiceType = strings.ToLower(strings.TrimSpace(inst.ServiceType))
		inst.BaseURL = strings.TrimRight(strings.TrimSpace(inst.BaseURL), "/")
		inst.APIKey = strings.TrimSpace(inst.APIKey)
		if inst.APIKey == "" && inst.Name != "" {
			if value, ok := os.LookupEnv(APIKeyEnv(inst.Name)); ok {
				inst.APIKey = strings.TrimSpace(value)
			}
		}
		if inst.Timeout == 0 {
			inst.Timeout = defaultInstanceTimeout
		}
		inst.Thresholds = normalizeThresholdMap(inst.Thresholds)
		if inst.BlockRules != nil {
			if err := c.normalizeBlockRules(inst.BlockRules); err != nil {
				return fmt.Errorf("instances[%s].block_rules: %w", inst.Name, err)
			}
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// APIKeyEnv returns the environment variable consulted for an instance's API
// key, e.g. "STRIKEARR_SONARR_4K_API_KEY" for "sonarr-4k".
func APIKeyEnv(name string) string {
	var b strings.Builder
	b.WriteString("STRIKEARR_")
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString("_API_KEY")
	return b.String()
}
