package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"strikearr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a valid config seeded with unique temp directories per
// test and a single enabled sonarr instance.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Ledger.Path = filepath.Join(base, "state", "ledger.db")
	cfgVal.Engine.PollInterval = 5
	cfgVal.Instances = []config.Instance{{
		Name:        "sonarr",
		ServiceType: "sonarr",
		BaseURL:     "http://127.0.0.1:8989",
		APIKey:      "test",
		Timeout:     5,
	}}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithInstances replaces the configured instances.
func WithInstances(instances ...config.Instance) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Instances = instances
	}
}

// WithThreshold sets a global threshold for category.
func WithThreshold(category string, value int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thresholds.Global[category] = value
	}
}

// WithBlockPatterns sets the global block rules.
func WithBlockPatterns(mode string, patterns ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.BlockRules = config.BlockRules{Mode: mode, Patterns: patterns}
	}
}

// WithEngine mutates the engine section.
func WithEngine(fn func(*config.Engine)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Engine)
	}
}

// MustSnapshot validates cfg and resolves it into a snapshot.
func MustSnapshot(t testing.TB, cfg *config.Config) *config.Snapshot {
	t.Helper()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("config.Validate: %v", err)
	}
	snap, err := config.Resolve(context.Background(), cfg, "")
	if err != nil {
		t.Fatalf("config.Resolve: %v", err)
	}
	return snap
}
