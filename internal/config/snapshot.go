package config

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"strikearr/internal/patterns"
	"strikearr/internal/services"
	"strikearr/internal/strike"
)

// Snapshot is an immutable, fully resolved configuration. Block-rule sources
// have been fetched and compiled; nothing in a Snapshot is mutated after
// Resolve returns.
type Snapshot struct {
	Config   *Config
	Path     string
	LoadedAt time.Time

	global    patterns.BlockList
	instances map[string]patterns.BlockList
}

// Resolve loads every block-rule source referenced by cfg and compiles the
// resulting rule sets.
func Resolve(ctx context.Context, cfg *Config, path string) (*Snapshot, error) {
	global, err := resolveBlockList(ctx, cfg.BlockRules, cfg.NotificationTimeout())
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Config:    cfg,
		Path:      path,
		LoadedAt:  time.Now(),
		global:    global,
		instances: make(map[string]patterns.BlockList),
	}
	for _, inst := range cfg.Instances {
		if inst.BlockRules == nil {
			continue
		}
		list, err := resolveBlockList(ctx, *inst.BlockRules, inst.RequestTimeout())
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "config", "resolve block rules", inst.Name, err)
		}
		snap.instances[strings.ToLower(inst.Name)] = list
	}
	return snap, nil
}

func resolveBlockList(ctx context.Context, rules BlockRules, timeout time.Duration) (patterns.BlockList, error) {
	mode, err := patterns.ParseMode(rules.Mode)
	if err != nil {
		return patterns.BlockList{}, err
	}
	list, err := patterns.LoadSource(ctx, patterns.Source{
		Inline:  rules.Patterns,
		File:    rules.SourceFile,
		URL:     rules.SourceURL,
		Timeout: timeout,
	})
	if err != nil {
		return patterns.BlockList{}, err
	}
	set, err := patterns.Compile(list)
	if err != nil {
		return patterns.BlockList{}, err
	}
	return patterns.BlockList{Mode: mode, Rules: set}, nil
}

// BlockList returns the rules applying to the named instance.
func (s *Snapshot) BlockList(instance string) patterns.BlockList {
	if list, ok := s.instances[strings.ToLower(instance)]; ok {
		return list
	}
	return s.global
}

// Threshold resolves the effective max strikes for category on inst.
func (s *Snapshot) Threshold(inst Instance, category strike.Category) int {
	return s.Config.Threshold(inst, category)
}

// Threshold resolves the effective max strikes for category on inst.
func (c *Config) Threshold(inst Instance, category strike.Category) int {
	key := string(category)
	global := c.Thresholds.Global[key]
	var service, instance *int
	if overrides, ok := c.Thresholds.Service[strings.ToLower(inst.ServiceType)]; ok {
		if v, ok := overrides[key]; ok {
			service = &v
		}
	}
	if v, ok := inst.Thresholds[key]; ok {
		instance = &v
	}
	return strike.EffectiveThreshold(global, service, instance)
}

// MonitoredOnly reports the effective monitored-only filter for inst.
func (c *Config) MonitoredOnly(inst Instance) bool {
	if inst.MonitoredOnly != nil {
		return *inst.MonitoredOnly
	}
	return c.Engine.MonitoredOnly
}

// SkipFutureReleases reports the effective future-release filter for inst.
func (c *Config) SkipFutureReleases(inst Instance) bool {
	if inst.SkipFutureReleases != nil {
		return *inst.SkipFutureReleases
	}
	return c.Engine.SkipFuture
}

// Holder publishes the current Snapshot to concurrent readers.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns a holder publishing snap.
func NewHolder(snap *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(snap)
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap publishes next and returns the previous snapshot.
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}
