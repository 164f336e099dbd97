package patterns

import (
	"fmt"
	"strings"

	"strikearr/internal/services"
)

// Mode selects how a BlockList interprets its rules.
type Mode string

const (
	ModeBlacklist Mode = "blacklist"
	ModeWhitelist Mode = "whitelist"
)

// ParseMode resolves a configured mode, defaulting to blacklist when blank.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ModeBlacklist):
		return ModeBlacklist, nil
	case string(ModeWhitelist):
		return ModeWhitelist, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "patterns", "parse mode", fmt.Sprintf("unknown block mode %q", value), nil)
	}
}

// BlockList pairs a rule set with the mode it is evaluated under.
type BlockList struct {
	Mode  Mode
	Rules *RuleSet
}

// Blocked reports whether a removed item named name should be blocklisted.
// Blacklist mode blocks names matching any rule, so an empty blacklist never
// blocks. Whitelist mode blocks names matching no rule, so an empty whitelist
// blocks everything.
func (b BlockList) Blocked(name string) bool {
	matched := b.Rules.Matches(name)
	if b.Mode == ModeWhitelist {
		return !matched
	}
	return matched
}

// Explain returns a short human-readable reason for the block decision.
func (b BlockList) Explain(name string) (bool, string) {
	pattern, matched := b.Rules.Match(name)
	if b.Mode == ModeWhitelist {
		if matched {
			return false, fmt.Sprintf("whitelisted by %q", pattern)
		}
		return true, "matches no whitelist pattern"
	}
	if matched {
		return true, fmt.Sprintf("blacklisted by %q", pattern)
	}
	return false, "matches no blacklist pattern"
}
