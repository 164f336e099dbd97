package patterns

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"strikearr/internal/services"
)

const regexPrefix = "regex:"

// InvalidPatternError reports a pattern that could not be compiled.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() []error {
	return []error{services.ErrConfiguration, e.Err}
}

type matchKind int

const (
	matchExact matchKind = iota
	matchPrefix
	matchSuffix
	matchContains
	matchRegex
)

type rule struct {
	source string
	kind   matchKind
	text   string
	re     *regexp.Regexp
}

// RuleSet is an ordered, compiled set of filename patterns. It is immutable
// and safe for concurrent use.
type RuleSet struct {
	rules []rule
}

// Compile builds a RuleSet. Blank patterns are skipped.
func Compile(patterns []string) (*RuleSet, error) {
	set := &RuleSet{rules: make([]rule, 0, len(patterns))}
	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		r, err := compileRule(pattern)
		if err != nil {
			return nil, err
		}
		set.rules = append(set.rules, r)
	}
	return set, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(patterns ...string) *RuleSet {
	set, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return set
}

func compileRule(pattern string) (rule, error) {
	if len(pattern) >= len(regexPrefix) && strings.EqualFold(pattern[:len(regexPrefix)], regexPrefix) {
		expr := strings.TrimSpace(pattern[len(regexPrefix):])
		if expr == "" {
			return rule{}, &InvalidPatternError{Pattern: pattern, Err: fmt.Errorf("empty expression")}
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return rule{}, &InvalidPatternError{Pattern: pattern, Err: err}
		}
		return rule{source: pattern, kind: matchRegex, re: re}, nil
	}

	leading := strings.HasPrefix(pattern, "*")
	trailing := len(pattern) > 1 && strings.HasSuffix(pattern, "*")
	text := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
	if strings.Contains(text, "*") {
		return rule{}, &InvalidPatternError{Pattern: pattern, Err: fmt.Errorf("wildcard only allowed at start or end")}
	}

	r := rule{source: pattern, text: fold(text)}
	switch {
	case leading && trailing:
		r.kind = matchContains
	case leading:
		r.kind = matchSuffix
	case trailing:
		r.kind = matchPrefix
	default:
		r.kind = matchExact
	}
	return r, nil
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Len returns the number of compiled rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Patterns returns the source patterns in order.
func (s *RuleSet) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.source
	}
	return out
}

// Matches reports whether name satisfies any rule.
func (s *RuleSet) Matches(name string) bool {
	_, ok := s.Match(name)
	return ok
}

// Match returns the first pattern satisfied by name.
func (s *RuleSet) Match(name string) (string, bool) {
	if s == nil || len(s.rules) == 0 {
		return "", false
	}
	folded := fold(name)
	for _, r := range s.rules {
		if r.matches(name, folded) {
			return r.source, true
		}
	}
	return "", false
}

func (r rule) matches(name, folded string) bool {
	switch r.kind {
	case matchRegex:
		return r.re.MatchString(name)
	case matchPrefix:
		return strings.HasPrefix(folded, r.text)
	case matchSuffix:
		return strings.HasSuffix(folded, r.text)
	case matchContains:
		return strings.Contains(folded, r.text)
	default:
		return folded == r.text
	}
}
