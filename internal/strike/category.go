package strike

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Category identifies one failure condition tracked per queue item.
type Category string

const (
	ImportFailed     Category = "import-failed"
	Stalled          Category = "stalled"
	Slow             Category = "slow"
	QueueItemDeleted Category = "queue-item-deleted"
	DownloadCleaned  Category = "download-cleaned"
	CategoryChanged  Category = "category-changed"
)

var allCategories = []Category{
	ImportFailed,
	Stalled,
	Slow,
	QueueItemDeleted,
	DownloadCleaned,
	CategoryChanged,
}

// Categories returns every known category in canonical order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory resolves a configured category name. Underscores are accepted
// in place of hyphens so TOML keys may use either spelling.
func ParseCategory(value string) (Category, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-")
	for _, c := range allCategories {
		if string(c) == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown failure category %q", value)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// EventType returns the notification event raised when c is struck.
func (c Category) EventType() string {
	switch c {
	case ImportFailed, Stalled, Slow:
		return string(c) + "-strike"
	default:
		return string(c)
	}
}

// rank orders categories for deterministic output.
func (c Category) rank() int {
	for i, known := range allCategories {
		if c == known {
			return i
		}
	}
	return len(allCategories)
}

// Sort orders categories canonically and removes duplicates.
func Sort(categories []Category) []Category {
	if len(categories) == 0 {
		return nil
	}
	seen := make(map[Category]struct{}, len(categories))
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b Category) int {
		return cmp.Compare(a.rank(), b.rank())
	})
	return out
}
