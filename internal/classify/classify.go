package classify

import (
	"slices"
	"strings"
	"time"

	"strikearr/internal/arr"
	"strikearr/internal/strike"
)

// DefaultImportMarkers are substrings that mark a warning as import related.
var DefaultImportMarkers = []string{
	"import",
	"no files found",
	"not a valid",
	"unable to",
	"matched to",
	"sample",
	"not an upgrade",
	"unknown series",
	"unknown movie",
}

// Rules carries the thresholds used by Classify.
type Rules struct {
	StallTimeout  time.Duration
	MinSpeed      int64
	MaxETA        time.Duration
	ImportMarkers []string
}

// Filters are applied before classification.
type Filters struct {
	MonitoredOnly      bool
	SkipFutureReleases bool
}

// Observation is one sighting of a queue item plus the progress history the
// tracker carries forward.
type Observation struct {
	Item              arr.QueueItem
	ObservedAt        time.Time
	FirstSeenAt       time.Time
	LastProgressAt    time.Time
	LastProgressBytes int64
	// Initial marks observations from the instance's first successful poll,
	// when no previous snapshot exists.
	Initial bool
}

// Eligible reports whether item should be classified at all.
func Eligible(item arr.QueueItem, filters Filters, now time.Time) bool {
	if filters.MonitoredOnly && !item.Monitored {
		return false
	}
	if filters.SkipFutureReleases && !item.ReleaseDate.IsZero() && item.ReleaseDate.After(now) {
		return false
	}
	return true
}

// Classify returns the ordered set of categories current triggers. previous
// is the observation of the same identity in the prior poll, or nil.
func Classify(current Observation, previous *Observation, rules Rules, now time.Time) []strike.Category {
	var out []strike.Category
	if importFailed(current, previous, rules) {
		out = append(out, strike.ImportFailed)
	}
	if stalled(current, previous, rules, now) {
		out = append(out, strike.Stalled)
	}
	if slow(current, previous, rules, now) {
		out = append(out, strike.Slow)
	}
	if previous != nil {
		before := strings.TrimSpace(previous.Item.Category)
		after := strings.TrimSpace(current.Item.Category)
		if before != "" && after != "" && !strings.EqualFold(before, after) {
			out = append(out, strike.CategoryChanged)
		}
	}
	return strike.Sort(out)
}

func importFailed(current Observation, previous *Observation, rules Rules) bool {
	if previous == nil && !current.Initial {
		return false
	}
	switch current.Item.Status {
	case arr.StatusFailed:
		return true
	case arr.StatusWarning:
		return HasImportMarker(current.Item.Messages(), rules.ImportMarkers)
	default:
		return false
	}
}

// HasImportMarker reports whether any message contains an import marker.
// A nil markers slice selects DefaultImportMarkers.
func HasImportMarker(messages, markers []string) bool {
	if markers == nil {
		markers = DefaultImportMarkers
	}
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		for _, marker := range markers {
			if marker = strings.ToLower(strings.TrimSpace(marker)); marker != "" && strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func stalled(current Observation, previous *Observation, rules Rules, now time.Time) bool {
	if rules.StallTimeout <= 0 || previous == nil {
		return false
	}
	switch current.Item.Status {
	case arr.StatusDownloading, arr.StatusImporting:
	default:
		return false
	}
	if current.Item.DownloadedBytes != previous.Item.DownloadedBytes {
		return false
	}
	return now.Sub(current.LastProgressAt) > rules.StallTimeout
}

func slow(current Observation, previous *Observation, rules Rules, now time.Time) bool {
	if previous == nil || current.Item.Status != arr.StatusDownloading {
		return false
	}
	if rules.MinSpeed <= 0 && rules.MaxETA <= 0 {
		return false
	}
	delta := current.Item.DownloadedBytes - previous.Item.DownloadedBytes
	elapsed := current.ObservedAt.Sub(previous.ObservedAt)
	if delta <= 0 || elapsed <= 0 {
		return false
	}
	speed := float64(delta) / elapsed.Seconds()

	if rules.MinSpeed > 0 && speed < float64(rules.MinSpeed) {
		return true
	}
	if rules.MaxETA > 0 {
		eta := estimateETA(current.Item, speed, now)
		if eta > rules.MaxETA {
			return true
		}
	}
	return false
}

func estimateETA(item arr.QueueItem, speed float64, now time.Time) time.Duration {
	if !item.EstimatedCompletion.IsZero() {
		return item.EstimatedCompletion.Sub(now)
	}
	remaining := item.TotalBytes - item.DownloadedBytes
	if remaining <= 0 || speed <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / speed * float64(time.Second))
}

// Vanished returns the previous observations whose identity is missing from
// current and whose download had not finished.
func Vanished(previous map[string]Observation, current []Observation) []Observation {
	present := make(map[string]struct{}, len(current))
	for _, obs := range current {
		present[obs.Item.Identity] = struct{}{}
	}
	var out []Observation
	for identity, obs := range previous {
		if _, ok := present[identity]; ok {
			continue
		}
		if obs.Item.Status.Finished() {
			continue
		}
		out = append(out, obs)
	}
	sortObservations(out)
	return out
}

func sortObservations(obs []Observation) {
	slices.SortFunc(obs, func(a, b Observation) int {
		return strings.Compare(a.Item.Identity, b.Item.Identity)
	})
}
