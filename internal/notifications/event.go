package notifications

import (
	"fmt"
	"strings"
	"time"

	"strikearr/internal/arr"
	"strikearr/internal/config"
	"strikearr/internal/strike"
)

// EventType identifies a notification event.
type EventType string

const (
	EventImportFailedStrike EventType = "import-failed-strike"
	EventStalledStrike      EventType = "stalled-strike"
	EventSlowStrike         EventType = "slow-strike"
	EventQueueItemDeleted   EventType = "queue-item-deleted"
	EventDownloadCleaned    EventType = "download-cleaned"
	EventCategoryChanged    EventType = "category-changed"
	EventTest               EventType = "test"
)

// EventForCategory maps a failure category to the event announcing it.
func EventForCategory(category strike.Category) EventType {
	return EventType(category.EventType())
}

// Event is one notification about a queue item.
type Event struct {
	Type       EventType
	InstanceID string
	Item       arr.QueueItem
	Categories []strike.Category
	Count      int
	Timestamp  time.Time
	Message    string
}

// Title returns the short headline used by every channel.
func (e Event) Title() string {
	return "Strikearr - " + e.label()
}

func (e Event) label() string {
	switch e.Type {
	case EventImportFailedStrike:
		return "Import Failed"
	case EventStalledStrike:
		return "Download Stalled"
	case EventSlowStrike:
		return "Download Slow"
	case EventQueueItemDeleted:
		return "Queue Item Deleted"
	case EventDownloadCleaned:
		return "Download Cleaned"
	case EventCategoryChanged:
		return "Category Changed"
	case EventTest:
		return "Test"
	default:
		return string(e.Type)
	}
}

// Body renders the multi-line message text.
func (e Event) Body() string {
	if e.Item.Title == "" && e.Item.Identity == "" {
		return strings.TrimSpace(e.Message)
	}
	var b strings.Builder
	title := strings.TrimSpace(e.Item.Title)
	if title == "" {
		title = e.Item.Identity
	}
	b.WriteString(title)
	if e.InstanceID != "" {
		fmt.Fprintf(&b, "\nInstance: %s", e.InstanceID)
	}
	if e.Count > 0 {
		fmt.Fprintf(&b, "\nStrikes: %d", e.Count)
	}
	if len(e.Categories) > 0 {
		names := make([]string, 0, len(e.Categories))
		for _, c := range e.Categories {
			names = append(names, string(c))
		}
		fmt.Fprintf(&b, "\nReasons: %s", strings.Join(names, ", "))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString("\n")
		b.WriteString(msg)
	}
	return b.String()
}

// Tags returns ntfy-style tags for the event.
func (e Event) Tags() []string {
	tags := []string{"strikearr", string(e.Type)}
	if e.InstanceID != "" {
		tags = append(tags, e.InstanceID)
	}
	return tags
}

// Severity maps the event onto Apprise notification types.
func (e Event) Severity() string {
	switch e.Type {
	case EventDownloadCleaned:
		return "success"
	case EventImportFailedStrike, EventQueueItemDeleted:
		return "failure"
	case EventTest:
		return "info"
	default:
		return "warning"
	}
}

// Enabled reports whether toggles allow the event type. Test events are
// always delivered.
func Enabled(t EventType, toggles config.EventToggles) bool {
	switch t {
	case EventImportFailedStrike:
		return toggles.ImportFailedStrike
	case EventStalledStrike:
		return toggles.StalledStrike
	case EventSlowStrike:
		return toggles.SlowStrike
	case EventQueueItemDeleted:
		return toggles.QueueItemDeleted
	case EventDownloadCleaned:
		return toggles.DownloadCleaned
	case EventCategoryChanged:
		return toggles.CategoryChanged
	case EventTest:
		return true
	default:
		return false
	}
}
