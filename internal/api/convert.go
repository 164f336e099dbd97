package api

import (
	"time"

	"strikearr/internal/ledger"
	"strikearr/internal/poller"
	"strikearr/internal/strike"
)

// FromPollerStatus converts an instance loop status to its API representation.
func FromPollerStatus(status poller.Status) InstanceStatus {
	return InstanceStatus{
		Name:                status.Instance,
		ServiceType:         status.ServiceType,
		State:               string(status.State),
		Cycles:              status.Cycles,
		LastCycleID:         status.LastCycleID,
		LastCycleAt:         FormatTime(status.LastCycleAt),
		LastDurationMs:      status.LastDuration.Milliseconds(),
		LastError:           status.LastError,
		LastErrorAt:         FormatTime(status.LastErrorAt),
		QueueSize:           status.QueueSize,
		Struck:              status.Struck,
		Removed:             status.Removed,
		Failed:              status.Failed,
		TrackedItems:        status.TrackedItems,
		NextCycleAt:         FormatTime(status.NextCycleAt),
		ConsecutiveFailures: status.ConsecutiveFailures,
	}
}

// FromDatabaseHealth converts ledger diagnostics.
func FromDatabaseHealth(h ledger.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		DBPath:           h.DBPath,
		DatabaseExists:   h.DatabaseExists,
		DatabaseReadable: h.DatabaseReadable,
		SchemaVersion:    h.SchemaVersion,
		IntegrityCheck:   h.IntegrityCheck,
		StrikeRecords:    h.StrikeRecords,
		Actions:          h.Actions,
		Error:            h.Error,
	}
}

// FromRecord converts a ledger strike record.
func FromRecord(rec strike.Record) StrikeRecord {
	return StrikeRecord{
		Instance:     rec.InstanceID,
		Identity:     rec.Identity,
		Title:        rec.Title,
		Category:     string(rec.Category),
		Count:        rec.Count,
		FirstSeenAt:  FormatTime(rec.FirstSeenAt),
		LastStruckAt: FormatTime(rec.LastStruckAt),
		LastCycle:    rec.LastCycle,
	}
}

// FromRecords converts a slice of records, never returning nil.
func FromRecords(records []strike.Record) []StrikeRecord {
	out := make([]StrikeRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromAction converts an action log entry.
func FromAction(action strike.Action) Action {
	dto := Action{
		ID:         action.ID,
		CycleID:    action.CycleID,
		Instance:   action.InstanceID,
		Identity:   action.Identity,
		Title:      action.Title,
		Kind:       string(action.Kind),
		Categories: make([]string, 0, len(action.Categories)),
		Removed:    action.Removed,
		Blocked:    action.Blocked,
		Researched: action.Researched,
		Error:      action.Error,
		At:         FormatTime(action.At),
	}
	for _, c := range action.Categories {
		dto.Categories = append(dto.Categories, string(c))
	}
	if len(action.Counts) > 0 {
		dto.Counts = make(map[string]int, len(action.Counts))
		for c, n := range action.Counts {
			dto.Counts[string(c)] = n
		}
	}
	return dto
}

// FromActions converts a slice of actions, never returning nil.
func FromActions(actions []strike.Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, FromAction(a))
	}
	return out
}

// FromTotals flattens per-instance category totals into string keys.
func FromTotals(totals map[string]map[strike.Category]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(totals))
	for instance, counts := range totals {
		inner := make(map[string]int, len(counts))
		for c, n := range counts {
			inner[string(c)] = n
		}
		out[instance] = inner
	}
	return out
}

// ParseTime parses a timestamp produced by this package. Empty or invalid
// values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTime renders t in the API timestamp format; the zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
