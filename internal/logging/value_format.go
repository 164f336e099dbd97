package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// attrString renders a value unquoted, for the subject columns.
func attrString(v slog.Value) string {
	s, _ := renderValue(v)
	return s
}

// formatValue renders a value for key=value output, quoting text that would
// otherwise be ambiguous.
func formatValue(v slog.Value) string {
	s, textual := renderValue(v)
	if textual && needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func renderValue(v slog.Value) (string, bool) {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool()), false
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10), false
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10), false
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64), false
	case slog.KindDuration:
		return v.Duration().String(), false
	case slog.KindTime:
		return v.Time().In(time.Local).Format(logTimestampLayout), false
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error(), true
		}
		return fmt.Sprint(v.Any()), true
	default:
		return v.String(), true
	}
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
