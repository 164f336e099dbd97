package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid patterns, thresholds, or settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks network or auth failures against an instance; retried next cycle.
	ErrTransient = errors.New("transient failure")
	// ErrRemediation marks removal or re-search calls that failed after retries.
	ErrRemediation = errors.New("remediation error")
	// ErrNotification marks channel delivery failures. Never propagated past the dispatcher.
	ErrNotification = errors.New("notification error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err must stop the engine from starting.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// Kind returns a short label for metrics and log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrRemediation):
		return "remediation"
	case errors.Is(err, ErrNotification):
		return "notification"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
