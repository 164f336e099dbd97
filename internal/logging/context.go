package logging

import (
	"context"
	"log/slog"

	"strikearr/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldInstance is the standardized key for configured instance names.
	FieldInstance = "instance"
	// FieldIdentity is the standardized key for queue item identities.
	FieldIdentity = "identity"
	// FieldCycleID is the standardized key for poll cycle identifiers.
	FieldCycleID = "cycle_id"
	// FieldCategory is the standardized key for failure categories.
	FieldCategory = "category"
	// FieldEventType names the machine-readable event a log line represents.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if name, ok := services.InstanceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldInstance, name))
	}
	if identity, ok := services.IdentityFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldIdentity, identity))
	}
	if cycle, ok := services.CycleIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCycleID, cycle))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
