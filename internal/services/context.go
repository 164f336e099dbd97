package services

import "context"

type contextKey string

const (
	instanceKey contextKey = "instance"
	identityKey contextKey = "identity"
	cycleKey    contextKey = "cycle_id"
)

// WithInstance annotates context with the configured instance name.
func WithInstance(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, instanceKey, name)
}

// InstanceFromContext returns the instance name if present.
func InstanceFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(instanceKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithIdentity annotates context with a queue item identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	if identity == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the queue item identity if present.
func IdentityFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(identityKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCycleID annotates context with the poll cycle identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleKey, id)
}

// CycleIDFromContext extracts the poll cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
