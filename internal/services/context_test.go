package services_test

import (
	"context"
	"testing"

	"strikearr/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithInstance(ctx, "sonarr-main")
	ctx = services.WithIdentity(ctx, "abc|Show.S01E01")
	ctx = services.WithCycleID(ctx, "cycle-1")

	if v, ok := services.InstanceFromContext(ctx); !ok || v != "sonarr-main" {
		t.Fatalf("unexpected instance: %v %v", v, ok)
	}
	if v, ok := services.IdentityFromContext(ctx); !ok || v != "abc|Show.S01E01" {
		t.Fatalf("unexpected identity: %v %v", v, ok)
	}
	if v, ok := services.CycleIDFromContext(ctx); !ok || v != "cycle-1" {
		t.Fatalf("unexpected cycle id: %v %v", v, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithInstance(context.Background(), "")
	if _, ok := services.InstanceFromContext(ctx); ok {
		t.Fatal("expected no instance value")
	}
}
