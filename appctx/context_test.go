package appctx

import (
	"context"
	"testing"
)

func TestSetAndGet_TypedValues(t *testing.T) {
	ctx := context.Background()
	ctx = Set(ctx, ContextKeyUserId, 42)
	ctx = Set(ctx, ContextKeyUsername, "aleena")
	ctx = Set(ctx, ContextKeyIsAdmin, true)

	if v, ok := GetInt(ctx, ContextKeyUserId); !ok || v != 42 {
		t.Fatalf("expected user id 42, got %d (ok=%v)", v, ok)
	}
	if v, ok := GetString(ctx, ContextKeyUsername); !ok || v != "aleena" {
		t.Fatalf("expected username aleena, got %q (ok=%v)", v, ok)
	}
	if v, ok := GetBool(ctx, ContextKeyIsAdmin); !ok || !v {
		t.Fatalf("expected admin flag, got %v (ok=%v)", v, ok)
	}
	// wrong type reads as absent
	if _, ok := GetString(ctx, ContextKeyUserId); ok {
		t.Fatalf("expected int key to be absent when read as string")
	}
}
