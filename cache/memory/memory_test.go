package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/reoring/ccv/cache"
	"github.com/reoring/ccv/cache/memory"
	"github.com/reoring/ccv/validator"
)

var _ cache.Cache = (*memory.Cache)(nil)

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := memory.New(2, 0)

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss = (%v, %v)", ok, err)
	}

	r := validator.Report{Errors: []validator.Diagnostic{{Path: "/a", Code: validator.CodeRequired}}}
	if err := c.Set(ctx, "k1", r); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("hit = (%v, %v)", ok, err)
	}
	if got.Valid() || got.Errors[0].Path != "/a" {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestCache_Evicts(t *testing.T) {
	ctx := context.Background()
	c := memory.New(2, 0)
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, validator.Report{})
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
}

func TestCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := memory.New(8, 20*time.Millisecond)
	_ = c.Set(ctx, "k", validator.Report{})
	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
}
