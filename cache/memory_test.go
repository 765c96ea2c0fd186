package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/charter"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store/memory"
)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))
	ref := principal.User(id.New())

	// Miss
	if _, ok := c.Get(ctx, ref); ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, ref, &charter.Grants{Roles: []*role.Role{{Name: "member"}}})
	got, ok := c.Get(ctx, ref)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.HasRole("member") {
		t.Fatal("expected member role in cached snapshot")
	}

	// Same ID under another kind is a different key.
	if _, ok := c.Get(ctx, principal.ServiceAccount(ref.ID)); ok {
		t.Fatal("expected miss for other kind")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))
	ref := principal.User(id.New())

	c.Set(ctx, ref, &charter.Grants{})
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(ctx, ref); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	first := principal.User(id.New())
	c.Set(ctx, first, &charter.Grants{})
	c.Set(ctx, principal.User(id.New()), &charter.Grants{})
	c.Set(ctx, principal.User(id.New()), &charter.Grants{})

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(ctx, first); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	a := principal.User(id.New())
	b := principal.User(id.New())

	c.Set(ctx, a, &charter.Grants{})
	c.Set(ctx, b, &charter.Grants{})

	c.InvalidatePrincipal(ctx, a)
	if _, ok := c.Get(ctx, a); ok {
		t.Fatal("expected miss for invalidated principal")
	}
	if _, ok := c.Get(ctx, b); !ok {
		t.Fatal("other principal should still be cached")
	}

	c.Purge(ctx)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestEngineUsesRequestCache(t *testing.T) {
	s := memory.New()
	eng, err := charter.NewEngine(charter.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}

	base := context.Background()
	p := &principal.Principal{Kind: principal.KindUser}
	if err := s.CreatePrincipal(base, p); err != nil {
		t.Fatal(err)
	}
	perm := &permission.Permission{Name: "read--posts"}
	if err := s.CreatePermission(base, perm); err != nil {
		t.Fatal(err)
	}

	c := NewMemory()
	ctx := charter.WithCache(base, c)

	if ok, _ := eng.HasPermission(ctx, p.Ref(), "read--posts"); ok {
		t.Fatal("expected no permission yet")
	}
	if c.Len() != 1 {
		t.Fatalf("expected snapshot to be cached, got %d entries", c.Len())
	}

	// A write behind the engine's back is not seen through the cache.
	if err := s.AttachPrincipalPermissions(base, p.Ref(), []id.PermissionID{perm.ID}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := eng.HasPermission(ctx, p.Ref(), "read--posts"); ok {
		t.Fatal("expected cached snapshot to be reused")
	}
	// Without the cache the resolver reads fresh.
	if ok, _ := eng.HasPermission(base, p.Ref(), "read--posts"); !ok {
		t.Fatal("expected fresh read to see the grant")
	}

	// Mutations through the engine invalidate the request cache.
	if err := eng.DetachPermissions(ctx, p.Ref(), perm.ID); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected invalidation, got %d entries", c.Len())
	}
}
