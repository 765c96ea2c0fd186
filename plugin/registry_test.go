package plugin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
)

// testPlugin implements Plugin + RoleCreated + RolesAttached.
type testPlugin struct {
	roleCreatedCalled bool
	attached          []id.RoleID
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testPlugin) OnRolesAttached(_ context.Context, _ principal.Ref, roleIDs []id.RoleID) error {
	t.attached = append(t.attached, roleIDs...)
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

// failingPlugin returns an error from its hook.
type failingPlugin struct{}

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnPrincipalVerified(_ context.Context, _ *principal.Principal) error {
	return errors.New("boom")
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch RoleCreated to testPlugin only.
	reg.EmitRoleCreated(ctx, &role.Role{Name: "admin"})
	if !tp.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	rid := id.New()
	reg.EmitRolesAttached(ctx, principal.User(id.New()), []id.RoleID{rid})
	if len(tp.attached) != 1 || tp.attached[0] != rid {
		t.Fatalf("OnRolesAttached got %v", tp.attached)
	}

	// Should not panic on hooks with no listeners.
	reg.EmitRoleDeleted(ctx, id.New())
	reg.EmitPermissionsRevoked(ctx, principal.User(id.New()), nil)
	reg.EmitShutdown(ctx)
}

func TestRegistryHookErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	reg.Register(&failingPlugin{})

	reg.EmitPrincipalVerified(context.Background(), &principal.Principal{Kind: principal.KindUser})

	out := buf.String()
	if !strings.Contains(out, "plugin hook error") || !strings.Contains(out, "plugin=failing") {
		t.Fatalf("expected hook error to be logged, got %q", out)
	}
}
