package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/charter"
	"github.com/xraph/charter/metrics"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store/memory"
)

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	// The grant vec has no series until a label pair is observed.
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestCollectorCountsLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	st := memory.New()
	eng, err := charter.NewEngine(charter.WithStore(st), charter.WithPlugin(c))
	require.NoError(t, err)

	member := role.Definition{Name: role.Member}.New()
	require.NoError(t, eng.CreateRole(ctx, member))

	read := &permission.Permission{Name: permission.NameFor("read", "posts")}
	write := &permission.Permission{Name: permission.NameFor("update", "posts")}
	require.NoError(t, eng.CreatePermission(ctx, read))
	require.NoError(t, eng.CreatePermission(ctx, write))

	require.NoError(t, eng.AttachPermissionsToRole(ctx, member.ID, read.ID, write.ID))

	p := &principal.Principal{Kind: principal.KindUser, Email: "ada@example.com"}
	require.NoError(t, st.CreatePrincipal(ctx, p))
	require.NoError(t, eng.OnPrincipalVerified(ctx, p))

	require.NoError(t, eng.AttachPermissions(ctx, p.Ref(), write.ID))
	require.NoError(t, eng.DetachPermissions(ctx, p.Ref(), write.ID))
	require.NoError(t, eng.DetachRoles(ctx, p.Ref(), member.ID))
	require.NoError(t, eng.DeletePermission(ctx, write.ID))

	assert.InDelta(t, 1, value(t, reg, "charter_roles_created_total", nil), 0)
	assert.InDelta(t, 2, value(t, reg, "charter_permissions_created_total", nil), 0)
	assert.InDelta(t, 1, value(t, reg, "charter_permissions_deleted_total", nil), 0)
	assert.InDelta(t, 1, value(t, reg, "charter_principals_verified_total", nil), 0)

	series, err := testutil.GatherAndCount(reg, "charter_grant_mutations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, series)
	expected := map[[2]string]float64{
		{"role_permission", "attach"}:      2,
		{"principal_permission", "attach"}: 1,
		{"principal_permission", "detach"}: 1,
		{"principal_role", "detach"}:       1,
	}
	for labels, want := range expected {
		got := value(t, reg, "charter_grant_mutations_total", map[string]string{"relation": labels[0], "op": labels[1]})
		assert.InDelta(t, want, got, 0, "%v", labels)
	}
}

// value returns the counter sample of the named family whose labels
// include every pair in match.
func value(t *testing.T, reg *prometheus.Registry, name string, match map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range match {
				if labels[k] != v {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
