package scope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/impersonation"
	"github.com/sitelink-erp/sitelink/internal/rbac"
	"github.com/sitelink-erp/sitelink/internal/scope"
)

var (
	admin    = erpapi.User{ID: "u-admin", Role: rbac.RoleAdmin}
	siteUser = erpapi.User{ID: "u-site", Role: rbac.RoleSite}
)

func TestScopeFollowsImpersonationTarget(t *testing.T) {
	sel := impersonation.NewSelector(admin, nil)

	q := scope.Resolve(admin, sel, rbac.ModuleInventory)
	require.Equal(t, "u-admin", q.EffectiveUserID)

	require.NoError(t, sel.Select(siteUser))
	q = scope.Resolve(admin, sel, rbac.ModuleInventory)
	require.Equal(t, "u-site", q.EffectiveUserID)

	sel.Reset()
	q = scope.Resolve(admin, sel, rbac.ModuleInventory)
	require.Equal(t, "u-admin", q.EffectiveUserID)
}

// Permission follows the actor, not the viewed data: admin viewing a site
// user's inventory keeps the admin's rights, not the site user's.
func TestAllowedActionsFollowActingRole(t *testing.T) {
	sel := impersonation.NewSelector(admin, nil)
	require.NoError(t, sel.Select(siteUser))

	q := scope.Resolve(admin, sel, rbac.ModuleInventory)
	require.Equal(t, "u-site", q.EffectiveUserID)
	require.Equal(t, rbac.ModuleRights{CanCreate: true, CanEdit: true, CanDelete: true}, q.Allowed)
}

func TestAllowedInvariantUnderTargetChange(t *testing.T) {
	sel := impersonation.NewSelector(admin, nil)
	for _, module := range rbac.Modules() {
		before := scope.Resolve(admin, sel, module).Allowed
		require.NoError(t, sel.Select(siteUser))
		require.Equal(t, before, scope.Resolve(admin, sel, module).Allowed, "module %s", module)
		sel.Reset()
	}
}

func TestUnprivilegedScopeIsPinnedToSelf(t *testing.T) {
	sel := impersonation.NewSelector(siteUser, nil)
	_ = sel.Select(admin) // denied, must not move the scope

	q := scope.Resolve(siteUser, sel, rbac.ModuleInventory)
	require.Equal(t, "u-site", q.EffectiveUserID)
	require.Equal(t, rbac.ModuleRights{CanCreate: true}, q.Allowed)
}

func TestNilSelectorScopesToActingUser(t *testing.T) {
	q := scope.Resolve(siteUser, nil, rbac.ModuleDocuments)
	require.Equal(t, "u-site", q.EffectiveUserID)
}
