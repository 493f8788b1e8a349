package impersonation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/impersonation"
	"github.com/sitelink-erp/sitelink/internal/rbac"
)

var (
	admin    = erpapi.User{ID: "u-admin", Name: "Asha", Role: rbac.RoleAdmin}
	siteUser = erpapi.User{ID: "u-site", Name: "Budi", Role: rbac.RoleSite}
	other    = erpapi.User{ID: "u-other", Name: "Caca", Role: rbac.RoleStore}
)

func TestSelectorDefaultsToSelf(t *testing.T) {
	sel := impersonation.NewSelector(admin, nil)
	require.Equal(t, "u-admin", sel.CurrentTarget().ID)
	require.False(t, sel.HasSelection())
}

func TestPrivilegedRoleSelectsAndResets(t *testing.T) {
	sel := impersonation.NewSelector(admin, nil)
	require.True(t, sel.AvailableToSelect())

	require.NoError(t, sel.Select(siteUser))
	require.Equal(t, "u-site", sel.CurrentTarget().ID)
	require.True(t, sel.HasSelection())

	sel.Reset()
	require.Equal(t, "u-admin", sel.CurrentTarget().ID)
	require.False(t, sel.HasSelection())
}

func TestUnprivilegedSelectIsDeniedWithoutStateChange(t *testing.T) {
	sel := impersonation.NewSelector(siteUser, nil)
	require.False(t, sel.AvailableToSelect())

	err := sel.Select(other)
	require.ErrorIs(t, err, impersonation.ErrDenied)
	require.Equal(t, "u-site", sel.CurrentTarget().ID)
	require.False(t, sel.HasSelection())
}

func TestUnknownRoleCannotSelect(t *testing.T) {
	ghost := erpapi.User{ID: "u-ghost", Role: rbac.Role("superuser")}
	sel := impersonation.NewSelector(ghost, nil)
	require.False(t, sel.AvailableToSelect())
	require.ErrorIs(t, sel.Select(other), impersonation.ErrDenied)
}

func TestSelectorsRebindOnActingUserChange(t *testing.T) {
	selectors := impersonation.NewSelectors(nil)

	sel := selectors.For("sid", admin)
	require.NoError(t, sel.Select(siteUser))
	require.Same(t, sel, selectors.For("sid", admin))

	// Session re-authenticates as someone else: the selection is discarded.
	next := selectors.For("sid", siteUser)
	require.NotSame(t, sel, next)
	require.Equal(t, "u-site", next.CurrentTarget().ID)
	require.False(t, next.HasSelection())
}

func TestSelectorsDrop(t *testing.T) {
	selectors := impersonation.NewSelectors(nil)
	sel := selectors.For("sid", admin)
	require.NoError(t, sel.Select(siteUser))

	selectors.Drop("sid")
	fresh := selectors.For("sid", admin)
	require.NotSame(t, sel, fresh)
	require.False(t, fresh.HasSelection())
}
