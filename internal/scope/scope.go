// Package scope computes, per request, which user id a dashboard module
// must fetch with and which mutation controls its UI may offer. Values are
// derived on demand and never cached.
package scope

import (
	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/impersonation"
	"github.com/sitelink-erp/sitelink/internal/rbac"
)

// ScopedQuery is the entire surface a dashboard module needs: a plain user
// id to parameterize its fetches and the boolean flags gating its buttons.
type ScopedQuery struct {
	EffectiveUserID string            `json:"effective_user_id"`
	Allowed         rbac.ModuleRights `json:"allowed"`
}

// Resolve derives the scoped query for one module. The effective user id
// follows the impersonation target; the allowed actions follow the acting
// user's role and only the acting user's role.
func Resolve(acting erpapi.User, selector *impersonation.Selector, module string) ScopedQuery {
	effective := acting
	if selector != nil {
		effective = selector.CurrentTarget()
	}
	return ScopedQuery{
		EffectiveUserID: effective.ID,
		Allowed:         rbac.AllowedActions(acting.Role, module),
	}
}
