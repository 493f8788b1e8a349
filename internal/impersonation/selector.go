// Package impersonation tracks which user's data a privileged role has
// chosen to view. Selection changes what is displayed, never which
// privileges apply.
package impersonation

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/rbac"
)

// ErrDenied rejects a selection attempt from a role without the
// cross-user viewing right.
var ErrDenied = errors.New("impersonation: role may not view other users")

// Selector holds one session's impersonation choice. The zero selection
// means "view own data".
type Selector struct {
	mu     sync.Mutex
	acting erpapi.User
	target *erpapi.User
	logger *slog.Logger
}

// NewSelector constructs a Selector for the acting user.
func NewSelector(acting erpapi.User, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{acting: acting, logger: logger}
}

// ActingUser returns the authenticated identity behind the session.
func (s *Selector) ActingUser() erpapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acting
}

// AvailableToSelect reports whether the acting role may pick a target.
func (s *Selector) AvailableToSelect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rbac.CanImpersonate(s.acting.Role)
}

// Select records a target user. Denied, logged, and state-preserving when
// the acting role lacks the right.
func (s *Selector) Select(target erpapi.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !rbac.CanImpersonate(s.acting.Role) {
		s.logger.Warn("impersonation denied",
			slog.String("acting_user", s.acting.ID),
			slog.String("acting_role", string(s.acting.Role)),
			slog.String("target_user", target.ID))
		return ErrDenied
	}
	t := target
	s.target = &t
	return nil
}

// CurrentTarget returns the explicit target when set, else the acting user.
func (s *Selector) CurrentTarget() erpapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target != nil {
		return *s.target
	}
	return s.acting
}

// HasSelection reports whether an explicit target is set.
func (s *Selector) HasSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target != nil
}

// Reset clears the explicit selection back to self. The SPA calls this from
// its route-mount hook on every page change so a stale choice never leaks
// into an unrelated module.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = nil
}
