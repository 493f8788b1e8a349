package impersonation

import (
	"log/slog"
	"sync"

	"github.com/sitelink-erp/sitelink/internal/erpapi"
)

// Selectors keys selectors by gateway session ID. A selector is bound to
// the acting user that created it: when the session re-authenticates as
// someone else the old selection is discarded, so a logout/login round trip
// always starts with an empty selection.
type Selectors struct {
	mu     sync.Mutex
	m      map[string]*Selector
	logger *slog.Logger
}

// NewSelectors constructs the per-session selector map.
func NewSelectors(logger *slog.Logger) *Selectors {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selectors{m: make(map[string]*Selector), logger: logger}
}

// For returns the session's selector, creating a fresh one when the session
// is new or the acting user has changed.
func (s *Selectors) For(sessionID string, acting erpapi.User) *Selector {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.m[sessionID]
	if !ok || sel.ActingUser().ID != acting.ID {
		sel = NewSelector(acting, s.logger)
		s.m[sessionID] = sel
	}
	return sel
}

// Drop discards a session's selector, e.g. on logout.
func (s *Selectors) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionID)
}
