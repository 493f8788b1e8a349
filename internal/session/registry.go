package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sitelink-erp/sitelink/internal/credstore"
)

const sweepInterval = 10 * time.Minute

// Registry keys resolvers by gateway session ID so every request from one
// browser session shares a single state machine.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	store     *credstore.Store
	api       IdentityAPI
	logger    *slog.Logger
	idleTTL   time.Duration
	lastSweep time.Time
}

type entry struct {
	resolver *Resolver
	lastSeen time.Time
}

// NewRegistry constructs a Registry. Entries idle longer than idleTTL are
// swept lazily; the credential tiers have their own expiry.
func NewRegistry(store *credstore.Store, api IdentityAPI, idleTTL time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if idleTTL <= 0 {
		idleTTL = 2 * time.Hour
	}
	return &Registry{
		entries:   make(map[string]*entry),
		store:     store,
		api:       api,
		logger:    logger,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
	}
}

// For returns the resolver for a session, creating it on first sight.
func (g *Registry) For(sessionID string) *Resolver {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	g.sweepLocked(now)
	e, ok := g.entries[sessionID]
	if !ok {
		e = &entry{resolver: NewResolver(sessionID, g.store, g.api, g.logger)}
		g.entries[sessionID] = e
	}
	e.lastSeen = now
	return e.resolver
}

// Drop discards a session's resolver, e.g. after logout.
func (g *Registry) Drop(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, sessionID)
}

// Len reports the number of live entries.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *Registry) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < sweepInterval {
		return
	}
	g.lastSweep = now
	for id, e := range g.entries {
		if now.Sub(e.lastSeen) > g.idleTTL {
			delete(g.entries, id)
		}
	}
}
