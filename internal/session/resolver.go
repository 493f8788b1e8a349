// Package session owns the per-browser-session resolver state machine that
// exchanges stored credentials for an authenticated identity, and the
// registry that keys resolvers by gateway session ID.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sitelink-erp/sitelink/internal/credstore"
	"github.com/sitelink-erp/sitelink/internal/erpapi"
)

// State is the resolver's lifecycle position.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateResolving       State = "resolving"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
	// StateDegraded means a token exists but the identity service could not
	// be reached: the user is neither logged in nor logged out, and only an
	// explicit retry or logout moves the machine forward.
	StateDegraded State = "degraded"
)

var (
	// ErrNotAuthenticated indicates no valid token anywhere.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrDegraded indicates a retained token whose owner could not be
	// confirmed because the identity service was unreachable.
	ErrDegraded = errors.New("session: identity service unreachable")
	// ErrNotDegraded rejects a retry issued outside the degraded state.
	ErrNotDegraded = errors.New("session: retry only valid in degraded state")
)

// IdentityAPI is the slice of the upstream client the resolver depends on.
type IdentityAPI interface {
	Login(ctx context.Context, email, password string) (string, *erpapi.User, error)
	Identity(ctx context.Context, token string) (*erpapi.User, error)
	UpdateProfile(ctx context.Context, token string, update erpapi.ProfileUpdate) (*erpapi.User, error)
}

// Resolver drives one session through
// uninitialized → resolving → {authenticated, unauthenticated, degraded}.
// All mutation goes through the mutex; the UI is the only writer but
// concurrent requests from one browser still share the instance.
type Resolver struct {
	mu        sync.Mutex
	sessionID string
	store     *credstore.Store
	api       IdentityAPI
	logger    *slog.Logger

	state State
	user  *erpapi.User
	token string
}

// NewResolver constructs a Resolver for one gateway session.
func NewResolver(sessionID string, store *credstore.Store, api IdentityAPI, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		sessionID: sessionID,
		store:     store,
		api:       api,
		logger:    logger,
		state:     StateUninitialized,
	}
}

// State returns the current lifecycle position.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// User returns the confirmed identity, valid only when authenticated.
func (r *Resolver) User() (*erpapi.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateAuthenticated || r.user == nil {
		return nil, false
	}
	u := *r.user
	return &u, true
}

// Token returns the upstream bearer token, valid only when authenticated.
func (r *Resolver) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateAuthenticated {
		return ""
	}
	return r.token
}

// Resolve drives the machine to a settled state. It is idempotent once
// settled: authenticated resolves to nil, unauthenticated to
// ErrNotAuthenticated, degraded to ErrDegraded without touching the network
// again (recovery from degraded is explicit via RetryAuth, never automatic).
func (r *Resolver) Resolve(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateAuthenticated:
		return nil
	case StateUnauthenticated:
		return ErrNotAuthenticated
	case StateDegraded:
		return ErrDegraded
	}
	return r.resolveLocked(ctx)
}

func (r *Resolver) resolveLocked(ctx context.Context) error {
	token, err := r.store.Read(ctx, r.sessionID)
	if err != nil {
		if errors.Is(err, credstore.ErrNoToken) {
			r.state = StateUnauthenticated
			return ErrNotAuthenticated
		}
		// The store itself is unreachable: a token may well exist, so this
		// is ambiguity, not a logout.
		r.logger.Warn("credential read failed", slog.Any("error", err))
		r.state = StateDegraded
		return fmt.Errorf("%v: %w", err, ErrDegraded)
	}

	r.state = StateResolving
	user, err := r.api.Identity(ctx, token)
	if err != nil {
		if errors.Is(err, erpapi.ErrAuthRejected) {
			r.store.Clear(ctx, r.sessionID)
			r.state = StateUnauthenticated
			r.user = nil
			r.token = ""
			return ErrNotAuthenticated
		}
		// Token retained. Losing this distinction logs legitimate users out
		// during transient outages.
		r.state = StateDegraded
		return fmt.Errorf("%v: %w", err, ErrDegraded)
	}

	r.state = StateAuthenticated
	r.user = user
	r.token = token
	return nil
}

// RetryAuth re-enters resolving. Callable only from degraded.
func (r *Resolver) RetryAuth(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateDegraded {
		return ErrNotDegraded
	}
	r.state = StateUninitialized
	return r.resolveLocked(ctx)
}

// Login exchanges credentials upstream. On failure the prior state is kept
// and any previously stored token is left untouched; the error stays
// classified so the caller can tell a wrong password from an outage.
func (r *Resolver) Login(ctx context.Context, email, password string) (*erpapi.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, user, err := r.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	r.store.Save(ctx, r.sessionID, token)
	r.state = StateAuthenticated
	r.user = user
	r.token = token
	u := *user
	return &u, nil
}

// Logout clears stored credentials and settles on unauthenticated,
// regardless of the current state.
func (r *Resolver) Logout(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Clear(ctx, r.sessionID)
	r.state = StateUnauthenticated
	r.user = nil
	r.token = ""
}

// Invalidate handles an upstream auth rejection noticed mid-session, e.g. a
// token expiring while a module fetch was in flight.
func (r *Resolver) Invalidate(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Clear(ctx, r.sessionID)
	r.state = StateUnauthenticated
	r.user = nil
	r.token = ""
}

// UpdateProfile pushes the self-service profile fields upstream and folds
// the returned record into the session.
func (r *Resolver) UpdateProfile(ctx context.Context, update erpapi.ProfileUpdate) (*erpapi.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateAuthenticated {
		return nil, ErrNotAuthenticated
	}
	user, err := r.api.UpdateProfile(ctx, r.token, update)
	if err != nil {
		return nil, err
	}
	r.user = user
	u := *user
	return &u, nil
}
