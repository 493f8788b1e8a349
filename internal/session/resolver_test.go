package session_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitelink-erp/sitelink/internal/credstore"
	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/rbac"
	"github.com/sitelink-erp/sitelink/internal/session"
)

// stubAPI scripts the upstream identity service per call.
type stubAPI struct {
	user      *erpapi.User
	loginErr  error
	identErr  error
	token     string
	lastLogin string
}

func (s *stubAPI) Login(_ context.Context, email, _ string) (string, *erpapi.User, error) {
	if s.loginErr != nil {
		return "", nil, s.loginErr
	}
	s.lastLogin = email
	return s.token, s.user, nil
}

func (s *stubAPI) Identity(_ context.Context, token string) (*erpapi.User, error) {
	if s.identErr != nil {
		return nil, s.identErr
	}
	if token != s.token {
		return nil, fmt.Errorf("stub: bad token: %w", erpapi.ErrAuthRejected)
	}
	return s.user, nil
}

func (s *stubAPI) UpdateProfile(_ context.Context, token string, update erpapi.ProfileUpdate) (*erpapi.User, error) {
	if token != s.token {
		return nil, fmt.Errorf("stub: bad token: %w", erpapi.ErrAuthRejected)
	}
	u := *s.user
	u.Name = update.Name
	u.Email = update.Email
	u.Avatar = update.Avatar
	return &u, nil
}

func adminUser() *erpapi.User {
	return &erpapi.User{ID: "u-1", Name: "Asha", Email: "asha@example.com", Role: rbac.RoleAdmin}
}

func newFixture(api session.IdentityAPI) (*session.Resolver, *credstore.Store, *credstore.MemoryTier) {
	primary := credstore.NewMemoryTier()
	backup := credstore.NewMemoryTier()
	store := credstore.NewStore(primary, backup, "test-secret", nil)
	return session.NewResolver("sid-1", store, api, nil), store, primary
}

func TestResolveWithoutToken(t *testing.T) {
	resolver, _, _ := newFixture(&stubAPI{})

	err := resolver.Resolve(context.Background())
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
	require.Equal(t, session.StateUnauthenticated, resolver.State())
}

func TestResolveWithValidToken(t *testing.T) {
	api := &stubAPI{user: adminUser(), token: "tok-1"}
	resolver, store, _ := newFixture(api)
	store.Save(context.Background(), "sid-1", "tok-1")

	require.NoError(t, resolver.Resolve(context.Background()))
	require.Equal(t, session.StateAuthenticated, resolver.State())
	user, ok := resolver.User()
	require.True(t, ok)
	require.Equal(t, "u-1", user.ID)
	require.Equal(t, "tok-1", resolver.Token())
}

func TestRejectedTokenClearsStore(t *testing.T) {
	api := &stubAPI{user: adminUser(), token: "tok-1", identErr: fmt.Errorf("401: %w", erpapi.ErrAuthRejected)}
	resolver, store, _ := newFixture(api)
	ctx := context.Background()
	store.Save(ctx, "sid-1", "tok-1")

	err := resolver.Resolve(ctx)
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
	require.Equal(t, session.StateUnauthenticated, resolver.State())

	_, err = store.Read(ctx, "sid-1")
	require.ErrorIs(t, err, credstore.ErrNoToken)
}

func TestUnreachableServiceRetainsToken(t *testing.T) {
	api := &stubAPI{user: adminUser(), token: "tok-1", identErr: fmt.Errorf("dial: %w", erpapi.ErrUnreachable)}
	resolver, store, _ := newFixture(api)
	ctx := context.Background()
	store.Save(ctx, "sid-1", "tok-1")

	err := resolver.Resolve(ctx)
	require.ErrorIs(t, err, session.ErrDegraded)
	require.Equal(t, session.StateDegraded, resolver.State())

	// The token survives the outage.
	token, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)

	// Resolve stays settled on degraded without retrying by itself.
	require.ErrorIs(t, resolver.Resolve(ctx), session.ErrDegraded)
}

func TestRetryAuthRecoversWithoutRelogin(t *testing.T) {
	api := &stubAPI{user: adminUser(), token: "tok-1", identErr: fmt.Errorf("dial: %w", erpapi.ErrUnreachable)}
	resolver, store, _ := newFixture(api)
	ctx := context.Background()
	store.Save(ctx, "sid-1", "tok-1")

	require.ErrorIs(t, resolver.Resolve(ctx), session.ErrDegraded)

	// Service comes back; an explicit retry confirms the identity.
	api.identErr = nil
	require.NoError(t, resolver.RetryAuth(ctx))
	require.Equal(t, session.StateAuthenticated, resolver.State())
	user, ok := resolver.User()
	require.True(t, ok)
	require.Equal(t, "u-1", user.ID)
}

func TestRetryAuthOutsideDegraded(t *testing.T) {
	resolver, _, _ := newFixture(&stubAPI{})
	require.ErrorIs(t, resolver.RetryAuth(context.Background()), session.ErrNotDegraded)
}

func TestLoginFailureKeepsStateAndToken(t *testing.T) {
	api := &stubAPI{user: adminUser(), token: "tok-1"}
	resolver, store, _ := newFixture(api)
	ctx := context.Background()

	store.Save(ctx, "sid-1", "tok-1")
	require.NoError(t, resolver.Resolve(ctx))

	api.loginErr = fmt.Errorf("bad password: %w", erpapi.ErrAuthRejected)
	_, err := resolver.Login(ctx, "asha@example.com", "wrong-password")
	require.ErrorIs(t, err, erpapi.ErrAuthRejected)
	require.Equal(t, session.StateAuthenticated, resolver.State())

	token, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
}

func TestLogoutThenLoginRoundTrip(t *testing.T) {
	api := &stubAPI{user: adminUser(), token: "tok-1"}
	resolver, store, _ := newFixture(api)
	ctx := context.Background()

	user, err := resolver.Login(ctx, "asha@example.com", "correct-password")
	require.NoError(t, err)
	require.Equal(t, "u-1", user.ID)

	resolver.Logout(ctx)
	require.Equal(t, session.StateUnauthenticated, resolver.State())
	_, err = store.Read(ctx, "sid-1")
	require.ErrorIs(t, err, credstore.ErrNoToken)
	require.Empty(t, resolver.Token())

	again, err := resolver.Login(ctx, "asha@example.com", "correct-password")
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)
	require.Equal(t, user.Role, again.Role)
}

func TestUpdateProfileRequiresAuthentication(t *testing.T) {
	resolver, _, _ := newFixture(&stubAPI{})
	_, err := resolver.UpdateProfile(context.Background(), erpapi.ProfileUpdate{Name: "New"})
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestUpdateProfileFoldsIntoSession(t *testing.T) {
	api := &stubAPI{user: adminUser(), token: "tok-1"}
	resolver, _, _ := newFixture(api)
	ctx := context.Background()

	_, err := resolver.Login(ctx, "asha@example.com", "correct-password")
	require.NoError(t, err)

	updated, err := resolver.UpdateProfile(ctx, erpapi.ProfileUpdate{Name: "Asha K", Email: "asha.k@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Asha K", updated.Name)

	user, ok := resolver.User()
	require.True(t, ok)
	require.Equal(t, "Asha K", user.Name)
	require.Equal(t, rbac.RoleAdmin, user.Role)
}

func TestRegistrySharesResolverPerSession(t *testing.T) {
	primary := credstore.NewMemoryTier()
	store := credstore.NewStore(primary, credstore.NewMemoryTier(), "test-secret", nil)
	registry := session.NewRegistry(store, &stubAPI{}, 0, nil)

	a := registry.For("sid-a")
	require.Same(t, a, registry.For("sid-a"))
	require.NotSame(t, a, registry.For("sid-b"))
	require.Equal(t, 2, registry.Len())

	registry.Drop("sid-a")
	require.Equal(t, 1, registry.Len())
	require.NotSame(t, a, registry.For("sid-a"))
}
