package credstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sitelink-erp/sitelink/internal/credstore"
)

func newStore(t *testing.T) (*credstore.Store, *credstore.MemoryTier, *credstore.MemoryTier) {
	t.Helper()
	primary := credstore.NewMemoryTier()
	backup := credstore.NewMemoryTier()
	return credstore.NewStore(primary, backup, "test-secret", nil), primary, backup
}

func TestSaveMirrorsBothTiers(t *testing.T) {
	ctx := context.Background()
	store, primary, backup := newStore(t)

	store.Save(ctx, "sid", "token-1")
	require.Equal(t, 1, primary.Len())
	require.Equal(t, 1, backup.Len())

	token, err := store.Read(ctx, "sid")
	require.NoError(t, err)
	require.Equal(t, "token-1", token)
}

func TestTokensAreSealedAtRest(t *testing.T) {
	ctx := context.Background()
	store, primary, _ := newStore(t)

	store.Save(ctx, "sid", "token-1")
	sealed, err := primary.Read(ctx, "sid")
	require.NoError(t, err)
	require.NotEqual(t, "token-1", sealed)
	require.NotContains(t, sealed, "token-1")
}

func TestReadFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	store, primary, _ := newStore(t)

	store.Save(ctx, "sid", "token-1")
	// Primary evicted by a policy outside the application's control.
	require.NoError(t, primary.Delete(ctx, "sid"))

	token, err := store.Read(ctx, "sid")
	require.NoError(t, err)
	require.Equal(t, "token-1", token)
}

func TestReadPrefersPrimary(t *testing.T) {
	ctx := context.Background()
	primary := credstore.NewMemoryTier()
	backup := credstore.NewMemoryTier()
	store := credstore.NewStore(primary, backup, "test-secret", nil)

	// Backup left stale by a previous session, primary carries the fresh one.
	stale := credstore.NewStore(credstore.NewMemoryTier(), backup, "test-secret", nil)
	stale.Save(ctx, "sid", "old-token")
	store.Save(ctx, "sid", "fresh-token")

	token, err := store.Read(ctx, "sid")
	require.NoError(t, err)
	require.Equal(t, "fresh-token", token)
}

func TestClearRemovesBothTiers(t *testing.T) {
	ctx := context.Background()
	store, primary, backup := newStore(t)

	store.Save(ctx, "sid", "token-1")
	store.Clear(ctx, "sid")
	require.Equal(t, 0, primary.Len())
	require.Equal(t, 0, backup.Len())

	_, err := store.Read(ctx, "sid")
	require.ErrorIs(t, err, credstore.ErrNoToken)
}

func TestUnreadableRecordIsNoToken(t *testing.T) {
	ctx := context.Background()
	store, primary, backup := newStore(t)

	require.NoError(t, primary.Write(ctx, "sid", "not-a-sealed-value"))
	require.NoError(t, backup.Write(ctx, "sid", "not-a-sealed-value"))

	_, err := store.Read(ctx, "sid")
	require.ErrorIs(t, err, credstore.ErrNoToken)
}

func TestRedisTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tier := credstore.NewRedisTier(client, time.Hour)

	_, err := tier.Read(ctx, "sid")
	require.ErrorIs(t, err, credstore.ErrNoToken)

	require.NoError(t, tier.Write(ctx, "sid", "sealed-value"))
	sealed, err := tier.Read(ctx, "sid")
	require.NoError(t, err)
	require.Equal(t, "sealed-value", sealed)

	require.NoError(t, tier.Delete(ctx, "sid"))
	_, err = tier.Read(ctx, "sid")
	require.ErrorIs(t, err, credstore.ErrNoToken)
}

func TestRedisTierEvictionSurfacesAsNoToken(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tier := credstore.NewRedisTier(client, time.Minute)

	require.NoError(t, tier.Write(ctx, "sid", "sealed-value"))
	mr.FastForward(2 * time.Minute)

	_, err := tier.Read(ctx, "sid")
	require.True(t, errors.Is(err, credstore.ErrNoToken))
}
