package scope_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitelink-erp/sitelink/internal/rbac"
	"github.com/sitelink-erp/sitelink/internal/scope"
)

func TestFetchReturnsDataForCurrentScope(t *testing.T) {
	f := scope.NewFetcher()
	q := scope.ScopedQuery{EffectiveUserID: "u-1"}

	data, err := f.Fetch(context.Background(), "sid", rbac.ModuleBOQ, q,
		func() string { return "u-1" },
		func(context.Context) (json.RawMessage, error) {
			return json.RawMessage(`[{"id":"row-1"}]`), nil
		})
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"row-1"}]`, string(data))
}

// A response that lands after the impersonation target moved on is dropped.
func TestFetchDiscardsStaleResponse(t *testing.T) {
	f := scope.NewFetcher()
	q := scope.ScopedQuery{EffectiveUserID: "u-old"}

	var current atomic.Value
	current.Store("u-old")
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var fetchErr error
	go func() {
		defer wg.Done()
		_, fetchErr = f.Fetch(context.Background(), "sid", rbac.ModuleInventory, q,
			func() string { return current.Load().(string) },
			func(context.Context) (json.RawMessage, error) {
				<-release
				return json.RawMessage(`["stale rows"]`), nil
			})
	}()

	// Target switches while the fetch is in flight.
	current.Store("u-new")
	close(release)
	wg.Wait()

	require.ErrorIs(t, fetchErr, scope.ErrStale)
}

func TestFetchCollapsesConcurrentDuplicates(t *testing.T) {
	f := scope.NewFetcher()
	q := scope.ScopedQuery{EffectiveUserID: "u-1"}

	var calls atomic.Int32
	var entered atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (json.RawMessage, error) {
		calls.Add(1)
		<-release
		return json.RawMessage(`[]`), nil
	}
	currentID := func() string { return "u-1" }

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entered.Add(1)
			_, err := f.Fetch(context.Background(), "sid", rbac.ModuleClients, q, currentID, fn)
			require.NoError(t, err)
		}()
	}
	// Let every goroutine join the in-flight call before it completes.
	require.Eventually(t, func() bool { return entered.Load() == 4 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	f := scope.NewFetcher()
	q := scope.ScopedQuery{EffectiveUserID: "u-1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, "sid", rbac.ModuleInvoices, q,
		func() string { return "u-1" },
		func(context.Context) (json.RawMessage, error) {
			select {} // never returns; the caller must not block
		})
	require.ErrorIs(t, err, context.Canceled)
}
