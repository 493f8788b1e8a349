package scope

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/sync/singleflight"
)

// ErrStale marks a fetch whose scope tag no longer matched the current
// impersonation target by the time the response arrived. The response is
// discarded so a late reply for a previous target can never overwrite
// newer, correctly scoped data.
var ErrStale = errors.New("scope: stale fetch discarded")

// FetchFunc performs the actual upstream call for one scope.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Fetcher tags every scoped fetch with the effective user id it was issued
// for and collapses concurrent duplicates of the same scope.
type Fetcher struct {
	group singleflight.Group
}

// NewFetcher constructs a Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Fetch runs fn for the scope in q. currentID re-reads the session's
// effective user id; when it has moved on while fn was in flight the result
// is dropped with ErrStale.
func (f *Fetcher) Fetch(ctx context.Context, sessionID, module string, q ScopedQuery, currentID func() string, fn FetchFunc) (json.RawMessage, error) {
	key := sessionID + "|" + module + "|" + q.EffectiveUserID
	resultChan := f.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		if currentID != nil && currentID() != q.EffectiveUserID {
			return nil, ErrStale
		}
		data, _ := res.Val.(json.RawMessage)
		return data, nil
	}
}
