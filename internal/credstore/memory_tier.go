package credstore

import (
	"context"
	"sync"
)

// MemoryTier is an in-process Tier for tests and local development.
type MemoryTier struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryTier constructs an empty MemoryTier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{m: make(map[string]string)}
}

// Write stores the sealed token.
func (t *MemoryTier) Write(_ context.Context, sessionID, sealed string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[sessionID] = sealed
	return nil
}

// Read fetches the sealed token, returning ErrNoToken on a miss.
func (t *MemoryTier) Read(_ context.Context, sessionID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sealed, ok := t.m[sessionID]
	if !ok {
		return "", ErrNoToken
	}
	return sealed, nil
}

// Delete removes the session entry.
func (t *MemoryTier) Delete(_ context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, sessionID)
	return nil
}

// Len reports how many sessions hold a token.
func (t *MemoryTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

var _ Tier = (*MemoryTier)(nil)
