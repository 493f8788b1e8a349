// Package credstore persists upstream bearer tokens across two storage
// tiers: a fast primary tier that may be evicted by policies outside the
// application's control, and a durable backup tier that persists longer.
// Every consumer goes through the one Save/Read/Clear contract instead of
// duplicating fallback logic.
package credstore

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoToken indicates that neither tier holds a token for the session.
var ErrNoToken = errors.New("credstore: no token")

// Tier is a single storage location for a session's sealed token.
type Tier interface {
	Write(ctx context.Context, sessionID, sealed string) error
	// Read returns ErrNoToken when the tier holds nothing for the session.
	Read(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// Store mirrors tokens across the primary and backup tiers. Tokens are
// sealed before either tier sees them.
type Store struct {
	primary Tier
	backup  Tier
	box     *sealer
	logger  *slog.Logger
}

// NewStore constructs a Store sealing tokens with a key derived from secret.
func NewStore(primary, backup Tier, secret string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{primary: primary, backup: backup, box: newSealer(secret), logger: logger}
}

// Save writes the token to the primary tier and mirrors it to the backup
// tier. Storage is best effort: tier failures are logged, never surfaced.
func (s *Store) Save(ctx context.Context, sessionID, token string) {
	sealed, err := s.box.seal(token)
	if err != nil {
		s.logger.Error("credstore seal", slog.Any("error", err))
		return
	}
	if err := s.primary.Write(ctx, sessionID, sealed); err != nil {
		s.logger.Warn("credstore primary write", slog.Any("error", err))
	}
	if err := s.backup.Write(ctx, sessionID, sealed); err != nil {
		s.logger.Warn("credstore backup write", slog.Any("error", err))
	}
}

// Read returns the stored token, consulting the primary tier first so a
// fresher value is never shadowed by a stale backup copy. Returns ErrNoToken
// when both tiers come up empty.
func (s *Store) Read(ctx context.Context, sessionID string) (string, error) {
	sealed, err := s.primary.Read(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			s.logger.Warn("credstore primary read", slog.Any("error", err))
		}
		sealed, err = s.backup.Read(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrNoToken) {
				return "", ErrNoToken
			}
			return "", err
		}
	}
	token, err := s.box.open(sealed)
	if err != nil {
		// An unreadable record is as good as no record.
		s.logger.Warn("credstore unseal", slog.Any("error", err))
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes the token from both tiers unconditionally.
func (s *Store) Clear(ctx context.Context, sessionID string) {
	if err := s.primary.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("credstore primary delete", slog.Any("error", err))
	}
	if err := s.backup.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("credstore backup delete", slog.Any("error", err))
	}
}
