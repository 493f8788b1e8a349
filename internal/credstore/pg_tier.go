package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGTier is the backup credential tier. Rows outlive Redis evictions and are
// purged by the maintenance worker once expired.
type PGTier struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPGTier constructs a PGTier with the given row lifetime.
func NewPGTier(pool *pgxpool.Pool, ttl time.Duration) *PGTier {
	return &PGTier{pool: pool, ttl: ttl}
}

// Write upserts the sealed token, refreshing the expiry on every save.
func (t *PGTier) Write(ctx context.Context, sessionID, sealed string) error {
	const query = `
		INSERT INTO gateway_credentials (session_id, token, created_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (session_id)
		DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at`
	if _, err := t.pool.Exec(ctx, query, sessionID, sealed, time.Now().UTC().Add(t.ttl)); err != nil {
		return fmt.Errorf("credstore/pg: upsert: %w", err)
	}
	return nil
}

// Read fetches a live sealed token, returning ErrNoToken when the row is
// missing or already expired.
func (t *PGTier) Read(ctx context.Context, sessionID string) (string, error) {
	const query = `SELECT token FROM gateway_credentials WHERE session_id = $1 AND expires_at > now()`
	var sealed string
	if err := t.pool.QueryRow(ctx, query, sessionID).Scan(&sealed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("credstore/pg: select: %w", err)
	}
	return sealed, nil
}

// Delete removes the session row.
func (t *PGTier) Delete(ctx context.Context, sessionID string) error {
	if _, err := t.pool.Exec(ctx, `DELETE FROM gateway_credentials WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("credstore/pg: delete: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows past their expiry and reports how many went.
func (t *PGTier) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := t.pool.Exec(ctx, `DELETE FROM gateway_credentials WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("credstore/pg: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Tier = (*PGTier)(nil)
