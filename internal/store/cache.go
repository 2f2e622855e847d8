package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetScanCache returns the cached identification payload for a content
// hash, or ok=false on a miss. Payloads are opaque JSON owned by the
// identify package.
func (s *Store) GetScanCache(ctx context.Context, contentHash string) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM scan_cache WHERE content_hash = ?", contentHash,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get scan cache: %w", err)
	}
	return payload, true, nil
}

// PutScanCache stores an identification payload by content hash. Entries
// are never evicted; a duplicate key takes the latest payload so an
// unreadable entry is repaired by the next identification and later stages
// can enrich what is stored under the same hash.
func (s *Store) PutScanCache(ctx context.Context, contentHash, payload string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_cache (content_hash, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at`,
		contentHash, payload, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put scan cache: %w", err)
	}
	return nil
}

// CacheSize reports the number of cached identifications.
func (s *Store) CacheSize(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM scan_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("cache size: %w", err)
	}
	return count, nil
}
