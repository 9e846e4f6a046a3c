package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadBlob returns the blob stored under key.
func (s *Store) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read blob %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", key, err)
	}
	return data, nil
}

// WriteBlob replaces the blob stored under key.
func (s *Store) WriteBlob(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, key, data)
	if err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	return nil
}

// DeleteBlob removes the blob stored under key. A missing key yields
// ErrNotFound.
func (s *Store) DeleteBlob(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("delete blob %q: %w", key, ErrNotFound)
	}
	return nil
}
