package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
)

// ErrNotFound is returned when a key does not exist.
// errors.Is(ErrNotFound, fs.ErrNotExist) holds.
var ErrNotFound = fmt.Errorf("store: key not found: %w", fs.ErrNotExist)

// GetBytes returns the raw value stored under key.
func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// SetBytes stores value under key, replacing any previous value.
func (s *Store) SetBytes(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	b, err := s.GetBytes(ctx, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) SetString(ctx context.Context, key, value string) error {
	return s.SetBytes(ctx, key, []byte(value))
}

// GetInt reads a value written by SetInt.
func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	str, err := s.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("get %q: not an integer: %w", key, err)
	}
	return n, nil
}

func (s *Store) SetInt(ctx context.Context, key string, value int64) error {
	return s.SetString(ctx, key, strconv.FormatInt(value, 10))
}

// GetBool reads a value written by SetBool.
func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	str, err := s.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("get %q: not a bool: %w", key, err)
	}
	return b, nil
}

func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	return s.SetString(ctx, key, strconv.FormatBool(value))
}

// Has reports whether key exists.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Flush checkpoints the write-ahead log into the main database file.
func (s *Store) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
