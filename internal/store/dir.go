package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Dir stores blobs as files named "<key>.bin" in a directory.
type Dir struct {
	root string
}

// OpenDir creates root if needed and returns a blob store over it.
func OpenDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Path returns the file used for key.
func (d *Dir) Path(key string) string {
	return filepath.Join(d.root, key+".bin")
}

func (d *Dir) checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

func (d *Dir) ReadBlob(_ context.Context, key string) ([]byte, error) {
	if err := d.checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read blob %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", key, err)
	}
	return data, nil
}

// WriteBlob writes through a temporary file and renames it into place so a
// crash never leaves a half-written queue behind.
func (d *Dir) WriteBlob(_ context.Context, key string, data []byte) error {
	if err := d.checkKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), d.Path(key)); err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	return nil
}

func (d *Dir) DeleteBlob(_ context.Context, key string) error {
	if err := d.checkKey(key); err != nil {
		return err
	}
	err := os.Remove(d.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}
