// Package storage keeps small binary blobs, such as avatars, as files under a
// single root directory.
package storage

import (
	"fmt"
	"os"
)

type Storage struct {
	rootAbs string
}

func New(root string) (*Storage, error) {
	rootAbs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(rootAbs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &Storage{rootAbs: rootAbs}, nil
}

func (s *Storage) RootAbs() string {
	return s.rootAbs
}

func (s *Storage) OpenForRead(name string) (*os.File, error) {
	resolved, err := blobPath(s.rootAbs, name)
	if err != nil {
		return nil, err
	}

	return os.Open(resolved)
}

// WriteAtomic replaces name with data. Readers see either the old or the new
// content, never a partial file.
func (s *Storage) WriteAtomic(name string, data []byte) error {
	resolved, err := blobPath(s.rootAbs, name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.rootAbs, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %q: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return fmt.Errorf("rename into %q: %w", name, err)
	}

	return nil
}

// Remove deletes name. A missing file is not an error.
func (s *Storage) Remove(name string) error {
	resolved, err := blobPath(s.rootAbs, name)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", name, err)
	}

	return nil
}
