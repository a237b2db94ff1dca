// Package tokenstore persists the extension's single bearer token across
// process restarts.
//
// The store is one durable slot: the relay overwrites it on every successful
// sign-in, the extension reads it on startup and before each API call.
// Nothing here looks inside the token or prunes it — staleness is caught
// server-side at verification time, and a stale stored token simply produces
// an unauthenticated /me response until the user signs in again.
package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is a file-backed single-slot token holder.
type Store struct {
	path string
}

// New creates a Store rooted in dir, creating the directory if needed.
// The token lives in a 0600 file since it is a live credential.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: creating state dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, "token")}, nil
}

// Set overwrites the slot with token.
//
// The write goes to a temp file in the same directory followed by a rename.
// Rename is atomic on POSIX filesystems, which gives the slot its
// last-write-wins guarantee: two racing sign-in flows each land a complete
// token, never an interleaving of the two, and a crash mid-write leaves the
// previous token intact.
func (s *Store) Set(token string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "token-*")
	if err != nil {
		return fmt.Errorf("tokenstore: creating temp file: %w", err)
	}

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("tokenstore: writing token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("tokenstore: closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("tokenstore: setting permissions: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("tokenstore: replacing token slot: %w", err)
	}
	return nil
}

// Get returns the stored token, or "" with a nil error when the slot was
// never written. Only a genuine I/O failure produces an error.
func (s *Store) Get() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: reading token slot: %w", err)
	}
	return string(data), nil
}
