// Package filestore keeps the identity snapshot in a pretty-printed JSON file.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pscheid92/chatrelay/internal/domain"
)

type IdentityStore struct {
	path string
}

var _ domain.IdentitySnapshotStore = (*IdentityStore)(nil)

func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

func (s *IdentityStore) Path() string { return s.path }

func (s *IdentityStore) LoadSnapshot(_ context.Context) (domain.IdentitySnapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read identity file %s: %w", s.path, err)
	}

	var snapshot domain.IdentitySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrSnapshotCorrupt, s.path, err)
	}
	if snapshot == nil {
		// a literal "null" document
		return nil, fmt.Errorf("%w: %s does not hold a JSON object", domain.ErrSnapshotCorrupt, s.path)
	}
	return snapshot, nil
}

// SaveSnapshot overwrites the file with the full snapshot. The data is written
// to a temporary file in the same directory and renamed into place, so readers
// never see a half-written document.
func (s *IdentityStore) SaveSnapshot(ctx context.Context, snapshot domain.IdentitySnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(snapshot)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp identity file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close identity file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace identity file %s: %w", s.path, err)
	}
	return nil
}

// Ping reports whether the directory holding the snapshot is reachable.
func (s *IdentityStore) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("identity directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("identity directory %s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

func encode(snapshot domain.IdentitySnapshot) ([]byte, error) {
	if snapshot == nil {
		snapshot = domain.IdentitySnapshot{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, fmt.Errorf("marshal identity snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
