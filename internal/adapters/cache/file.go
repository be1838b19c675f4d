package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	perr "processo/internal/platform/errors"
)

// FileStore is the default durable tier: one JSON blob per key under dir.
// Writes are atomic (tmp then rename) so a crash never leaves a torn entry
type FileStore struct {
	dir string
}

// NewFileStore builds a FileStore, creating dir when missing
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, perr.InvalidArgf("cache: file store dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "cache: create dir")
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load reads one entry or returns a coded not-found error
func (f *FileStore) Load(_ context.Context, key string) (*Entry, error) {
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.NotFoundf("cache: no entry for %s", key)
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// a torn or hand-edited blob is treated as absent and reaped
		_ = os.Remove(f.path(key))
		return nil, perr.NotFoundf("cache: unreadable entry for %s", key)
	}
	return &e, nil
}

// Store persists the entry atomically
func (f *FileStore) Store(_ context.Context, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tmp := f.path(e.Key) + ".part"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path(e.Key)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes one entry; missing files are fine
func (f *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteMatching removes every entry of the given query type, or every
// entry when queryType is empty. Matching requires reading each blob since
// keys are opaque hashes
func (f *FileStore) DeleteMatching(ctx context.Context, queryType string) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		name := de.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		full := filepath.Join(f.dir, name)
		if queryType == "" {
			_ = os.Remove(full)
			continue
		}
		e, err := f.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if e.QueryType == queryType {
			_ = os.Remove(full)
		}
	}
	return nil
}

// LoadRecent returns entries created within the window and reaps everything
// older or already expired, which is the only durable-tier eviction
func (f *FileStore) LoadRecent(ctx context.Context, window time.Duration) ([]*Entry, error) {
	dirents, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-window)
	var out []*Entry
	for _, de := range dirents {
		name := de.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		e, err := f.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if e.CreatedAt.Before(cutoff) || e.Expired(time.Now()) {
			_ = os.Remove(filepath.Join(f.dir, name))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
