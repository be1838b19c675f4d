package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	perr "processo/internal/platform/errors"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	f, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return f
}

func TestFileStore_RoundTrip(t *testing.T) {
	f := newFileStore(t)
	ctx := context.Background()

	e := &Entry{
		Key:       Key("by_number", "12345678920248260100"),
		QueryType: "by_number",
		Payload:   []byte(`[{"number":"x"}]`),
		SourceTag: "registry",
		CreatedAt: time.Now().UTC(),
		TTL:       time.Hour,
	}
	if err := f.Store(ctx, e); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := f.Load(ctx, e.Key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.QueryType != e.QueryType || got.SourceTag != e.SourceTag || !bytes.Equal(got.Payload, e.Payload) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	f := newFileStore(t)
	_, err := f.Load(context.Background(), "nope")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected coded not-found, got %v", err)
	}
}

func TestFileStore_UnreadableBlobReaped(t *testing.T) {
	f := newFileStore(t)
	path := filepath.Join(f.dir, "bad.json")
	if err := os.WriteFile(path, []byte("{torn"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.Load(context.Background(), "bad"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not-found for torn blob, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("torn blob not reaped")
	}
}

func TestFileStore_DeleteMatching(t *testing.T) {
	f := newFileStore(t)
	ctx := context.Background()

	put := func(qt, params string) string {
		e := &Entry{Key: Key(qt, params), QueryType: qt, Payload: []byte("p"), CreatedAt: time.Now(), TTL: time.Hour}
		if err := f.Store(ctx, e); err != nil {
			t.Fatalf("store: %v", err)
		}
		return e.Key
	}
	kn := put("by_number", "a")
	kp := put("by_party", "b")

	if err := f.DeleteMatching(ctx, "by_number"); err != nil {
		t.Fatalf("delete matching: %v", err)
	}
	if _, err := f.Load(ctx, kn); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("by_number entry survived: %v", err)
	}
	if _, err := f.Load(ctx, kp); err != nil {
		t.Fatalf("by_party entry dropped: %v", err)
	}

	if err := f.DeleteMatching(ctx, ""); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if _, err := f.Load(ctx, kp); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("global delete left an entry: %v", err)
	}
}

func TestFileStore_LoadRecentReapsOldAndExpired(t *testing.T) {
	f := newFileStore(t)
	ctx := context.Background()

	fresh := &Entry{Key: "fresh", QueryType: "by_number", Payload: []byte("1"), CreatedAt: time.Now(), TTL: time.Hour}
	old := &Entry{Key: "old", QueryType: "by_number", Payload: []byte("2"), CreatedAt: time.Now().Add(-30 * 24 * time.Hour), TTL: 90 * 24 * time.Hour}
	expired := &Entry{Key: "expired", QueryType: "by_number", Payload: []byte("3"), CreatedAt: time.Now().Add(-2 * time.Hour), TTL: time.Hour}
	for _, e := range []*Entry{fresh, old, expired} {
		if err := f.Store(ctx, e); err != nil {
			t.Fatalf("store %s: %v", e.Key, err)
		}
	}

	out, err := f.LoadRecent(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	if len(out) != 1 || out[0].Key != "fresh" {
		t.Fatalf("load recent = %+v", out)
	}
	for _, key := range []string{"old", "expired"} {
		if _, err := os.Stat(filepath.Join(f.dir, key+".json")); !os.IsNotExist(err) {
			t.Fatalf("%s not reaped", key)
		}
	}
}
