package cache

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"processo/internal/services/collect/domain"

	perr "processo/internal/platform/errors"
	kit "processo/internal/platform/testkit"
)

// memDurable is an in-memory Durable used to observe tier interaction
type memDurable struct {
	mu      sync.Mutex
	entries map[string]*Entry
	stores  int
}

func newMemDurable() *memDurable { return &memDurable{entries: map[string]*Entry{}} }

func (m *memDurable) Load(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e, nil
	}
	return nil, perr.NotFoundf("no entry for %s", key)
}

func (m *memDurable) Store(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key] = e
	m.stores++
	return nil
}

func (m *memDurable) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memDurable) DeleteMatching(_ context.Context, queryType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if queryType == "" || e.QueryType == queryType {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *memDurable) LoadRecent(_ context.Context, window time.Duration) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Entry
	cutoff := time.Now().Add(-window)
	for _, e := range m.entries {
		if e.CreatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestStore(t *testing.T, durable Durable) (*Store, *time.Time) {
	t.Helper()
	s, err := New(context.Background(), Options{}, durable)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kit.Swap(t, &s.now, func() time.Time { return clock })
	return s, &clock
}

func TestKey_NormalizedQueriesAgree(t *testing.T) {
	a := domain.ByNumber("1234567-89.2024.8.26.0100")
	b := domain.ByNumber("12345678920248260100")
	if Key(string(a.Type), a.CacheParams()) != Key(string(b.Type), b.CacheParams()) {
		t.Fatalf("formatted and digit queries keyed differently")
	}

	p := domain.ByParty("José  da Silva", 10)
	q := domain.ByParty("jose da silva", 10)
	if Key(string(p.Type), p.CacheParams()) != Key(string(q.Type), q.CacheParams()) {
		t.Fatalf("folded-equal party queries keyed differently")
	}

	if Key("by_number", "x") == Key("by_party", "x") {
		t.Fatalf("query type must participate in the key")
	}
}

func TestStore_RoundTripAndTTLExpiry(t *testing.T) {
	s, clock := newTestStore(t, nil)
	ctx := context.Background()

	payload := []byte(`[{"number":"x"}]`)
	if err := s.Set(ctx, "by_number", "12345678920248260100", payload, "registry", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, tag, ok := s.Get(ctx, "by_number", "12345678920248260100")
	if !ok || tag != "registry" || !bytes.Equal(got, payload) {
		t.Fatalf("get = %q %q %v", got, tag, ok)
	}

	// by_number default TTL is 7 days
	*clock = clock.Add(7*24*time.Hour - time.Minute)
	if _, _, ok := s.Get(ctx, "by_number", "12345678920248260100"); !ok {
		t.Fatalf("entry expired before its TTL")
	}
	*clock = clock.Add(2 * time.Minute)
	if _, _, ok := s.Get(ctx, "by_number", "12345678920248260100"); ok {
		t.Fatalf("entry survived its TTL")
	}
}

func TestStore_NegativeEntriesTakeShortTTL(t *testing.T) {
	s, clock := newTestStore(t, nil)
	ctx := context.Background()

	if err := s.Set(ctx, "by_number", "n", []byte("null"), SourceTagNegative, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, tag, ok := s.Get(ctx, "by_number", "n"); !ok || tag != SourceTagNegative {
		t.Fatalf("expected negative hit, got tag=%q ok=%v", tag, ok)
	}

	*clock = clock.Add(31 * time.Minute)
	if _, _, ok := s.Get(ctx, "by_number", "n"); ok {
		t.Fatalf("negative entry outlived the 30m negative TTL")
	}
}

func TestStore_PromotionFromDurable(t *testing.T) {
	d := newMemDurable()
	s, _ := newTestStore(t, d)
	ctx := context.Background()

	if err := s.Set(ctx, "by_party", "maria", []byte("v"), "scrape", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	// simulate a fresh process: memory empty, durable still holding the entry
	s.mu.Lock()
	s.mem = map[string]*Entry{}
	s.mu.Unlock()

	if _, tag, ok := s.Get(ctx, "by_party", "maria"); !ok || tag != "scrape" {
		t.Fatalf("durable fallback failed: tag=%q ok=%v", tag, ok)
	}
	// promoted entry now serves from memory
	s.mu.RLock()
	promoted := len(s.mem)
	s.mu.RUnlock()
	if promoted != 1 {
		t.Fatalf("expected promotion into memory, mem holds %d", promoted)
	}
}

func TestStore_OversizePayloadStaysMemoryOnly(t *testing.T) {
	d := newMemDurable()
	s, err := New(context.Background(), Options{MaxPersistBytes: 8}, d)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := s.Set(ctx, "by_number", "big", []byte("0123456789abcdef"), "registry", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if d.stores != 0 {
		t.Fatalf("oversize payload reached the durable tier")
	}
	if _, _, ok := s.Get(ctx, "by_number", "big"); !ok {
		t.Fatalf("oversize payload must still serve from memory")
	}
}

func TestStore_InvalidateForms(t *testing.T) {
	d := newMemDurable()
	s, _ := newTestStore(t, d)
	ctx := context.Background()

	seed := func() {
		_ = s.Set(ctx, "by_number", "a", []byte("1"), "registry", 0)
		_ = s.Set(ctx, "by_number", "b", []byte("2"), "registry", 0)
		_ = s.Set(ctx, "by_party", "c", []byte("3"), "registry", 0)
	}

	seed()
	if err := s.Invalidate(ctx, "by_number", "a"); err != nil {
		t.Fatalf("exact invalidate: %v", err)
	}
	if _, _, ok := s.Get(ctx, "by_number", "a"); ok {
		t.Fatalf("exact invalidate left the entry")
	}
	if _, _, ok := s.Get(ctx, "by_number", "b"); !ok {
		t.Fatalf("exact invalidate dropped an unrelated entry")
	}

	seed()
	if err := s.Invalidate(ctx, "by_number", ""); err != nil {
		t.Fatalf("by-type invalidate: %v", err)
	}
	if _, _, ok := s.Get(ctx, "by_number", "b"); ok {
		t.Fatalf("by-type invalidate left a by_number entry")
	}
	if _, _, ok := s.Get(ctx, "by_party", "c"); !ok {
		t.Fatalf("by-type invalidate dropped a by_party entry")
	}

	seed()
	if err := s.Invalidate(ctx, "", ""); err != nil {
		t.Fatalf("global invalidate: %v", err)
	}
	if _, _, ok := s.Get(ctx, "by_party", "c"); ok {
		t.Fatalf("global invalidate left an entry")
	}
	if len(d.entries) != 0 {
		t.Fatalf("global invalidate left %d durable entries", len(d.entries))
	}
}

func TestStore_Stats(t *testing.T) {
	s, clock := newTestStore(t, nil)
	ctx := context.Background()

	_ = s.Set(ctx, "by_number", "a", []byte("1"), "registry", 0)
	s.Get(ctx, "by_number", "a")   // hit
	s.Get(ctx, "by_number", "zzz") // miss
	*clock = clock.Add(8 * 24 * time.Hour)
	s.Get(ctx, "by_number", "a") // expired, counts as miss too

	st := s.Stats()
	if st.Hits != 1 || st.Misses != 2 || st.Expired != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.HitRate <= 0.33 || st.HitRate >= 0.34 {
		t.Fatalf("hit rate = %f", st.HitRate)
	}
}

func TestNew_LoadsRecentDurableEntries(t *testing.T) {
	d := newMemDurable()
	fresh := &Entry{Key: "k1", QueryType: "by_number", Payload: []byte("1"), SourceTag: "registry", CreatedAt: time.Now(), TTL: time.Hour}
	stale := &Entry{Key: "k2", QueryType: "by_number", Payload: []byte("2"), SourceTag: "registry", CreatedAt: time.Now().Add(-30 * 24 * time.Hour), TTL: time.Hour}
	d.entries[fresh.Key] = fresh
	d.entries[stale.Key] = stale

	s, err := New(context.Background(), Options{}, d)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.mem["k1"]; !ok {
		t.Fatalf("recent durable entry not loaded")
	}
	if _, ok := s.mem["k2"]; ok {
		t.Fatalf("entry beyond the recency window loaded anyway")
	}
}
