package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	perr "processo/internal/platform/errors"
	"processo/internal/platform/logger"
	"processo/internal/services/collect/domain"
)

// Durable is the secondary tier contract. Implementations are KV blob
// stores with no compatibility guarantees beyond this interface
type Durable interface {
	// Load returns the entry or a coded not-found error
	Load(ctx context.Context, key string) (*Entry, error)
	// Store persists the entry, overwriting any previous one
	Store(ctx context.Context, e *Entry) error
	// Delete removes one entry; missing keys are not an error
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes every entry of the given query type;
	// empty queryType removes everything
	DeleteMatching(ctx context.Context, queryType string) error
	// LoadRecent returns entries created within the window, dropping (and
	// optionally reaping) anything older. May return nil for remote tiers
	LoadRecent(ctx context.Context, window time.Duration) ([]*Entry, error)
}

// Store is the two-tier cache. Safe for concurrent use; the memory tier has
// no eviction beyond TTL expiry, which is an accepted per-process tradeoff
type Store struct {
	mu   sync.RWMutex
	mem  map[string]*Entry
	sec  Durable
	opts Options
	log  logger.Logger
	now  func() time.Time

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64
}

// New builds a Store over an optional durable tier and performs the startup
// load of recent durable entries into memory
func New(ctx context.Context, opts Options, durable Durable) (*Store, error) {
	s := &Store{
		mem:  make(map[string]*Entry),
		sec:  durable,
		opts: opts.withDefaults(),
		log:  *logger.Named("cache"),
		now:  time.Now,
	}
	if durable != nil {
		entries, err := durable.LoadRecent(ctx, s.opts.RecencyWindow)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "cache: startup load")
		}
		n := s.now()
		for _, e := range entries {
			if e == nil || e.Expired(n) {
				continue
			}
			s.mem[e.Key] = e
		}
		s.log.Info().Int("loaded", len(s.mem)).Msg("durable tier loaded")
	}
	return s, nil
}

// Get returns the payload and source tag for a query, or ok=false on miss.
// Memory tier first; a valid durable entry is promoted back into memory
func (s *Store) Get(ctx context.Context, queryType, params string) ([]byte, string, bool) {
	key := Key(queryType, params)
	n := s.now()

	s.mu.RLock()
	e, ok := s.mem[key]
	s.mu.RUnlock()
	if ok {
		if e.Expired(n) {
			s.expired.Add(1)
			s.mu.Lock()
			delete(s.mem, key)
			s.mu.Unlock()
		} else {
			s.hits.Add(1)
			return e.Payload, e.SourceTag, true
		}
	}

	if s.sec != nil {
		de, err := s.sec.Load(ctx, key)
		if err == nil && de != nil {
			if de.Expired(n) {
				s.expired.Add(1)
				_ = s.sec.Delete(ctx, key)
			} else {
				s.mu.Lock()
				s.mem[key] = de
				s.mu.Unlock()
				s.hits.Add(1)
				return de.Payload, de.SourceTag, true
			}
		} else if err != nil && !perr.IsCode(err, perr.ErrorCodeNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("durable tier read failed")
		}
	}

	s.misses.Add(1)
	return nil, "", false
}

// Set writes a new immutable entry to both tiers. A zero ttl applies the
// per-query-type policy (negative results take the short negative TTL).
// Payloads above MaxPersistBytes stay memory-only to bound durable I/O.
// Writes are last-write-wins per key
func (s *Store) Set(ctx context.Context, queryType, params string, payload []byte, sourceTag string, ttl time.Duration) error {
	e := &Entry{
		Key:       Key(queryType, params),
		QueryType: queryType,
		Payload:   payload,
		SourceTag: sourceTag,
		CreatedAt: s.now(),
		TTL:       s.opts.ttlFor(queryType, sourceTag, ttl),
	}

	s.mu.Lock()
	s.mem[e.Key] = e
	s.mu.Unlock()

	if s.sec != nil && len(payload) <= s.opts.MaxPersistBytes {
		if err := s.sec.Store(ctx, e); err != nil {
			s.log.Warn().Err(err).Str("key", e.Key).Msg("durable tier write failed")
		}
	}
	return nil
}

// Invalidate removes matching entries from both tiers.
// Both set: exact key. Only queryType: all of that type. Neither: global
func (s *Store) Invalidate(ctx context.Context, queryType, params string) error {
	switch {
	case queryType != "" && params != "":
		key := Key(queryType, params)
		s.mu.Lock()
		delete(s.mem, key)
		s.mu.Unlock()
		if s.sec != nil {
			return s.sec.Delete(ctx, key)
		}
	case queryType != "":
		s.mu.Lock()
		for k, e := range s.mem {
			if e.QueryType == queryType {
				delete(s.mem, k)
			}
		}
		s.mu.Unlock()
		if s.sec != nil {
			return s.sec.DeleteMatching(ctx, queryType)
		}
	default:
		s.mu.Lock()
		s.mem = make(map[string]*Entry)
		s.mu.Unlock()
		if s.sec != nil {
			return s.sec.DeleteMatching(ctx, "")
		}
	}
	return nil
}

// Stats reports cache effectiveness counters
func (s *Store) Stats() domain.CacheStats {
	s.mu.RLock()
	entries := len(s.mem)
	s.mu.RUnlock()

	hits := s.hits.Load()
	misses := s.misses.Load()
	st := domain.CacheStats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		Expired: s.expired.Load(),
	}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st
}
