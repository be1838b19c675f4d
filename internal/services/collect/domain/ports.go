package domain

import (
	"context"
	"time"
)

// RegistryPort queries the structured public registry.
// ByNumber returns a coded not-found error when the registry has no match;
// ByParty returns records sorted by filing date descending
type RegistryPort interface {
	ByNumber(ctx context.Context, number string) (*ProcessRecord, error)
	ByParty(ctx context.Context, name string, maxResults int) ([]ProcessRecord, error)
}

// ScraperPort opens browser-backed portal sessions.
// Sessions are single-navigation-context and must never be shared between
// workers; each worker owns exactly one
type ScraperPort interface {
	OpenSession(ctx context.Context) (ScrapeSession, error)
}

// ScrapeSession is a scoped resource over one browser session.
// Close must run on every exit path
type ScrapeSession interface {
	FetchByNumber(ctx context.Context, number string) (*ProcessRecord, error)
	SearchByParty(ctx context.Context, name string, maxResults int) ([]ProcessRecord, error)
	Close() error
}

// CacheStats reports cache effectiveness counters
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Expired int64   `json:"expired"`
	HitRate float64 `json:"hit_rate"`
}

// CachePort is the two-tier TTL cache contract. Payloads are opaque bytes;
// sourceTag records how the payload was produced. A zero ttl applies the
// store's per-query-type default
type CachePort interface {
	Get(ctx context.Context, queryType, params string) (payload []byte, sourceTag string, ok bool)
	Set(ctx context.Context, queryType, params string, payload []byte, sourceTag string, ttl time.Duration) error
	Invalidate(ctx context.Context, queryType, params string) error
	Stats() CacheStats
}

// DiagnosticsPort receives failure snapshots (raw HTML, screenshots) from
// the scraper. Implementations live outside the core
type DiagnosticsPort interface {
	CaptureFailure(ctx context.Context, label string, html []byte, screenshot []byte)
}
