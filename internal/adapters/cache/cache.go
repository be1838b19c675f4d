// Package cache implements the two-tier TTL cache in front of the external
// sources: an in-memory map consulted first and a durable secondary tier
// consulted on miss, with promotion back into memory.
// Entries are immutable once written; they only expire or get invalidated
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is one cached payload with its lifecycle metadata.
// Read-only after creation except for expiry
type Entry struct {
	Key       string        `json:"key"`
	QueryType string        `json:"query_type"`
	Payload   []byte        `json:"payload"`
	SourceTag string        `json:"source_tag"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at now
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}

// Key hashes query type plus normalized params into the stable cache key.
// Callers must normalize params first (digits-only numbers, folded names);
// equal logical queries then hash identically
func Key(queryType, params string) string {
	h := sha256.New()
	h.Write([]byte(queryType))
	h.Write([]byte{0})
	h.Write([]byte(params))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceTagNegative marks cached not-found / transient-error results, which
// take the short negative TTL so recovery is not masked for long
const SourceTagNegative = "negative"

// Options configures the Store and its TTL policy
type Options struct {
	// TTLByNumber applies to process-by-number entries (default 7 days)
	TTLByNumber time.Duration
	// TTLByParty applies to party-search entries (default 1 day)
	TTLByParty time.Duration
	// TTLDerived applies to derived statistics/report entries (default 6h)
	TTLDerived time.Duration
	// TTLNegative applies to not-found and transient-error entries (default 30m)
	TTLNegative time.Duration

	// MaxPersistBytes keeps larger payloads memory-only (default 1 MiB)
	MaxPersistBytes int
	// RecencyWindow bounds the startup load from the durable tier
	// (default 7 days); older durable entries are dropped at load time
	RecencyWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTLByNumber <= 0 {
		o.TTLByNumber = 7 * 24 * time.Hour
	}
	if o.TTLByParty <= 0 {
		o.TTLByParty = 24 * time.Hour
	}
	if o.TTLDerived <= 0 {
		o.TTLDerived = 6 * time.Hour
	}
	if o.TTLNegative <= 0 {
		o.TTLNegative = 30 * time.Minute
	}
	if o.MaxPersistBytes <= 0 {
		o.MaxPersistBytes = 1 << 20
	}
	if o.RecencyWindow <= 0 {
		o.RecencyWindow = 7 * 24 * time.Hour
	}
	return o
}

// ttlFor resolves the effective TTL for one write
func (o Options) ttlFor(queryType, sourceTag string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if sourceTag == SourceTagNegative {
		return o.TTLNegative
	}
	switch queryType {
	case "by_number":
		return o.TTLByNumber
	case "by_party":
		return o.TTLByParty
	default:
		return o.TTLDerived
	}
}
