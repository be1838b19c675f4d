// Package module wires the collection engine together from configuration:
// cache backend, registry client, portal scraper, diagnostics, classifier
// and orchestrator
package module

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"processo/internal/adapters/cache"
	"processo/internal/adapters/diag"
	"processo/internal/adapters/portal"
	"processo/internal/adapters/registry"
	"processo/internal/core/classify"
	"processo/internal/platform/config"
	"processo/internal/services/collect/domain"
	"processo/internal/services/collect/service"

	perr "processo/internal/platform/errors"
)

// Options is the flattened configuration surface of the whole engine
type Options struct {
	Workers      int           `validate:"gte=0,lte=5"`
	QueryTimeout time.Duration `validate:"gte=0"`

	RegistryBaseURL string `validate:"required,url"`
	RegistryAPIKey  string
	RegistryTimeout time.Duration

	PortalBaseURL  string `validate:"required,url"`
	PortalHeadless bool
	PortalMaxPages int    `validate:"gte=0,lte=100"`
	PortalEstimate string `validate:"omitempty,oneof=clamp single"`
	PaceMin        time.Duration
	PaceMax        time.Duration
	RatePerSecond  float64 `validate:"gte=0"`

	CacheBackend string `validate:"omitempty,oneof=file redis"`
	CacheDir     string
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	SnapshotDir string
}

// FromConfig reads the COLLECT_/REGISTRY_/PORTAL_/CACHE_ env groups
func FromConfig() Options {
	cc := config.New().Prefix("COLLECT_")
	rc := config.New().Prefix("REGISTRY_")
	pc := config.New().Prefix("PORTAL_")
	kc := config.New().Prefix("CACHE_")

	return Options{
		Workers:      cc.MayInt("WORKERS", 2),
		QueryTimeout: cc.MayDuration("QUERY_TIMEOUT", 2*time.Minute),

		RegistryBaseURL: rc.MustURL("BASE_URL").String(),
		RegistryAPIKey:  rc.MayString("API_KEY", ""),
		RegistryTimeout: rc.MayDuration("TIMEOUT", 30*time.Second),

		PortalBaseURL:  pc.MustURL("BASE_URL").String(),
		PortalHeadless: pc.MayBool("HEADLESS", true),
		PortalMaxPages: pc.MayInt("MAX_PAGES", 10),
		PortalEstimate: pc.MayEnum("ESTIMATE_MODE", "clamp", "clamp", "single"),
		PaceMin:        pc.MayDuration("PACE_MIN", 500*time.Millisecond),
		PaceMax:        pc.MayDuration("PACE_MAX", 2500*time.Millisecond),
		RatePerSecond:  float64(pc.MayInt("RATE_PER_MINUTE", 30)) / 60,

		CacheBackend: kc.MayEnum("BACKEND", "file", "file", "redis"),
		CacheDir:     kc.MayString("DIR", ".processo-cache"),
		RedisAddr:    kc.MayString("REDIS_ADDR", "localhost:6379"),
		RedisPass:    kc.MayString("REDIS_PASSWORD", ""),
		RedisDB:      kc.MayInt("REDIS_DB", 0),

		SnapshotDir: cc.MayString("SNAPSHOT_DIR", ".processo-snapshots"),
	}
}

// Module owns the wired engine for one process lifetime
type Module struct {
	Orchestrator *service.Orchestrator

	store   *cache.Store
	durable cache.Durable
}

var validate = validator.New()

// New validates options and builds the full collaborator graph
func New(ctx context.Context, o Options) (*Module, error) {
	if err := validate.Struct(o); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "collect module options")
	}

	pack, err := classify.Load()
	if err != nil {
		return nil, err
	}
	cls := classify.New(pack)

	durable, err := durableTier(ctx, o)
	if err != nil {
		return nil, err
	}
	store, err := cache.New(ctx, cache.Options{}, durable)
	if err != nil {
		return nil, err
	}

	diagnostics, err := diag.NewFileCollector(o.SnapshotDir)
	if err != nil {
		return nil, err
	}

	reg := registry.NewClient(registry.Options{
		BaseURL: o.RegistryBaseURL,
		APIKey:  o.RegistryAPIKey,
		Timeout: o.RegistryTimeout,
	})

	rps := o.RatePerSecond
	if rps <= 0 {
		rps = 0.5
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	scraper := portal.New(portal.Options{
		BaseURL:      o.PortalBaseURL,
		Headless:     o.PortalHeadless,
		MaxPages:     o.PortalMaxPages,
		EstimateMode: portal.EstimateMode(o.PortalEstimate),
		PaceMin:      o.PaceMin,
		PaceMax:      o.PaceMax,
	}, cls, limiter, diagnostics)

	orch := service.New(reg, scraper, store, cls, service.Options{
		Workers:      o.Workers,
		QueryTimeout: o.QueryTimeout,
	})

	return &Module{Orchestrator: orch, store: store, durable: durable}, nil
}

// Close releases backend connections (the redis tier holds one; the file
// tier does not)
func (m *Module) Close() error {
	if c, ok := m.durable.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func durableTier(ctx context.Context, o Options) (cache.Durable, error) {
	if o.CacheBackend == "redis" {
		return cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     o.RedisAddr,
			Password: o.RedisPass,
			DB:       o.RedisDB,
		})
	}
	return cache.NewFileStore(o.CacheDir)
}

// Collect forwards to the orchestrator
func (m *Module) Collect(ctx context.Context, queries []domain.ProcessQuery) []domain.CollectionOutcome {
	return m.Orchestrator.Collect(ctx, queries)
}

// CacheStats forwards to the orchestrator
func (m *Module) CacheStats() domain.CacheStats { return m.Orchestrator.CacheStats() }

// Invalidate forwards to the orchestrator
func (m *Module) Invalidate(ctx context.Context, queryType, params string) error {
	return m.Orchestrator.Invalidate(ctx, queryType, params)
}
