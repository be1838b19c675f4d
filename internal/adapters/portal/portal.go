// Package portal drives a headless browser against the court's public web
// portal. It is the fallback and enrichment source behind the registry:
// slower, fragile, but the only way to reach full movement histories,
// parties, and decision texts.
//
// Navigation runs through chromedp; every captured page is parsed with
// goquery in pure functions (parse_*.go) so extraction logic stays testable
// without a browser
package portal

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"processo/internal/core/classify"
	"processo/internal/platform/logger"
	"processo/internal/services/collect/domain"
)

// EstimateMode picks the pagination behavior when the result-count phrase
// cannot be parsed from the first listing page
type EstimateMode string

const (
	// EstimateClamp walks up to MaxPages (bounded overcount)
	EstimateClamp EstimateMode = "clamp"
	// EstimateSingle stops after the first page (undercount)
	EstimateSingle EstimateMode = "single"
)

// Options configures the Scraper
type Options struct {
	BaseURL   string
	UserAgent string

	// Headless toggles the browser's headless mode (on for production)
	Headless bool

	// NavTimeout bounds every single browser operation
	NavTimeout time.Duration
	// WaitTimeout bounds optional element waits (expand controls etc.)
	WaitTimeout time.Duration

	// PaceMin/PaceMax bound the uniform random delay inserted between
	// network-bound operations. The delay is a correctness requirement:
	// without it the portal's anti-automation defenses trip
	PaceMin time.Duration
	PaceMax time.Duration

	// MaxPages caps listing traversal per party search
	MaxPages int
	// PageSize is the portal's fixed listing page size
	PageSize int
	// EstimateMode resolves ambiguous result-count estimates
	EstimateMode EstimateMode

	// MaxRetries and RetryBase govern operation-level retry of timeouts
	// and unexpected failures
	MaxRetries int
	RetryBase  time.Duration

	// MaxFullTexts caps per-movement full-text expansions per process
	MaxFullTexts int
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 5 * time.Second
	}
	if o.PaceMin <= 0 {
		o.PaceMin = 500 * time.Millisecond
	}
	if o.PaceMax <= o.PaceMin {
		o.PaceMax = o.PaceMin + 2*time.Second
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 10
	}
	if o.PageSize <= 0 {
		o.PageSize = 25
	}
	if o.EstimateMode == "" {
		o.EstimateMode = EstimateClamp
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.MaxFullTexts <= 0 {
		o.MaxFullTexts = 10
	}
	return o
}

// Scraper opens portal sessions. One Scraper is shared; each worker opens
// its own session so browser state (cookies, current page) never leaks
// across concurrent lookups
type Scraper struct {
	opts       Options
	classifier *classify.Classifier
	limiter    *rate.Limiter
	diag       domain.DiagnosticsPort
	log        logger.Logger

	// newDriver is a seam for tests; production builds chromedp drivers
	newDriver func(ctx context.Context, o Options) (driver, error)
}

// New builds a Scraper. limiter is shared across all sessions so the
// aggregate request rate stays bounded regardless of worker count; diag may
// be nil
func New(opts Options, cl *classify.Classifier, limiter *rate.Limiter, diag domain.DiagnosticsPort) *Scraper {
	return &Scraper{
		opts:       opts.withDefaults(),
		classifier: cl,
		limiter:    limiter,
		diag:       diag,
		log:        *logger.Named("portal"),
		newDriver:  newChromedpDriver,
	}
}

// OpenSession starts a browser session. The caller must Close it on every
// exit path
func (s *Scraper) OpenSession(ctx context.Context) (domain.ScrapeSession, error) {
	d, err := s.newDriver(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		scraper: s,
		drv:     d,
		state:   stateOpen,
		log:     s.log,
	}
	return sess, nil
}

// pace blocks for the shared limiter plus the bounded uniform random delay
func (s *Scraper) pace(ctx context.Context) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	span := s.opts.PaceMax - s.opts.PaceMin
	d := s.opts.PaceMin + time.Duration(rand.Int64N(int64(span)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
