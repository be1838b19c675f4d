// Package service implements the hybrid collection orchestrator: cache
// lookup, registry attempt, scrape fallback/enrichment, merge, classify,
// cache write-back, with bounded batch concurrency
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"processo/internal/core/classify"
	"processo/internal/platform/logger"
	"processo/internal/services/collect/domain"
)

// Options tunes batch behavior
type Options struct {
	// Workers is the pool width, clamped to [1, 5]
	Workers int
	// QueryTimeout bounds one full query pipeline including all retries
	QueryTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 2
	}
	if o.Workers > 5 {
		o.Workers = 5
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 2 * time.Minute
	}
	return o
}

// Orchestrator coordinates the two sources behind the cache. All
// collaborators are injected; it holds no ambient state
type Orchestrator struct {
	registry domain.RegistryPort
	scraper  domain.ScraperPort
	cache    domain.CachePort
	cls      *classify.Classifier
	opts     Options
	log      logger.Logger
	now      func() time.Time
}

// New builds an orchestrator over the given collaborators
func New(reg domain.RegistryPort, scr domain.ScraperPort, cache domain.CachePort, cls *classify.Classifier, opts Options) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		scraper:  scr,
		cache:    cache,
		cls:      cls,
		opts:     opts.withDefaults(),
		log:      *logger.Named("collect"),
		now:      time.Now,
	}
}

// Collect runs the batch and returns exactly one outcome per input query,
// in input order. A failing query never aborts the batch; cancellation via
// ctx stops dispatching and lets in-flight workers close their sessions
func (o *Orchestrator) Collect(ctx context.Context, queries []domain.ProcessQuery) []domain.CollectionOutcome {
	batchID := uuid.New().String()
	start := o.now()

	outs := make([]domain.CollectionOutcome, len(queries))
	jobs := make(chan int)

	workers := o.opts.Workers
	if workers > len(queries) && len(queries) > 0 {
		workers = len(queries)
	}

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			w := &worker{o: o}
			defer w.close()
			for i := range jobs {
				q := queries[i]
				qctx := logger.WithCollection(gctx, batchID, q.Label())
				outs[i] = o.collectSafe(qctx, w, q)
			}
			return nil
		})
	}

dispatch:
	for i := range queries {
		select {
		case jobs <- i:
		case <-gctx.Done():
			break dispatch
		}
	}
	close(jobs)
	_ = g.Wait()

	// queries never dispatched (cancellation) still get an outcome
	for i := range outs {
		if outs[i].Status == "" {
			outs[i] = errOutcome(queries[i], ctx.Err())
		}
	}

	sum := domain.Summarize(batchID, outs, o.now().Sub(start))
	o.log.Info().
		Str("batch_id", sum.BatchID).
		Int("total", sum.Total).
		Int("found", sum.Found).
		Int("not_found", sum.NotFound).
		Int("errors", sum.Errors).
		Dur("elapsed", sum.Elapsed).
		Msg("batch collection finished")
	return outs
}

// CacheStats reports the cache's effectiveness counters
func (o *Orchestrator) CacheStats() domain.CacheStats { return o.cache.Stats() }

// Invalidate drops cache entries. Empty params drops the whole query type;
// empty queryType and params drops everything
func (o *Orchestrator) Invalidate(ctx context.Context, queryType, params string) error {
	return o.cache.Invalidate(ctx, queryType, params)
}

// worker lazily opens one scraper session and reuses it across its queries.
// Sessions are never shared between workers
type worker struct {
	o    *Orchestrator
	sess domain.ScrapeSession
}

func (w *worker) session(ctx context.Context) (domain.ScrapeSession, error) {
	if w.sess != nil {
		return w.sess, nil
	}
	s, err := w.o.scraper.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	w.sess = s
	return s, nil
}

// dropSession closes and forgets the session so the next query gets a
// fresh browser context after a hard failure
func (w *worker) dropSession() {
	if w.sess != nil {
		_ = w.sess.Close()
		w.sess = nil
	}
}

func (w *worker) close() {
	if w.sess != nil {
		_ = w.sess.Close()
	}
}
