package service

import (
	"context"
	"encoding/json"

	"processo/internal/platform/logger"
	"processo/internal/services/collect/domain"

	perr "processo/internal/platform/errors"
)

// negativeSourceTag marks cached not-found and transient-failure results;
// it must match the tag the cache store recognizes for the short negative
// TTL
const negativeSourceTag = "negative"

// cachedFailure is the negative-tag payload for a transient failure. A
// plain "null" payload under the same tag means not-found
type cachedFailure struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// collectSafe wraps one query pipeline with panic recovery so a single bad
// page or payload can never take the batch down
func (o *Orchestrator) collectSafe(ctx context.Context, w *worker, q domain.ProcessQuery) (out domain.CollectionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.C(ctx).Error().Interface("panic", r).Msg("query pipeline panicked")
			w.dropSession()
			out = errOutcome(q, perr.PanicErrf("collect %s: %v", q.Label(), r))
		}
	}()

	qctx, cancel := context.WithTimeout(ctx, o.opts.QueryTimeout)
	defer cancel()

	out = o.collectOne(qctx, w, q)

	// an exceeded overall bound surfaces as a typed timeout outcome
	if out.Status == domain.StatusError && qctx.Err() == context.DeadlineExceeded {
		out.Category = perr.ErrorCodeTimeout.String()
		if out.Message == "" {
			out.Message = "query exceeded its overall time bound"
		}
	}
	return out
}

func (o *Orchestrator) collectOne(ctx context.Context, w *worker, q domain.ProcessQuery) domain.CollectionOutcome {
	log := logger.C(ctx)

	if payload, tag, ok := o.cache.Get(ctx, string(q.Type), q.CacheParams()); ok {
		if tag == negativeSourceTag {
			var cf cachedFailure
			if jerr := json.Unmarshal(payload, &cf); jerr == nil && cf.Category != "" {
				log.Debug().Str("category", cf.Category).Msg("memoized failure hit")
				return domain.CollectionOutcome{
					Query:      q,
					Status:     domain.StatusError,
					Category:   cf.Category,
					Message:    cf.Message,
					CachedFrom: tag,
				}
			}
			log.Debug().Msg("negative cache hit")
			return domain.CollectionOutcome{
				Query:      q,
				Status:     domain.StatusNotFound,
				Category:   perr.ErrorCodeNotFound.String(),
				CachedFrom: tag,
			}
		}
		if recs, err := decodeRecords(payload); err == nil {
			log.Debug().Str("source", tag).Int("records", len(recs)).Msg("cache hit")
			return domain.CollectionOutcome{Query: q, Status: domain.StatusFound, Records: recs, CachedFrom: tag}
		}
		// undecodable entry: drop it and fall through to a live lookup
		log.Warn().Msg("dropping undecodable cache entry")
		_ = o.cache.Invalidate(ctx, string(q.Type), q.CacheParams())
	}

	var (
		recs []domain.ProcessRecord
		err  error
	)
	if q.Type == domain.QueryByNumber {
		recs, err = o.byNumber(ctx, w, q.Number)
	} else {
		recs, err = o.byParty(ctx, w, q.Party, q.MaxResults)
	}

	switch {
	case err == nil:
		for i := range recs {
			o.classifyRecord(&recs[i])
		}
		o.cacheRecords(ctx, q, recs)
		return domain.CollectionOutcome{Query: q, Status: domain.StatusFound, Records: recs}
	case perr.IsCode(err, perr.ErrorCodeNotFound), perr.IsCode(err, perr.ErrorCodeSealed):
		o.cacheNegative(ctx, q)
		return domain.CollectionOutcome{
			Query:    q,
			Status:   domain.StatusNotFound,
			Category: perr.CategoryOf(err),
			Message:  err.Error(),
		}
	default:
		log.Warn().Err(err).Msg("query failed")
		out := errOutcome(q, err)
		// transient failures are memoized under the short negative TTL so a
		// flapping source is not hammered by repeat queries
		if isTransient(out.Category) {
			o.cacheFailure(ctx, q, out)
		}
		return out
	}
}

// isTransient reports failure categories worth memoizing briefly
func isTransient(category string) bool {
	switch category {
	case perr.ErrorCodeTimeout.String(),
		perr.ErrorCodeNetworkFailure.String(),
		perr.ErrorCodeRateLimited.String():
		return true
	}
	return false
}

// byNumber runs registry-first with scrape enrichment, falling back fully
// to the scraper when the registry cannot serve
func (o *Orchestrator) byNumber(ctx context.Context, w *worker, number string) ([]domain.ProcessRecord, error) {
	log := logger.C(ctx)

	rec, regErr := o.registry.ByNumber(ctx, number)
	if regErr == nil {
		merged := o.enrich(ctx, w, rec)
		return []domain.ProcessRecord{*merged}, nil
	}
	if perr.IsCode(regErr, perr.ErrorCodeInvalidArgument) {
		return nil, regErr
	}
	log.Debug().Err(regErr).Msg("registry miss, falling back to scraper")

	sess, err := w.session(ctx)
	if err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeNetworkFailure, "open scrape session")
	}
	scraped, err := sess.FetchByNumber(ctx, number)
	if err != nil {
		if !isTerminal(err) {
			w.dropSession()
		}
		// a registry not-found beats an opaque scrape failure for clarity
		if perr.IsCode(regErr, perr.ErrorCodeNotFound) && !isTerminal(err) {
			return nil, regErr
		}
		return nil, err
	}
	scraped.Source = domain.SourceScrape
	return []domain.ProcessRecord{*scraped}, nil
}

// byParty runs the registry search, falling back to the portal's party
// search when the registry cannot serve. Party results are not individually
// scrape-enriched; callers wanting full texts re-query by number
func (o *Orchestrator) byParty(ctx context.Context, w *worker, name string, maxResults int) ([]domain.ProcessRecord, error) {
	log := logger.C(ctx)

	recs, regErr := o.registry.ByParty(ctx, name, maxResults)
	if regErr == nil && len(recs) > 0 {
		return recs, nil
	}
	if regErr == nil {
		regErr = perr.NotFoundf("no processes for party %q", name)
	}
	if perr.IsCode(regErr, perr.ErrorCodeInvalidArgument) {
		return nil, regErr
	}
	log.Debug().Err(regErr).Msg("registry party miss, falling back to scraper")

	sess, err := w.session(ctx)
	if err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeNetworkFailure, "open scrape session")
	}
	scraped, err := sess.SearchByParty(ctx, name, maxResults)
	if err != nil {
		if !isTerminal(err) {
			w.dropSession()
			if perr.IsCode(regErr, perr.ErrorCodeNotFound) {
				return nil, regErr
			}
		}
		return nil, err
	}
	for i := range scraped {
		scraped[i].Source = domain.SourceScrape
	}
	return scraped, nil
}

// enrich attempts a best-effort portal scrape for the registry record's
// number and merges additively. Enrichment failure is non-fatal: the
// registry-only record is returned unchanged
func (o *Orchestrator) enrich(ctx context.Context, w *worker, reg *domain.ProcessRecord) *domain.ProcessRecord {
	log := logger.C(ctx)

	sess, err := w.session(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("enrichment skipped, no scrape session")
		return reg
	}
	scraped, err := sess.FetchByNumber(ctx, reg.Number)
	if err != nil {
		if !isTerminal(err) {
			w.dropSession()
		}
		log.Debug().Err(err).Msg("enrichment scrape failed, keeping registry record")
		return reg
	}
	merged, changed := mergeRecords(reg, scraped)
	if changed {
		merged.Source = domain.SourceMerged
	}
	return merged
}

// isTerminal reports codes that identify a definitive page state rather
// than a broken session
func isTerminal(err error) bool {
	return perr.IsCode(err, perr.ErrorCodeNotFound) ||
		perr.IsCode(err, perr.ErrorCodeSealed) ||
		perr.IsCode(err, perr.ErrorCodeInvalidArgument)
}

func (o *Orchestrator) cacheRecords(ctx context.Context, q domain.ProcessQuery, recs []domain.ProcessRecord) {
	payload, err := json.Marshal(recs)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("cache encode failed")
		return
	}
	tag := string(domain.SourceRegistry)
	if len(recs) > 0 {
		tag = string(recs[0].Source)
	}
	if err := o.cache.Set(ctx, string(q.Type), q.CacheParams(), payload, tag, 0); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("cache write failed")
	}
}

func (o *Orchestrator) cacheNegative(ctx context.Context, q domain.ProcessQuery) {
	if err := o.cache.Set(ctx, string(q.Type), q.CacheParams(), []byte("null"), negativeSourceTag, 0); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("negative cache write failed")
	}
}

func (o *Orchestrator) cacheFailure(ctx context.Context, q domain.ProcessQuery, out domain.CollectionOutcome) {
	payload, err := json.Marshal(cachedFailure{Category: out.Category, Message: out.Message})
	if err != nil {
		return
	}
	if err := o.cache.Set(ctx, string(q.Type), q.CacheParams(), payload, negativeSourceTag, 0); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("failure cache write failed")
	}
}

func decodeRecords(payload []byte) ([]domain.ProcessRecord, error) {
	var recs []domain.ProcessRecord
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeMalformed, "decode cached records")
	}
	return recs, nil
}

func errOutcome(q domain.ProcessQuery, err error) domain.CollectionOutcome {
	if err == nil {
		err = perr.Internalf("query was not processed")
	}
	err = perr.Classify(err)
	return domain.CollectionOutcome{
		Query:    q,
		Status:   domain.StatusError,
		Category: perr.CategoryOf(err),
		Message:  err.Error(),
	}
}
