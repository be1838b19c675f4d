package portal

import (
	"context"
	"time"

	"processo/internal/core/cnj"
	perr "processo/internal/platform/errors"
	"processo/internal/platform/logger"
	"processo/internal/services/collect/domain"
)

// session states; transitions are linear per lookup and the session is
// reusable for the next lookup once a terminal state is reached
const (
	stateOpen      = "open"
	stateSearching = "searching"
	stateFound     = "found"
	stateNotFound  = "not_found"
	stateSealed    = "sealed"
	stateClosed    = "closed"
)

// Session is one scoped browser session. Not safe for concurrent use: the
// underlying browser tab is a single navigation context
type Session struct {
	scraper *Scraper
	drv     driver
	state   string
	log     logger.Logger
}

// Close tears the browser down. Safe to call more than once
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	return s.drv.Close()
}

// retry runs op up to MaxRetries times with exponential backoff.
// Not-found, sealed and malformed results are terminal and never retried:
// an unrecognized page structure will not fix itself on a replay. Malformed
// pages and exhausted retries are snapshotted for diagnostics
func (s *Session) retry(ctx context.Context, label string, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.scraper.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			back := s.scraper.opts.RetryBase << uint(attempt-1)
			s.log.Warn().Str("op", label).Int("attempt", attempt).Dur("retry_in", back).Err(err).
				Msg("portal operation retrying")
			t := time.NewTimer(back)
			select {
			case <-ctx.Done():
				t.Stop()
				return perr.Classify(ctx.Err())
			case <-t.C:
			}
		}
		err = op(ctx)
		if err == nil {
			return nil
		}
		err = perr.Classify(err)
		switch perr.CodeOf(err) {
		case perr.ErrorCodeNotFound, perr.ErrorCodeSealed, perr.ErrorCodeInvalidArgument:
			return err
		case perr.ErrorCodeMalformed:
			s.snapshot(ctx, label)
			return err
		}
		if ctx.Err() != nil {
			return perr.Classify(ctx.Err())
		}
	}
	s.snapshot(ctx, label)
	return err
}

// snapshot hands the current page and a screenshot to the diagnostics
// collaborator, best effort
func (s *Session) snapshot(ctx context.Context, label string) {
	if s.scraper.diag == nil {
		return
	}
	html, _ := s.drv.HTML(ctx)
	shot, _ := s.drv.Screenshot(ctx)
	s.scraper.diag.CaptureFailure(ctx, label, []byte(html), shot)
}

// FetchByNumber resolves one process through the lookup strategy chain and
// extracts its full record
func (s *Session) FetchByNumber(ctx context.Context, number string) (*domain.ProcessRecord, error) {
	n, err := cnj.Parse(number)
	if err != nil {
		return nil, err
	}
	s.state = stateSearching

	var rec *domain.ProcessRecord
	err = s.retry(ctx, "fetch_by_number", func(ctx context.Context) error {
		html, lerr := s.lookup(ctx, n)
		if lerr != nil {
			return lerr
		}
		r, xerr := s.extractRecord(ctx, html, n)
		if xerr != nil {
			return xerr
		}
		rec = r
		return nil
	})
	if err != nil {
		switch perr.CodeOf(err) {
		case perr.ErrorCodeNotFound:
			s.state = stateNotFound
		case perr.ErrorCodeSealed:
			s.state = stateSealed
		}
		return nil, err
	}
	s.state = stateFound
	return rec, nil
}

// lookup tries the three strategies in order, first success wins:
// direct URL from the number's structural segments, then the full search
// form, then the detail page by number as a last resort.
// Seal and no-information markers short-circuit as terminal
func (s *Session) lookup(ctx context.Context, n cnj.Number) (string, error) {
	urls := []struct {
		name string
		nav  func(context.Context) error
	}{
		{"direct_url", func(ctx context.Context) error { return s.navigate(ctx, directURL(s.scraper.opts.BaseURL, n)) }},
		{"search_form", func(ctx context.Context) error { return s.searchForm(ctx, n) }},
		{"detail_page", func(ctx context.Context) error { return s.navigate(ctx, detailURL(s.scraper.opts.BaseURL, n)) }},
	}

	var lastErr error
	for _, st := range urls {
		if err := st.nav(ctx); err != nil {
			lastErr = err
			continue
		}
		html, err := s.drv.HTML(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		switch classifyPage(html) {
		case pageDetail:
			s.log.Debug().Str("strategy", st.name).Str("process", n.String()).Msg("lookup resolved")
			return html, nil
		case pageNoInfo:
			return "", perr.NotFoundf("portal: no information for %s", n.String())
		case pageSealed:
			return "", perr.Sealedf("portal: %s is under seal", n.String())
		default:
			lastErr = perr.Malformedf("portal: strategy %s landed on an unrecognized page", st.name)
		}
	}
	if lastErr == nil {
		lastErr = perr.Malformedf("portal: all lookup strategies exhausted for %s", n.String())
	}
	return "", lastErr
}

// navigate paces then drives the browser to url
func (s *Session) navigate(ctx context.Context, url string) error {
	if err := s.scraper.pace(ctx); err != nil {
		return err
	}
	return s.drv.Navigate(ctx, url)
}

// searchForm runs the full form-based search: open the search page, select
// the number search mode, fill the field, submit
func (s *Session) searchForm(ctx context.Context, n cnj.Number) error {
	if err := s.navigate(ctx, searchURL(s.scraper.opts.BaseURL)); err != nil {
		return err
	}
	if err := s.drv.WaitVisible(ctx, selSearchMode, s.scraper.opts.WaitTimeout); err != nil {
		return err
	}
	if err := s.drv.SetValue(ctx, selSearchMode, searchModeNumber); err != nil {
		return err
	}
	if err := s.drv.SetValue(ctx, selNumberField, n.String()); err != nil {
		return err
	}
	if err := s.scraper.pace(ctx); err != nil {
		return err
	}
	return s.drv.Click(ctx, selSearchSubmit)
}

// extractRecord parses the detail page, attempts the expand-all control,
// pulls per-movement full texts for decision rows, and classifies every
// movement
func (s *Session) extractRecord(ctx context.Context, html string, n cnj.Number) (*domain.ProcessRecord, error) {
	rec, err := parseDetail(html, n)
	if err != nil {
		return nil, err
	}

	// expand the movement table once; failure falls back to whatever is
	// visible on the page already
	if hasExpandControl(html) {
		if err := s.drv.Click(ctx, selExpandAll); err == nil {
			_ = s.drv.WaitVisible(ctx, selMovementsFull, s.scraper.opts.WaitTimeout)
			if fresh, herr := s.drv.HTML(ctx); herr == nil {
				html = fresh
			}
		} else {
			s.log.Debug().Str("process", n.String()).Err(err).Msg("expand-all control failed, using visible rows")
		}
	}

	movs := parseMovements(html)
	s.expandFullTexts(ctx, &movs)

	rec.Movements = make([]domain.Movement, len(movs))
	for i, rm := range movs {
		rec.Movements[i] = s.classifyMovement(rm)
	}
	rec.Source = domain.SourceScrape
	rec.FetchedAt = time.Now()
	return rec, nil
}

// expandFullTexts tries the per-movement "more" control for rows carrying
// judicial-decision text, bounded by MaxFullTexts. Failures degrade to the
// short text without failing the record
func (s *Session) expandFullTexts(ctx context.Context, movs *[]rawMovement) {
	opened := 0
	for i := range *movs {
		rm := &(*movs)[i]
		if rm.ExpandSel == "" || rm.FullText != "" {
			continue
		}
		if opened >= s.scraper.opts.MaxFullTexts {
			return
		}
		if !s.scraper.classifier.IsJudicialDecision(rm.ShortText) {
			continue
		}
		opened++
		if err := s.drv.Click(ctx, rm.ExpandSel); err != nil {
			s.log.Debug().Str("sel", rm.ExpandSel).Err(err).Msg("full-text control failed")
			continue
		}
		fresh, err := s.drv.HTML(ctx)
		if err != nil {
			continue
		}
		if full := parseFullTextFor(fresh, rm.ExpandSel); full != "" {
			rm.FullText = full
		}
	}
}

// classifyMovement runs the classifier over the fullest available text
func (s *Session) classifyMovement(rm rawMovement) domain.Movement {
	text := rm.ShortText
	if rm.FullText != "" {
		text = rm.ShortText + "\n" + rm.FullText
	}
	res := s.scraper.classifier.Classify(text)

	m := domain.Movement{
		Order:      rm.Order,
		Date:       rm.Date,
		ShortText:  rm.ShortText,
		FullText:   rm.FullText,
		Keywords:   res.Keywords,
		Outcome:    res.Outcome,
		IsDecision: res.IsDecision,
		Priority:   res.Priority,
	}
	if len(res.Amounts) > 0 {
		m.Amount = res.Amounts[0]
	}
	return m
}
