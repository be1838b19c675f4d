package portal

import (
	"context"

	perr "processo/internal/platform/errors"
	"processo/internal/services/collect/domain"
)

// SearchByParty runs a party/attorney-name search: submit the form, walk
// the listing pages collecting process numbers, then fetch each process's
// full record. maxResults bounds the number of detail fetches
func (s *Session) SearchByParty(ctx context.Context, name string, maxResults int) ([]domain.ProcessRecord, error) {
	if name == "" {
		return nil, perr.InvalidArgf("portal: party name is required")
	}
	if maxResults <= 0 {
		maxResults = s.scraper.opts.PageSize
	}
	s.state = stateSearching

	var numbers []string
	err := s.retry(ctx, "search_by_party", func(ctx context.Context) error {
		ns, serr := s.collectListing(ctx, name, maxResults)
		if serr != nil {
			return serr
		}
		numbers = ns
		return nil
	})
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			s.state = stateNotFound
		}
		return nil, err
	}

	out := make([]domain.ProcessRecord, 0, len(numbers))
	var lastErr error
	for _, num := range numbers {
		if len(out) >= maxResults {
			break
		}
		rec, ferr := s.FetchByNumber(ctx, num)
		if ferr != nil {
			// one broken process must not sink the whole search
			s.log.Warn().Str("process", num).Err(ferr).Msg("party result fetch failed, skipping")
			if ctx.Err() != nil {
				return out, perr.Classify(ctx.Err())
			}
			lastErr = ferr
			continue
		}
		out = append(out, *rec)
	}
	if len(out) == 0 {
		// every listed process failed to resolve; an empty Found result
		// would get cached for a full party TTL
		if lastErr != nil {
			return nil, lastErr
		}
		s.state = stateNotFound
		return nil, perr.NotFoundf("portal: no retrievable processes for %q", name)
	}
	s.state = stateFound
	return out, nil
}

// collectListing submits the party form and paginates the result listing.
// The first page's result-count phrase bounds how many pages are walked;
// when it cannot be parsed the configured estimate mode decides between
// walking up to the page cap or stopping at the first page
func (s *Session) collectListing(ctx context.Context, name string, maxResults int) ([]string, error) {
	if err := s.navigate(ctx, searchURL(s.scraper.opts.BaseURL)); err != nil {
		return nil, err
	}
	if err := s.drv.WaitVisible(ctx, selSearchMode, s.scraper.opts.WaitTimeout); err != nil {
		return nil, err
	}
	if err := s.drv.SetValue(ctx, selSearchMode, searchModeParty); err != nil {
		return nil, err
	}
	if err := s.drv.SetValue(ctx, selPartyField, name); err != nil {
		return nil, err
	}
	if err := s.scraper.pace(ctx); err != nil {
		return nil, err
	}
	if err := s.drv.Click(ctx, selSearchSubmit); err != nil {
		return nil, err
	}

	html, err := s.drv.HTML(ctx)
	if err != nil {
		return nil, err
	}

	switch classifyPage(html) {
	case pageDetail:
		// unique match: the portal jumps straight to the detail page
		if num := parseDetailNumber(html); num != "" {
			return []string{num}, nil
		}
		return nil, perr.Malformedf("portal: detail page without a process number")
	case pageNoInfo:
		return nil, perr.NotFoundf("portal: no processes for party %q", name)
	case pageSealed:
		return nil, perr.Sealedf("portal: party results under seal")
	case pageListing:
		// handled below
	default:
		return nil, perr.Malformedf("portal: party search landed on an unrecognized page")
	}

	maxPages := s.scraper.opts.MaxPages
	total, ok := parseResultCount(html)
	switch {
	case ok:
		est := (total + s.scraper.opts.PageSize - 1) / s.scraper.opts.PageSize
		if est < maxPages {
			maxPages = est
		}
	case s.scraper.opts.EstimateMode == EstimateSingle:
		maxPages = 1
	}

	var numbers []string
	for page := 1; ; page++ {
		nums := parseListing(html)
		numbers = append(numbers, nums...)
		if len(numbers) >= maxResults || page >= maxPages || !hasNextPage(html) {
			break
		}
		if err := s.scraper.pace(ctx); err != nil {
			return nil, err
		}
		if err := s.drv.Click(ctx, selNextPage); err != nil {
			s.log.Debug().Int("page", page).Err(err).Msg("next-page control failed, stopping traversal")
			break
		}
		if html, err = s.drv.HTML(ctx); err != nil {
			return nil, err
		}
	}

	if len(numbers) == 0 {
		return nil, perr.NotFoundf("portal: listing carried no processes for %q", name)
	}
	if len(numbers) > maxResults {
		numbers = numbers[:maxResults]
	}
	return numbers, nil
}
