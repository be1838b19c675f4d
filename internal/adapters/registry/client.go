// Package registry provides a resilient client for the structured public
// process registry. It normalizes responses into the domain model; full
// movement histories are the scraper's job, the registry only carries the
// most recent summaries
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"processo/internal/core/cnj"
	perr "processo/internal/platform/errors"
	"processo/internal/platform/logger"
	"processo/internal/services/collect/domain"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUA        = "processo-collect"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	maxRetryBackoff  = 30 * time.Second

	searchPath = "/api/v2/processos/busca"

	// maxPartyResults is the hard registry-side cap on party searches
	maxPartyResults = 1000

	// movementCap keeps only the most recent summaries; the registry never
	// serves a full history
	movementCap = 10
)

// Options configures the Client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transport-level failures only; a well-formed
	// not-found response is never retried
	MaxRetries int
	RetryBase  time.Duration
}

// Client is the registry API client
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("registry"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// ByNumber looks up a single process. The registry has no tolerance for
// formatting punctuation, so the number is reduced to digits first
func (c *Client) ByNumber(ctx context.Context, number string) (*domain.ProcessRecord, error) {
	n, err := cnj.Parse(number)
	if err != nil {
		return nil, err
	}
	digits := cnj.Digits(n.String())

	resp, err := c.search(ctx, searchRequest{QueryType: "numero", Value: digits})
	if err != nil {
		return nil, err
	}
	if len(resp.Processos) == 0 {
		return nil, perr.NotFoundf("registry: no match for %s", digits)
	}
	rec, err := toRecord(resp.Processos[0], c.now())
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ByParty searches by party or attorney name. Results are sorted by filing
// date descending; downstream consumers rely on that ordering
func (c *Client) ByParty(ctx context.Context, name string, maxResults int) ([]domain.ProcessRecord, error) {
	if cnj.Fold(name) == "" {
		return nil, perr.InvalidArgf("registry: party name is required")
	}
	if maxResults <= 0 || maxResults > maxPartyResults {
		maxResults = maxPartyResults
	}

	resp, err := c.search(ctx, searchRequest{QueryType: "parte", Value: name, MaxResults: maxResults})
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProcessRecord, 0, len(resp.Processos))
	for _, wp := range resp.Processos {
		rec, err := toRecord(wp, c.now())
		if err != nil {
			c.log.Warn().Err(err).Str("numero", wp.Numero).Msg("skipping malformed result")
			continue
		}
		out = append(out, *rec)
	}
	sortByFilingDesc(out)
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

// search posts one request with transport-level retries and exponential
// backoff. Terminal statuses (not-found, auth) surface immediately
func (c *Client) search(ctx context.Context, req searchRequest) (*searchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "registry: encode request")
	}

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return nil, perr.Classify(ctx.Err())
		default:
		}

		hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+searchPath, bytes.NewReader(body))
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "registry: new request")
		}
		hr.Header.Set("User-Agent", c.opts.UserAgent)
		hr.Header.Set("Content-Type", "application/json")
		if c.opts.APIKey != "" {
			hr.Header.Set("Authorization", "APIKey "+c.opts.APIKey)
		}

		start := c.now()
		resp, err := c.http.Do(hr)
		lat := c.now().Sub(start)

		if err != nil {
			if !c.shouldRetry(attempts) {
				return nil, perr.Wrap(err, perr.ErrorCodeNetworkFailure, "registry: request failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("registry transport error, retrying")
			c.sleep(back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("tipo", req.QueryType).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("registry http response")

		switch resp.StatusCode {
		case http.StatusOK:
			var sr searchResponse
			if derr := json.NewDecoder(resp.Body).Decode(&sr); derr != nil {
				_ = resp.Body.Close()
				return nil, perr.Wrap(derr, perr.ErrorCodeMalformed, "registry: decode response")
			}
			_ = resp.Body.Close()
			return &sr, nil
		case http.StatusNotFound:
			_ = drainAndClose(resp.Body)
			return &searchResponse{}, nil
		case http.StatusTooManyRequests:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return nil, perr.RateLimitedf("registry: rate limited")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Msg("registry rate limited, backing off")
			c.sleep(back)
			attempts++
			continue
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return nil, perr.Unavailablef("registry: transient server error")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("registry transient error, retrying")
			c.sleep(back)
			attempts++
			continue
		default:
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.Malformedf("registry: unexpected status %d body %s", resp.StatusCode, string(tail))
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	// exponential with cap
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt)
	if lim := int64(maxRetryBackoff / time.Millisecond); ms > lim {
		ms = lim
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 4096))
	return rc.Close()
}
