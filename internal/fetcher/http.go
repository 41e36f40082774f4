// Package fetcher provides the rate-limited HTTP client used to fetch
// directory pages. Retry policy lives with the callers; the fetcher only
// classifies failures as transient or not.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/atmb-cli/internal/resilience"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Fetcher issues rate-limited GET requests against the directory site.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// New creates a Fetcher with the given options.
func New(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "atmb-cli/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		userAgent: opts.UserAgent,
	}
}

// Result is a fetched page. FinalURL differs from the requested URL when
// the server redirected.
type Result struct {
	Body     []byte
	FinalURL string
}

// Get fetches the URL once. Timeouts, 408/429 and 5xx responses come back
// as resilience.TransientError so callers can retry them; other non-2xx
// statuses are permanent errors.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: build request %s", rawURL)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		// Client-level failures (timeouts, resets) classify via IsTransient.
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body %s", rawURL)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{Body: body, FinalURL: finalURL}, nil
}
