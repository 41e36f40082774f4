// Package smarty is a minimal client for the Smarty US Street Address API,
// covering the delivery-classification fields this pipeline needs.
package smarty

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/atmb-cli/internal/resilience"
)

// DefaultBaseURL is the production US Street endpoint.
const DefaultBaseURL = "https://us-street.api.smarty.com/street-address"

// Options configures the client.
type Options struct {
	BaseURL        string
	AuthID         string
	AuthToken      string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Client calls the US Street API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authID     string
	authToken  string
	limiter    *rate.Limiter
}

// New creates a Client. BaseURL is overridable for tests.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 10
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		authID:     opts.AuthID,
		authToken:  opts.AuthToken,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
	}
}

// Lookup is one address to verify. Secondary carries the suite/unit for
// unit-level verification and is omitted from the query when empty.
type Lookup struct {
	Street    string
	City      string
	State     string
	ZipCode   string
	Secondary string
}

// Verification is the delivery classification for a matched address. RDI
// and CMRA hold the API's raw values ("Residential"/"Commercial",
// "Y"/"N"); Matched is false when the API returned no candidate.
type Verification struct {
	RDI     string
	CMRA    string
	Matched bool
}

// candidate is the subset of the US Street response this client reads.
type candidate struct {
	Metadata struct {
		RDI string `json:"rdi"`
	} `json:"metadata"`
	Analysis struct {
		DPVCMRA string `json:"dpv_cmra"`
	} `json:"analysis"`
}

// Verify looks up a single address. Rate-limit and server errors come back
// as resilience.TransientError; auth failures are permanent.
func (c *Client) Verify(ctx context.Context, lookup Lookup) (*Verification, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "smarty: rate limiter wait")
	}

	params := url.Values{
		"auth-id":    {c.authID},
		"auth-token": {c.authToken},
		"street":     {lookup.Street},
		"city":       {lookup.City},
		"state":      {lookup.State},
		"zipcode":    {lookup.ZipCode},
		"candidates": {"1"},
		"match":      {"strict"},
	}
	if lookup.Secondary != "" {
		params.Set("secondary", lookup.Secondary)
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "smarty: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "smarty: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, eris.New("smarty: invalid credentials (401)")
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, eris.New("smarty: plan limit reached (402)")
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("smarty: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("smarty: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "smarty: read body")
	}

	var candidates []candidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, eris.Wrap(err, "smarty: parse response")
	}

	if len(candidates) == 0 {
		return &Verification{Matched: false}, nil
	}

	return &Verification{
		RDI:     candidates[0].Metadata.RDI,
		CMRA:    candidates[0].Analysis.DPVCMRA,
		Matched: true,
	}, nil
}
