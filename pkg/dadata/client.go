// Package dadata provides a client for the Dadata address suggestion and
// cleaning APIs.
package dadata

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geodata-cli/internal/throttle"
)

const (
	// DefaultSuggestURL is the base URL of the suggestions API.
	DefaultSuggestURL = "https://suggestions.dadata.ru/suggestions/api/4_1/rs"
	// DefaultCleanerURL is the base URL of the cleaner API.
	DefaultCleanerURL = "https://cleaner.dadata.ru/api/v1"
	// DefaultRateLimit is the number of calls allowed per second.
	DefaultRateLimit = 30
	// DefaultGeolocateRadius is the search radius for Geolocate, in meters.
	DefaultGeolocateRadius = 100

	maxErrorBody = 512
)

// Client defines the Dadata operations used for enrichment.
type Client interface {
	// FindByID looks up an entity of the given kind (e.g. "address") by its
	// FIAS or KLADR identifier.
	FindByID(ctx context.Context, kind, id string) ([]Suggestion, error)
	// Geolocate returns entities of the given kind nearest to a coordinate.
	Geolocate(ctx context.Context, kind string, lat, lon float64) ([]Suggestion, error)
	// Clean standardizes a free-text value. Returns nil when the service
	// returns nothing.
	Clean(ctx context.Context, kind, text string) (*Cleaned, error)
}

// Suggestion is a single result of the suggestions API.
type Suggestion struct {
	Value             string  `json:"value"`
	UnrestrictedValue string  `json:"unrestricted_value"`
	Data              Address `json:"data"`
}

type suggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Option configures the Dadata client.
type Option func(*httpClient)

// WithSuggestURL sets a custom suggestions base URL (for testing).
func WithSuggestURL(u string) Option {
	return func(c *httpClient) {
		c.suggestURL = strings.TrimRight(u, "/")
	}
}

// WithCleanerURL sets a custom cleaner base URL (for testing).
func WithCleanerURL(u string) Option {
	return func(c *httpClient) {
		c.cleanerURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithThrottle replaces the default 30 calls/second throttle. All calls
// made through the client share it.
func WithThrottle(t *throttle.Throttle) Option {
	return func(c *httpClient) {
		c.throttle = t
	}
}

// WithGeolocateRadius sets the Geolocate search radius in meters.
func WithGeolocateRadius(meters int) Option {
	return func(c *httpClient) {
		if meters > 0 {
			c.radius = meters
		}
	}
}

type httpClient struct {
	apiKey     string
	secretKey  string
	suggestURL string
	cleanerURL string
	radius     int
	http       *http.Client
	throttle   *throttle.Throttle
}

// NewClient creates a Dadata client. The secret key is only needed by Clean.
func NewClient(apiKey, secretKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		suggestURL: DefaultSuggestURL,
		cleanerURL: DefaultCleanerURL,
		radius:     DefaultGeolocateRadius,
		http:       &http.Client{Timeout: 10 * time.Second},
		throttle:   throttle.New(DefaultRateLimit, time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindByID implements Client.
func (c *httpClient) FindByID(ctx context.Context, kind, id string) ([]Suggestion, error) {
	var resp suggestResponse
	body := map[string]any{"query": id}
	if err := c.post(ctx, c.suggestURL+"/findById/"+kind, body, false, &resp); err != nil {
		return nil, eris.Wrapf(err, "dadata: find %s by id", kind)
	}
	return resp.Suggestions, nil
}

// Geolocate implements Client.
func (c *httpClient) Geolocate(ctx context.Context, kind string, lat, lon float64) ([]Suggestion, error) {
	var resp suggestResponse
	body := map[string]any{
		"lat":           lat,
		"lon":           lon,
		"radius_meters": c.radius,
	}
	if err := c.post(ctx, c.suggestURL+"/geolocate/"+kind, body, false, &resp); err != nil {
		return nil, eris.Wrapf(err, "dadata: geolocate %s", kind)
	}
	return resp.Suggestions, nil
}

// post sends a throttled JSON request and decodes a 200 response into out.
func (c *httpClient) post(ctx context.Context, url string, body any, withSecret bool, out any) error {
	if c.throttle != nil {
		if err := c.throttle.Acquire(ctx); err != nil {
			return eris.Wrap(err, "dadata: rate limit")
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "dadata: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "dadata: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if withSecret {
		req.Header.Set("X-Secret", c.secretKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "dadata: read body")
	}

	if resp.StatusCode != http.StatusOK {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "dadata: parse response")
	}
	return nil
}
