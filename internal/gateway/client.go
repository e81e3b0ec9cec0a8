// Package gateway is a thin client for the remote rides API.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/cyclescene/cyclescene/internal/ride"
)

// Fetcher is implemented by *Client.
type Fetcher interface {
	FetchUpcoming(ctx context.Context, city string) ([]ride.Ride, error)
	FetchPast(ctx context.Context, city string) ([]ride.Ride, error)
	FetchRoutes(ctx context.Context, city string) ([]ride.Route, error)
}

var _ Fetcher = (*Client)(nil)

// Client talks to the rides API. It never retries.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultUserAgent = "cyclescene/1.0"
	requestTimeout   = 15 * time.Second
	maxErrorBody     = 4 << 10
)

// NewClient builds a Client for baseURL. A nil transport uses
// http.DefaultTransport.
func NewClient(baseURL string, transport http.RoundTripper) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// FetchUpcoming returns rides dated today or later for city.
func (c *Client) FetchUpcoming(ctx context.Context, city string) ([]ride.Ride, error) {
	var rides []ride.Ride
	if err := c.get(ctx, "/v1/rides/upcoming", city, &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

// FetchPast returns rides dated before today for city.
func (c *Client) FetchPast(ctx context.Context, city string) ([]ride.Ride, error) {
	var rides []ride.Ride
	if err := c.get(ctx, "/v1/rides/past", city, &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

func (c *Client) FetchRoutes(ctx context.Context, city string) ([]ride.Route, error) {
	var routes []ride.Route
	if err := c.get(ctx, "/v1/routes", city, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func (c *Client) get(ctx context.Context, path, city string, dest any) error {
	rel := &url.URL{Path: path, RawQuery: url.Values{"city": {city}}.Encode()}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return &NetworkError{Endpoint: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Endpoint: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &NetworkError{
			Endpoint: path,
			Status:   resp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Endpoint: path, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &ClientError{Endpoint: path, Err: err}
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("api base url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
