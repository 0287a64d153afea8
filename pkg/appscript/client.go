// Package appscript provides a one-way client for a Google Apps Script web
// app that appends lead rows to a spreadsheet.
package appscript

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// Script is the Apps Script source to deploy as the receiving web app.
//
//go:embed Code.gs
var Script string

// Client posts payloads to the web app without reading its reply.
type Client interface {
	// Post dispatches payload as a JSON text/plain body. A nil error means
	// the request went out and some response came back; it says nothing
	// about whether the row was written.
	Post(ctx context.Context, payload any) (*Dispatch, error)
	// Endpoint returns the configured web app URL.
	Endpoint() string
}

// Dispatch describes a request that left the client.
type Dispatch struct {
	StatusCode int
	Latency    time.Duration
}

// Option configures the Apps Script client.
type Option func(*httpClient)

// WithTimeout sets the transport timeout for a single dispatch.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	endpoint  string
	timeout   time.Duration
	userAgent string
	http      *http.Client
	rc        *resty.Client
}

// NewClient creates a client for the given web app deployment URL.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint:  endpoint,
		timeout:   30 * time.Second,
		userAgent: "leadscan",
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http != nil {
		c.rc = resty.NewWithClient(c.http)
	} else {
		c.rc = resty.New()
	}
	c.rc.SetTimeout(c.timeout).
		SetHeader("User-Agent", c.userAgent).
		// The web app answers a POST with a redirect to its output page.
		// The row is already written by then, so stop at the first response.
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	return c
}

func (c *httpClient) Endpoint() string {
	return c.endpoint
}

func (c *httpClient) Post(ctx context.Context, payload any) (*Dispatch, error) {
	if c.endpoint == "" {
		return nil, eris.New("appscript: endpoint not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "appscript: marshal payload")
	}

	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain;charset=utf-8").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(c.endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "appscript: post")
	}
	if raw := resp.RawBody(); raw != nil {
		_ = raw.Close()
	}

	return &Dispatch{
		StatusCode: resp.StatusCode(),
		Latency:    time.Since(start),
	}, nil
}
