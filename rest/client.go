// Package rest provides a configurable HTTP client for the CryptoLytica
// REST API.
//
// It performs authenticated JSON requests against a base URL and maps the
// outcome to typed errors (TransportError, HTTPError, DecodeError), using a
// functional options pattern for flexible configuration.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cryptolytica/goclient/logger"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultRetryCount is the default number of retries for failed requests.
	// Zero: the layer does not retry unless explicitly configured.
	DefaultRetryCount = 0
	// DefaultRetryWaitTime is the initial wait time between retries.
	DefaultRetryWaitTime = 100 * time.Millisecond
	// DefaultRetryMaxWaitTime is the maximum wait time between retries.
	DefaultRetryMaxWaitTime = 2 * time.Second

	// HeaderAPIKey is the header used by the AuthAPIKey scheme.
	HeaderAPIKey = "X-API-Key"
	// HeaderRequestID carries the per-request correlation ID.
	HeaderRequestID = "X-Request-ID"
)

// AuthScheme selects how the API key is attached to outgoing requests.
//
// Deployments differ: some gateways expect a bearer token, others a
// dedicated API-key header. The scheme is configuration, never hardcoded.
type AuthScheme int

const (
	// AuthNone sends no credentials.
	AuthNone AuthScheme = iota
	// AuthAPIKey sends the key as "X-API-Key: <key>".
	AuthAPIKey
	// AuthBearer sends the key as "Authorization: Bearer <key>".
	AuthBearer
)

// String returns the scheme's configuration name.
func (s AuthScheme) String() string {
	switch s {
	case AuthAPIKey:
		return "api-key"
	case AuthBearer:
		return "bearer"
	default:
		return "none"
	}
}

// --------------------------------------------------------------------------------
// Types

// Client manages HTTP requests against a single base URL.
//
// The base URL is normalized (trailing slash stripped) at construction so
// endpoint joining is unambiguous.
type Client struct {
	baseURL          string
	authScheme       AuthScheme
	apiKey           string
	debug            bool
	httpClient       *http.Client
	logger           logger.Interface
	retryCount       uint
	retryWaitTime    time.Duration
	retryMaxWaitTime time.Duration
}

// Option defines a function to configure a Client instance.
type Option func(*Client) error

// --------------------------------------------------------------------------------
// Constructors

// New creates a new Client for the given base URL and applies the provided
// options.
//
// Example:
//
//	client, err := rest.New("https://api.cryptolytica.io",
//	    rest.WithAuth(rest.AuthAPIKey, key),
//	    rest.WithTimeout(15*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func New(baseURL string, opts ...Option) (*Client, error) {
	l, err := logger.New("info", os.Stderr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpClient:       &http.Client{Timeout: DefaultTimeout},
		logger:           l,
		retryCount:       DefaultRetryCount,
		retryWaitTime:    DefaultRetryWaitTime,
		retryMaxWaitTime: DefaultRetryMaxWaitTime,
	}

	return c.With(opts...)
}

// --------------------------------------------------------------------------------
// Public Methods

// With applies a list of options to an existing Client and returns the
// modified instance. If an option fails, it returns the current state with
// an error.
func (c *Client) With(opts ...Option) (*Client, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(c); err != nil {
			return c, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return c, nil
}

// R creates a new Request inheriting the Client's configuration.
//
// Example:
//
//	resp, err := client.R(rest.WithQuery("limit", "10")).Get("/api/events")
func (c *Client) R(opts ...RequestOption) *Request {
	r := &Request{
		header:           make(http.Header),
		query:            make(url.Values),
		retryCount:       c.retryCount,
		retryWaitTime:    c.retryWaitTime,
		retryMaxWaitTime: c.retryMaxWaitTime,
		client:           c,
		ctx:              context.Background(),
	}

	if _, err := r.With(opts...); err != nil {
		r.buildErr = err
	}

	return r
}

// Do performs a request and returns the decoded JSON body.
//
// It is the generic entry point: method is one of GET, POST, PUT, DELETE;
// endpoint is joined with the base URL regardless of slash placement; query
// and body may be nil. A 204 or empty response yields an empty object.
func (c *Client) Do(ctx context.Context, method, endpoint string, query map[string]string, body any) (any, error) {
	opts := []RequestOption{WithContext(ctx), WithMethod(method), WithPath(endpoint)}
	if query != nil {
		opts = append(opts, WithQueries(query))
	}

	if body != nil {
		opts = append(opts, WithBody(body))
	}

	resp, err := c.R(opts...).Execute()
	if err != nil {
		return nil, err
	}

	return resp.JSON()
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --------------------------------------------------------------------------------
// Configuration Options

// WithBaseURL sets the base URL, trimming trailing slashes for consistency.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		c.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithAuth sets the credential scheme and API key attached to every request.
func WithAuth(scheme AuthScheme, key string) Option {
	return func(c *Client) error {
		if scheme != AuthNone && key == "" {
			return fmt.Errorf("auth scheme %q requires a non-empty key", scheme)
		}

		c.authScheme = scheme
		c.apiKey = key

		return nil
	}
}

// WithDebug enables or disables colorized request/response tracing.
func WithDebug(debug bool) Option {
	return func(c *Client) error {
		c.debug = debug
		return nil
	}
}

// WithTimeout sets the HTTP request timeout, falling back to the default if
// negative.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			timeout = DefaultTimeout
		}
		c.httpClient.Timeout = timeout
		return nil
	}
}

// WithLogger sets a custom logger for the Client.
func WithLogger(l logger.Interface) Option {
	return func(c *Client) error {
		if l == nil {
			return fmt.Errorf("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// WithHTTPClient replaces the underlying *http.Client, for proxy or
// transport-level customization.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client cannot be nil")
		}

		c.httpClient = hc

		return nil
	}
}

// WithRetries configures transport-level retry settings.
//
// Retries apply only to network failures and 5xx responses; 4xx responses
// are returned to the caller untouched.
func WithRetries(count uint, waitTime, maxWaitTime time.Duration) Option {
	return func(c *Client) error {
		if waitTime < 0 {
			waitTime = DefaultRetryWaitTime
		}
		if maxWaitTime < 0 {
			maxWaitTime = DefaultRetryMaxWaitTime
		}
		c.retryCount = count
		c.retryWaitTime = waitTime
		c.retryMaxWaitTime = maxWaitTime
		return nil
	}
}

// --------------------------------------------------------------------------------
// Chaining Methods

// Auth sets the credential scheme and returns the Client for chaining.
func (c *Client) Auth(scheme AuthScheme, key string) *Client {
	_, _ = c.With(WithAuth(scheme, key))
	return c
}

// Debug toggles request tracing and returns the Client for chaining.
func (c *Client) Debug(debug bool) *Client {
	_, _ = c.With(WithDebug(debug))
	return c
}

// Timeout sets the request timeout and returns the Client for chaining.
func (c *Client) Timeout(timeout time.Duration) *Client {
	_, _ = c.With(WithTimeout(timeout))
	return c
}
