package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/cryptolytica/goclient/util"
)

// --------------------------------------------------------------------------------
// Types

// Request represents a single HTTP request being configured and executed.
//
// It supports method, path, headers, query parameters, a JSON body, a typed
// result target, and opt-in transport-level retries.
type Request struct {
	method           string
	path             string
	header           http.Header
	query            url.Values
	body             any
	result           any
	retryCount       uint
	retryWaitTime    time.Duration
	retryMaxWaitTime time.Duration
	time             time.Time
	client           *Client
	attempt          uint
	ctx              context.Context
	buildErr         error
}

// RequestOption defines a function to configure a Request instance.
type RequestOption func(*Request) error

// --------------------------------------------------------------------------------
// Public Methods

// With applies a list of options to the Request and returns the modified
// instance. If an option fails, it returns the current state with an error.
func (r *Request) With(opts ...RequestOption) (*Request, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(r); err != nil {
			return r, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return r, nil
}

// Get executes a GET request against the given endpoint path.
func (r *Request) Get(path string) (*Response, error) {
	return r.execute(http.MethodGet, path)
}

// Post executes a POST request against the given endpoint path.
func (r *Request) Post(path string) (*Response, error) {
	return r.execute(http.MethodPost, path)
}

// Put executes a PUT request against the given endpoint path.
func (r *Request) Put(path string) (*Response, error) {
	return r.execute(http.MethodPut, path)
}

// Delete executes a DELETE request against the given endpoint path.
func (r *Request) Delete(path string) (*Response, error) {
	return r.execute(http.MethodDelete, path)
}

// Execute sends the configured request. Method and path must have been set.
func (r *Request) Execute() (*Response, error) {
	if r.method == "" {
		return nil, ErrMethodRequired
	}

	if r.path == "" {
		return nil, ErrPathRequired
	}

	return r.execute(r.method, r.path)
}

// --------------------------------------------------------------------------------
// Private Methods

// execute performs the request, retrying transport failures and 5xx
// responses when retries are configured. HTTP errors below 500 are returned
// immediately: the caller owns that policy.
func (r *Request) execute(method, path string) (*Response, error) {
	if r.buildErr != nil {
		return nil, r.buildErr
	}

	r.method = method
	r.path = path
	r.time = time.Now()

	reqID := uuid.NewString()
	r.header.Set(HeaderRequestID, reqID)

	for {
		resp, err := r.do()
		r.attempt++

		if err == nil {
			r.client.logger.Info("%s %s -> %d [%s]", r.method, r.path, resp.StatusCode(), reqID)
			return resp, nil
		}

		if !retryable(err) || r.attempt > r.retryCount || r.ctx.Err() != nil {
			r.client.logger.Error("%s %s failed [%s]: %v", r.method, r.path, reqID, err)
			return resp, err
		}

		if werr := util.Wait(r.ctx, r.attempt, r.retryWaitTime, r.retryMaxWaitTime, util.DefaultJitterFactor); werr != nil {
			return nil, &TransportError{Cause: werr}
		}
	}
}

// do constructs and sends the HTTP request, mapping the outcome to the
// typed error taxonomy.
func (r *Request) do() (*Response, error) {
	req, err := r.newRequest()
	if err != nil {
		return nil, err
	}

	if r.client.debug {
		dumpRequest(req)
	}

	raw, err := r.client.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}

	resp, err := NewResponse(r, raw)
	if err != nil {
		return nil, err
	}

	if r.client.debug {
		dumpResponse(resp)
	}

	if resp.IsError() {
		return resp, &HTTPError{StatusCode: resp.StatusCode(), Body: resp.Bytes()}
	}

	if err := resp.decodeResult(); err != nil {
		return resp, err
	}

	return resp, nil
}

// newRequest builds the *http.Request with the standard JSON and auth
// headers applied.
func (r *Request) newRequest() (*http.Request, error) {
	fullURL := buildFullURL(r.client.baseURL, r.path, r.query)

	var body io.Reader

	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON body: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(r.ctx, r.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	switch r.client.authScheme {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+r.client.apiKey)
	case AuthAPIKey:
		req.Header.Set(HeaderAPIKey, r.client.apiKey)
	case AuthNone:
	}

	for key, values := range r.header {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	return req, nil
}

// retryable reports whether the failure may be retried: network-level
// errors and server-side 5xx responses only.
func retryable(err error) bool {
	switch e := err.(type) {
	case *TransportError:
		return true
	case *HTTPError:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// --------------------------------------------------------------------------------
// Configuration Options

// WithMethod sets the HTTP method, uppercased for consistency.
func WithMethod(method string) RequestOption {
	return func(r *Request) error {
		r.method = strings.ToUpper(method)

		return nil
	}
}

// WithPath sets the endpoint path, relative to the client's base URL.
func WithPath(path string) RequestOption {
	return func(r *Request) error {
		r.path = path

		return nil
	}
}

// WithHeader adds a single header key-value pair to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) error {
		if key == "" {
			return ErrEmptyKey
		}

		r.header.Set(key, value)

		return nil
	}
}

// WithQuery adds a single query parameter to the request.
func WithQuery(key, value string) RequestOption {
	return func(r *Request) error {
		if key == "" {
			return ErrEmptyKey
		}

		r.query.Set(key, value)

		return nil
	}
}

// WithQueries adds multiple query parameters from a map.
func WithQueries(params map[string]string) RequestOption {
	return func(r *Request) error {
		for k, v := range params {
			if k == "" {
				return ErrEmptyKey
			}

			r.query.Set(k, v)
		}

		return nil
	}
}

// WithBody sets the request body to be marshaled as JSON.
func WithBody(body any) RequestOption {
	return func(r *Request) error {
		r.body = body

		return nil
	}
}

// WithResult sets the target for unmarshaling a successful response body.
func WithResult(result any) RequestOption {
	return func(r *Request) error {
		r.result = result

		return nil
	}
}

// WithContext sets the context controlling the request's lifecycle.
func WithContext(ctx context.Context) RequestOption {
	return func(r *Request) error {
		if ctx == nil {
			return ErrNilContext
		}

		r.ctx = ctx

		return nil
	}
}
