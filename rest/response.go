package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/bytedance/sonic"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrNilRequest indicates that a nil request was provided.
	ErrNilRequest = errors.New("request cannot be nil")
	// ErrNilResponse indicates that a nil raw response was provided.
	ErrNilResponse = errors.New("raw response cannot be nil")
)

// --------------------------------------------------------------------------------
// Types

// Response encapsulates the result of an executed HTTP request.
//
// The body is read eagerly and cached; the raw response body is closed.
type Response struct {
	request     *Request
	rawResponse *http.Response
	body        []byte
	receivedAt  time.Time
}

// --------------------------------------------------------------------------------
// Constructors

// NewResponse creates a Response from a Request and raw HTTP response,
// reading and caching the body.
func NewResponse(req *Request, raw *http.Response) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if raw == nil {
		return nil, ErrNilResponse
	}

	resp := &Response{
		request:     req,
		rawResponse: raw,
		receivedAt:  time.Now(),
	}

	if raw.Body != nil {
		defer raw.Body.Close()

		body, err := io.ReadAll(raw.Body)
		if err != nil {
			return nil, &TransportError{Cause: fmt.Errorf("failed to read response body: %w", err)}
		}

		resp.body = body
	}

	return resp, nil
}

// --------------------------------------------------------------------------------
// Public Methods

// Status returns the HTTP status string (e.g., "200 OK").
func (r *Response) Status() string {
	return r.rawResponse.Status
}

// StatusCode returns the HTTP status code (e.g., 200).
func (r *Response) StatusCode() int {
	return r.rawResponse.StatusCode
}

// Header returns the HTTP response headers.
func (r *Response) Header() http.Header {
	return r.rawResponse.Header
}

// String returns the response body as a string.
func (r *Response) String() string {
	return string(r.body)
}

// Bytes returns the cached response body.
func (r *Response) Bytes() []byte {
	return r.body
}

// Duration returns the time elapsed from request start to response receipt.
func (r *Response) Duration() time.Duration {
	return r.receivedAt.Sub(r.request.time)
}

// IsSuccess checks if the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode() >= http.StatusOK && r.StatusCode() < http.StatusMultipleChoices
}

// IsError checks if the status code is 400 or above.
func (r *Response) IsError() bool {
	return r.StatusCode() >= http.StatusBadRequest
}

// JSON returns the decoded body as a generic JSON value.
//
// A 204 or empty body decodes to an empty object, never nil. A body that is
// not valid JSON yields a DecodeError carrying the raw bytes.
func (r *Response) JSON() (any, error) {
	if r.StatusCode() == http.StatusNoContent || len(r.body) == 0 {
		return map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal(r.body, &v); err != nil {
		return nil, &DecodeError{RawBody: r.body, Cause: err}
	}

	return v, nil
}

// Result returns the unmarshaled success data, if a result target was set.
func (r *Response) Result() any {
	return r.request.result
}

// --------------------------------------------------------------------------------
// Private Methods

// decodeResult unmarshals a successful body into the request's result
// target, if one was configured. An empty or 204 body leaves the target
// untouched.
func (r *Response) decodeResult() error {
	if r.request.result == nil || !r.IsSuccess() {
		return nil
	}

	if r.StatusCode() == http.StatusNoContent || len(r.body) == 0 {
		return nil
	}

	if err := json.Unmarshal(r.body, r.request.result); err != nil {
		return &DecodeError{RawBody: r.body, Cause: err}
	}

	return nil
}
