package rest

import (
	"errors"
	"fmt"

	json "github.com/bytedance/sonic"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrMethodRequired indicates that the request method is missing.
	ErrMethodRequired = errors.New("request method is required")
	// ErrPathRequired indicates that the request path is missing.
	ErrPathRequired = errors.New("request path is required")
	// ErrEmptyKey indicates that a header or query key is empty.
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrNilContext indicates that a nil context was provided.
	ErrNilContext = errors.New("context cannot be nil")
)

// TransportError reports a network-level failure: timeout, DNS resolution,
// connection refused. The request never produced an HTTP response.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// HTTPError reports a response with status code >= 400. It carries the raw
// body so the caller can decide on retry or fallback policy; this layer
// does not retry client errors.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d: %s", e.StatusCode, e.Body)
}

// JSON decodes the error body, for servers that return structured errors
// such as {"detail": "not found"}. It returns nil if the body is not JSON.
func (e *HTTPError) JSON() any {
	var v any
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return nil
	}

	return v
}

// DecodeError reports a 2xx response whose body could not be decoded, or a
// payload missing a required identity field.
type DecodeError struct {
	RawBody []byte
	Cause   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// NewDecodeError builds a DecodeError for a missing or malformed field.
func NewDecodeError(raw []byte, format string, v ...any) *DecodeError {
	return &DecodeError{RawBody: raw, Cause: fmt.Errorf(format, v...)}
}
