// Package rest_test verifies the HTTP request layer against a live test
// server.
package rest_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptolytica/goclient/logger"
	"github.com/cryptolytica/goclient/rest"
)

// newClient builds a quiet client against the given test server.
func newClient(t *testing.T, srv *httptest.Server, opts ...rest.Option) *rest.Client {
	t.Helper()

	opts = append([]rest.Option{rest.WithLogger(logger.Nop())}, opts...)

	c, err := rest.New(srv.URL, opts...)
	require.NoError(t, err)

	return c
}

// --------------------------------------------------------------------------------
// Tests

// TestRoundTrip verifies that a valid 2xx JSON body is returned unchanged.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"online","uptime_hours":31.5,"tags":["a","b"]}`))
	}))
	t.Cleanup(srv.Close)

	got, err := newClient(t, srv).Do(t.Context(), http.MethodGet, "/api/status", nil, nil)
	require.NoError(t, err)

	want := map[string]any{
		"status":       "online",
		"uptime_hours": 31.5,
		"tags":         []any{"a", "b"},
	}
	assert.Equal(t, want, got)
}

// TestNoContent verifies that a 204 yields an empty object, never nil.
func TestNoContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	got, err := newClient(t, srv).Do(t.Context(), http.MethodDelete, "/api/portfolios/p1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, map[string]any{}, got)
}

// TestHTTPError verifies that a 404 surfaces as an HTTPError carrying the
// status code and the body.
func TestHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newClient(t, srv).Do(t.Context(), http.MethodGet, "/api/exchanges/nope", nil, nil)

	var httpErr *rest.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, map[string]any{"detail": "not found"}, httpErr.JSON())
}

// TestDecodeError verifies that malformed JSON on a 2xx response is a
// DecodeError carrying the raw body, not a raw parse failure.
func TestDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"broken":`))
	}))
	t.Cleanup(srv.Close)

	_, err := newClient(t, srv).Do(t.Context(), http.MethodGet, "/api/status", nil, nil)

	var decErr *rest.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, []byte(`{"broken":`), decErr.RawBody)
}

// TestDecodeErrorResult verifies the same taxonomy when a typed result
// target is configured.
func TestDecodeErrorResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json at all`))
	}))
	t.Cleanup(srv.Close)

	var out struct {
		Status string `json:"status"`
	}

	_, err := newClient(t, srv).R(rest.WithContext(t.Context()), rest.WithResult(&out)).Get("/api/status")

	var decErr *rest.DecodeError
	require.ErrorAs(t, err, &decErr)
}

// TestTransportError verifies network-level failures are typed.
func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Refuse all connections.

	_, err := newClient(t, srv).Do(t.Context(), http.MethodGet, "/api/status", nil, nil)

	var transErr *rest.TransportError
	require.ErrorAs(t, err, &transErr)
}

// TestRequestShape verifies headers, query, and body on the wire.
func TestRequestShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/portfolios", r.URL.Path)
		assert.Equal(t, "balanced", r.URL.Query().Get("risk"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get(rest.HeaderRequestID))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"main"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1"}`))
	}))
	t.Cleanup(srv.Close)

	got, err := newClient(t, srv).Do(t.Context(), http.MethodPost, "api/portfolios",
		map[string]string{"risk": "balanced"}, map[string]string{"name": "main"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "p1"}, got)
}

// TestAuthSchemes verifies the configurable credential header.
func TestAuthSchemes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		scheme     rest.AuthScheme
		key        string
		wantHeader string
		wantValue  string
	}{
		{"Bearer", rest.AuthBearer, "tok-1", "Authorization", "Bearer tok-1"},
		{"APIKey", rest.AuthAPIKey, "key-2", rest.HeaderAPIKey, "key-2"},
		{"None", rest.AuthNone, "", "Authorization", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotValue atomic.Value

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotValue.Store(r.Header.Get(tt.wantHeader))
				_, _ = w.Write([]byte(`{}`))
			}))
			t.Cleanup(srv.Close)

			c := newClient(t, srv, rest.WithAuth(tt.scheme, tt.key))
			_, err := c.Do(t.Context(), http.MethodGet, "/api/status", nil, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantValue, gotValue.Load())
		})
	}
}

// TestNoRetryOn4xx verifies that client errors are never retried even when
// retries are configured.
func TestNoRetryOn4xx(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv, rest.WithRetries(3, time.Millisecond, 10*time.Millisecond))

	_, err := c.Do(t.Context(), http.MethodGet, "/api/status", nil, nil)

	var httpErr *rest.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, int32(1), hits.Load())
}

// TestRetryOn5xx verifies opt-in retries recover from transient server
// errors.
func TestRetryOn5xx(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv, rest.WithRetries(2, time.Millisecond, 10*time.Millisecond))

	got, err := c.Do(t.Context(), http.MethodGet, "/api/status", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, got)
	assert.Equal(t, int32(2), hits.Load())
}

// TestResultTarget verifies typed unmarshaling into a caller-supplied
// struct.
func TestResultTarget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"online","version":"0.3.0"}`))
	}))
	t.Cleanup(srv.Close)

	var out struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}

	resp, err := newClient(t, srv).R(rest.WithContext(t.Context()), rest.WithResult(&out)).Get("/api/status")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "online", out.Status)
	assert.Equal(t, "0.3.0", out.Version)
}
