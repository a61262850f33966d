package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/drishti/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	var seen string
	h := APIKeyAuth(map[string]string{"ops": "secret"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClientFromContext(r.Context())
	}))

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing", "/audit", "", http.StatusUnauthorized},
		{"wrong", "/audit", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/audit", "Bearer secret", http.StatusOK},
		{"bare", "/audit", "secret", http.StatusOK},
		{"health open", "/health", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK && tc.header != "" {
				assert.Equal(t, "ops", seen)
			}
		})
	}
}

func TestAPIKeyAuthDisabledWithoutKeys(t *testing.T) {
	rec := httptest.NewRecorder()
	APIKeyAuth(nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/audit", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refilled")

	now = now.Add(10 * time.Minute)
	rl.Cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware(okHandler())

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do("/audit"))
	assert.Equal(t, http.StatusTooManyRequests, do("/audit"))
	assert.Equal(t, http.StatusOK, do("/live"))
}

func TestRequestID(t *testing.T) {
	var inCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inCtx = logging.RequestID(r.Context())
	}))

	const clientID = "6f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b"
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", clientID)
	h.ServeHTTP(rec, req)
	assert.Equal(t, clientID, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, clientID, inCtx)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get("X-Request-ID")
	assert.NoError(t, ValidateRequestID(generated))
	assert.Equal(t, generated, inCtx)
}

func TestRequestIDReplacesNonUUID(t *testing.T) {
	for _, id := range []string{"abc-123", "x\nlevel=ERROR msg=forged"} {
		var inCtx string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inCtx = logging.RequestID(r.Context())
		}))
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", id)
		h.ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		assert.NotEqual(t, id, got)
		assert.NoError(t, ValidateRequestID(got))
		assert.Equal(t, got, inCtx)
	}
}

func TestValidateRequestID(t *testing.T) {
	assert.NoError(t, ValidateRequestID("6f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b"))
	assert.Error(t, ValidateRequestID(""))
	assert.Error(t, ValidateRequestID("not-a-uuid"))
}

func TestLoggingMiddlewareKeepsStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	before := GetMetrics()

	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	RecordAuditOutcome("PASS", nil)
	RecordAuditOutcome("FAIL", nil)
	RecordAuditOutcome("", errors.New("boom"))

	after := GetMetrics()
	delta := func(k string) uint64 { return after[k].(uint64) - before[k].(uint64) }
	assert.Equal(t, uint64(1), delta("requests_total"))
	assert.Equal(t, uint64(1), delta("requests_failed"))
	assert.Equal(t, uint64(1), delta("audits_passed"))
	assert.Equal(t, uint64(1), delta("audits_failed"))
	assert.Equal(t, uint64(1), delta("audits_errored"))

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "audits_total")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	healthy := PingChecker{Target: pingFunc(func(context.Context) error { return nil })}
	broken := PingChecker{Target: pingFunc(func(context.Context) error { return errors.New("down") })}

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"search": healthy})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"search": healthy, "minio": broken})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "down", status.Checks["minio"].Message)
	assert.Equal(t, "healthy", status.Checks["search"].Status)
}

func TestValidateVideoURL(t *testing.T) {
	hosts := []string{"youtube.com", "www.youtube.com", "youtu.be"}
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"https://youtu.be/abc", true},
		{"", false},
		{"ftp://youtube.com/x", false},
		{"http://localhost/x", false},
		{"http://127.0.0.1/x", false},
		{"http://10.1.2.3/x", false},
		{"http://169.254.169.254/latest", false},
		{"https://vimeo.com/1", false},
	}
	for _, tc := range cases {
		err := ValidateVideoURL(tc.url, hosts)
		if tc.ok {
			assert.NoError(t, err, tc.url)
		} else {
			assert.Error(t, err, tc.url)
		}
	}
	assert.NoError(t, ValidateVideoURL("https://vimeo.com/1", nil))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "a b", SanitizeString("  a\x00 b\x07 "))
}
