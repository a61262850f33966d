package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// counters for the process; exposed as JSON on /metrics
type metrics struct {
	requests   atomic.Uint64
	inFlight   atomic.Int64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
	audits     atomic.Uint64
	running    atomic.Int64
	auditPass  atomic.Uint64
	auditFail  atomic.Uint64
	auditError atomic.Uint64
	started    time.Time
}

var stats = &metrics{started: time.Now()}

// IncrementAudits counts an accepted audit request.
func IncrementAudits() { stats.audits.Add(1) }

func IncrementAuditsRunning() { stats.running.Add(1) }

func DecrementAuditsRunning() { stats.running.Add(-1) }

// RecordAuditOutcome counts a finished audit by its final status. An audit
// that returned an error is counted as errored.
func RecordAuditOutcome(status string, err error) {
	switch {
	case err != nil:
		stats.auditError.Add(1)
	case status == "PASS":
		stats.auditPass.Add(1)
	default:
		stats.auditFail.Add(1)
	}
}

// GetMetrics returns a point-in-time snapshot.
func GetMetrics() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]any{
		"requests_total":       stats.requests.Load(),
		"requests_in_progress": stats.inFlight.Load(),
		"requests_success":     stats.succeeded.Load(),
		"requests_failed":      stats.failed.Load(),
		"audits_total":         stats.audits.Load(),
		"audits_running":       stats.running.Load(),
		"audits_passed":        stats.auditPass.Load(),
		"audits_failed":        stats.auditFail.Load(),
		"audits_errored":       stats.auditError.Load(),
		"uptime_seconds":       time.Since(stats.started).Seconds(),
		"goroutines":           runtime.NumGoroutine(),
		"heap_alloc_bytes":     mem.HeapAlloc,
		"num_gc":               mem.NumGC,
	}
}

// MetricsMiddleware counts requests and their outcome; 4xx and 5xx are failures.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats.requests.Add(1)
		stats.inFlight.Add(1)
		defer stats.inFlight.Add(-1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode < 400 {
			stats.succeeded.Add(1)
		} else {
			stats.failed.Add(1)
		}
	})
}

func MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
