package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// idSegment matches path segments that are IDs (UUIDs, hashes, IPs) so paths
// collapse to a bounded label set.
var idSegment = regexp.MustCompile(`/(api/(?:projects|access))/[^/]+`)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Middleware records request count and latency for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		startTime := time.Now()
		next.ServeHTTP(recorder, r)

		duration := time.Since(startTime).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(recorder.statusCode)

		RecordRequest(r.Method, path, status)
		RecordRequestDuration(r.Method, path, status, duration)
	})
}

// normalizePath collapses resource IDs so each route yields one label value.
// Examples:
//
//	/api/projects/3f6b... -> /api/projects/:id
//	/api/access/1.2.3.4   -> /api/access/:id
func normalizePath(path string) string {
	return idSegment.ReplaceAllString(path, "/$1/:id")
}
