package middleware

import (
	"net/http"
	"time"

	"costsim/pkg/logging"
)

// responseWriter wraps http.ResponseWriter to capture the status code
// and response size for the access log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logging records method, path, status, latency and response size for
// every request using the structured logger.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		logging.L().Info("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", wrapped.statusCode),
			logging.Latency(float64(elapsed)/float64(time.Millisecond)),
			logging.String("remote_addr", r.RemoteAddr),
			logging.Int64("response_bytes", wrapped.written))
	})
}
