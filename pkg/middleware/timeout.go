package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
)

// Timeout puts a deadline on the request context. Handlers run on the
// serving goroutine and are expected to watch ctx; if one returns after the
// deadline without writing anything, the client gets a 504 JSON error.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &touchWriter{ResponseWriter: w}
			next.ServeHTTP(tw, r.WithContext(ctx))

			if tw.touched || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}
			logger.FromContext(ctx).Warn("request timed out",
				"method", r.Method,
				"path", r.URL.Path,
				"timeout", timeout,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGatewayTimeout)
			_, _ = w.Write([]byte(`{"error":"request timeout"}`))
		})
	}
}

// touchWriter notes whether the handler started a response.
type touchWriter struct {
	http.ResponseWriter
	touched bool
}

func (tw *touchWriter) WriteHeader(code int) {
	tw.touched = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *touchWriter) Write(b []byte) (int, error) {
	tw.touched = true
	return tw.ResponseWriter.Write(b)
}

func (tw *touchWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
