package tracing

import (
	"math/rand/v2"
	"net/http"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
)

// Sampler decides which requests get a root span.
type Sampler struct {
	enabled bool
	rate    float64
}

// NewSampler traces a rate fraction of requests when enabled. Rates are
// clamped to [0, 1].
func NewSampler(enabled bool, rate float64) *Sampler {
	return &Sampler{enabled: enabled, rate: min(max(rate, 0), 1)}
}

// Sample reports whether the next request should be traced.
func (s *Sampler) Sample() bool {
	if s == nil || !s.enabled || s.rate == 0 {
		return false
	}
	return s.rate >= 1 || rand.Float64() < s.rate
}

// Middleware starts a root span for sampled requests and logs the trace
// when the handler returns. The trace ID is the request ID when one is set.
// Handlers add children with StartChildSpan; unsampled requests carry no
// span, so those children are created but never logged.
func Middleware(s *Sampler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Sample() {
				next.ServeHTTP(w, r)
				return
			}
			traceID := logger.RequestID(r.Context())
			if traceID == "" {
				traceID = uuid.NewString()
			}
			ctx, span := StartSpan(r.Context(), r.Method+" "+r.URL.Path, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
			span.End()
			span.Log(ctx)
		})
	}
}
