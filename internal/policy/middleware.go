package policy

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"mediglot/pkg/requestcontext"
)

// Middleware assigns each request a cryptographically random request ID,
// records the pipeline entry time, and stamps the policy headers on the
// response at first write so X-Processing-Time reflects real elapsed time.
// Headers are present on every outcome, success or failure.
func Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()

			ctx := r.Context()
			ctx = requestcontext.WithRequestID(ctx, requestID)
			ctx = requestcontext.WithStartTime(ctx, start)

			hw := &headerWriter{
				ResponseWriter: w,
				policy:         p,
				requestID:      requestID,
				start:          start,
			}
			next.ServeHTTP(hw, r.WithContext(ctx))

			// A handler that never wrote still owes the caller headers.
			hw.stamp()
		})
	}
}

// headerWriter defers header stamping to the moment the status line goes
// out, the last point where headers can still be set.
type headerWriter struct {
	http.ResponseWriter
	policy    Policy
	requestID string
	start     time.Time
	stamped   bool
}

func (w *headerWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	w.policy.Compute(w.requestID, time.Since(w.start)).Apply(w.Header())
}

func (w *headerWriter) WriteHeader(status int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}
