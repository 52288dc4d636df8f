package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"crimewatch/internal/ratelimit/metrics"
	"crimewatch/pkg/platform/httputil"
	"crimewatch/pkg/requestcontext"
)

type Middleware struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// New limits each submitter to limit requests per window. A limit of zero
// or less disables the check.
func New(store Store, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type exceededResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	RetryAfter int       `json:"retry_after"`
	ResetAt    time.Time `json:"reset_at"`
}

// PerSubmitter keys the window on the authenticated submitter, so it must
// run after auth. Store failures let the request through.
func (m *Middleware) PerSubmitter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		submitterID := requestcontext.SubmitterID(ctx)
		if submitterID.IsNil() {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.store.Allow(ctx, "submit:"+submitterID.String(), m.limit, m.window)
		if err != nil {
			m.metrics.IncrementCheckError()
			m.logger.ErrorContext(ctx, "failed to check submission rate limit",
				"error", err,
				"submitter_id", submitterID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		if result.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		m.metrics.IncrementExceeded()
		retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
			Error:      "rate_limit_exceeded",
			Message:    "Too many reports submitted. Please try again later.",
			RetryAfter: retryAfter,
			ResetAt:    result.ResetAt,
		})
	})
}
