package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citymarket/gateward/pkg/auth"
	"github.com/citymarket/gateward/pkg/httputil"
	"github.com/citymarket/gateward/pkg/observability"
	"github.com/citymarket/gateward/pkg/ratelimit"
)

// Policy describes one named fixed-window rate limit. Policies are
// immutable after startup and safely shared across concurrent requests.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int

	// Message and StatusCode customize the rejection. Zero values fall
	// back to a generic message and 429.
	Message    string
	StatusCode int

	// KeyFunc derives the logical counter key from the request. It runs
	// after the authenticator, so user-keyed policies can read the
	// authorization context.
	KeyFunc func(r *http.Request) string

	// Skip exempts a request entirely: no count, no headers.
	Skip func(r *http.Request) bool

	// SkipSuccessful and SkipFailed are carried from upstream policy
	// definitions but are inert: counting happens before the handler
	// runs, so the response outcome cannot retroactively uncount a
	// request. They drive bookkeeping metrics only.
	SkipSuccessful bool
	SkipFailed     bool

	// OnLimitReached runs once per rejected request, before the 429 is
	// written.
	OnLimitReached func(r *http.Request)

	// OnOutcome observes the final response status of every request the
	// policy counted and admitted.
	OnOutcome func(r *http.Request, status int)
}

// rateLimitBody is the 429 rejection payload. RetryAfter is whole
// seconds, rounded up so clients never retry early.
type rateLimitBody struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	Code       string `json:"code"`
}

// Limiter applies rate limit policies backed by a shared counter cache.
// Counter cache errors admit the request: rate limiting fails open,
// unlike authentication.
type Limiter struct {
	cache   ratelimit.CounterCache
	log     *logrus.Logger
	metrics *observability.Metrics
}

func NewLimiter(cache ratelimit.CounterCache, log *logrus.Logger, metrics *observability.Metrics) *Limiter {
	return &Limiter{cache: cache, log: log, metrics: metrics}
}

// Middleware returns the handler wrapper enforcing the given policy
func (l *Limiter) Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.Skip != nil && p.Skip(r) {
				l.metrics.RateLimitDecisions.WithLabelValues(p.Name, "skipped").Inc()
				next.ServeHTTP(w, r)
				return
			}

			key := p.Name
			if p.KeyFunc != nil {
				key = p.Name + ":" + p.KeyFunc(r)
			}

			res, err := l.cache.CheckAndIncrement(r.Context(), key, p.Window, p.MaxRequests)
			if err != nil {
				l.log.WithError(err).WithField("policy", p.Name).Warn("counter cache failure, admitting request")
				l.metrics.CounterCacheFailures.Inc()
				next.ServeHTTP(w, r)
				return
			}

			// Counted requests carry the quota headers whether or not
			// they are admitted.
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", res.ResetTime.Format(time.RFC3339))

			if !res.Allowed {
				l.metrics.RateLimitDecisions.WithLabelValues(p.Name, "limited").Inc()
				if p.OnLimitReached != nil {
					p.OnLimitReached(r)
				}
				l.reject(w, p, res)
				return
			}

			l.metrics.RateLimitDecisions.WithLabelValues(p.Name, "allowed").Inc()

			if p.OnOutcome == nil && !p.SkipSuccessful && !p.SkipFailed {
				next.ServeHTTP(w, r)
				return
			}

			rec := httputil.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)
			l.observeOutcome(p, r, rec.Status)
		})
	}
}

func (l *Limiter) reject(w http.ResponseWriter, p Policy, res ratelimit.Result) {
	status := p.StatusCode
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	message := p.Message
	if message == "" {
		message = "Too many requests, please try again later."
	}

	retryAfter := int((time.Until(res.ResetTime) + time.Second - 1) / time.Second)
	if retryAfter < 0 {
		retryAfter = 0
	}

	_ = httputil.WriteJSON(w, status, rateLimitBody{
		Success:    false,
		Error:      "Rate limit exceeded",
		Message:    message,
		RetryAfter: retryAfter,
		Code:       string(auth.CodeRateLimitExceeded),
	})
}

// observeOutcome reports the admitted request's final status to the
// policy hook and records which responses the inert skip flags would
// have exempted from counting.
func (l *Limiter) observeOutcome(p Policy, r *http.Request, status int) {
	if p.OnOutcome != nil {
		p.OnOutcome(r, status)
	}
	succeeded := status < 400
	if p.SkipSuccessful && succeeded {
		l.metrics.RateLimitExemptOutcomes.WithLabelValues(p.Name, "successful").Inc()
	}
	if p.SkipFailed && !succeeded {
		l.metrics.RateLimitExemptOutcomes.WithLabelValues(p.Name, "failed").Inc()
	}
}

// ClientIP resolves the caller's address, preferring the first entry of
// X-Forwarded-For, then X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPKey keys the counter by client IP. The limiter prefixes the policy
// name, so two policies sharing IPKey still count independently.
func IPKey(r *http.Request) string {
	return ClientIP(r)
}

// UserKey keys the counter by authenticated user id, falling back to
// client IP for anonymous requests.
func UserKey(r *http.Request) string {
	if authCtx := GetAuthContext(r); authCtx != nil {
		return fmt.Sprintf("user:%s", authCtx.ID)
	}
	return fmt.Sprintf("ip:%s", ClientIP(r))
}
