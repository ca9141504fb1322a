package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bossnet/party-signup/internal/model"
	"github.com/bossnet/party-signup/internal/requestmeta"
)

// Policy is a ceiling of Limit requests per address within Window.
type Policy struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string
}

// GeneralPolicy applies to the whole API surface.
func GeneralPolicy(limit int, window time.Duration) Policy {
	return Policy{
		Name:    "general",
		Limit:   limit,
		Window:  window,
		Message: "Zu viele Anfragen. Bitte warte " + humanWindow(window) + ".",
	}
}

// RegistrationPolicy applies to the registration endpoint only.
func RegistrationPolicy(limit int, window time.Duration) Policy {
	return Policy{
		Name:    "register",
		Limit:   limit,
		Window:  window,
		Message: "Zu viele Anmeldungen. Bitte warte " + humanWindow(window) + ".",
	}
}

// RejectFunc is notified about every rejected request.
type RejectFunc func(policy string)

// Limiter enforces one Policy on top of a shared Store.
type Limiter struct {
	store    *Store
	policy   Policy
	logger   *slog.Logger
	onReject RejectFunc
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithRejectHook registers fn to be called on every rejection.
func WithRejectHook(fn RejectFunc) Option {
	return func(l *Limiter) { l.onReject = fn }
}

// New creates a Limiter for policy backed by store.
func New(store *Store, policy Policy, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		policy: policy,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Check counts one request from ip against the policy.
func (l *Limiter) Check(ip string) Result {
	return l.store.Allow(l.policy.Name+":"+ip, l.policy.Limit, l.policy.Window)
}

// Middleware rejects requests over the policy's ceiling with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := requestmeta.FromContext(r.Context()).IPAddress
		if ip == "" {
			ip = requestmeta.PeerIP(r)
		}

		result := l.Check(ip)
		addRateLimitHeaders(w, result, l.store.now())

		if !result.Allowed {
			l.logger.WarnContext(r.Context(), "rate limit exceeded",
				"policy", l.policy.Name,
				"ip_prefix", requestmeta.Anonymize(ip),
				"retry_after", result.RetryAfter.Round(time.Second),
			)
			if l.onReject != nil {
				l.onReject(l.policy.Name)
			}
			writeRateLimitExceeded(w, result, l.policy.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result Result, now time.Time) {
	w.Header().Set("RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(result.ResetAt.Sub(now))))
}

func writeRateLimitExceeded(w http.ResponseWriter, result Result, msg string) {
	w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(result.RetryAfter)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: msg})
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func humanWindow(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "eine Stunde"
		}
		return strconv.Itoa(int(d/time.Hour)) + " Stunden"
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "eine Minute"
		}
		return strconv.Itoa(int(d/time.Minute)) + " Minuten"
	default:
		return strconv.Itoa(ceilSeconds(d)) + " Sekunden"
	}
}
