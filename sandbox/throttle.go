package sandbox

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"user-manager/usermanager/domain"
)

type KeyFunc func(r *http.Request) string

type ThrottleOptions struct {
	Store               LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

// Decision é o resultado de uma consulta ao limiter.
type Decision struct {
	Allowed bool
	// RetryAfter vai no header Retry-After quando bloquear.
	RetryAfter time.Duration
}

// Decide consulta o limiter da chave. Sem store (ou sem limiter) tudo passa.
func Decide(store LimiterStore, key string, retryAfter time.Duration) Decision {
	if store == nil {
		return Decision{Allowed: true}
	}
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	lim := store.Get(key)
	if lim == nil || lim.Allow() {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Throttle limita requisições por chave e responde 429 no formato de erro da plataforma.
func Throttle(opts ThrottleOptions) func(next http.Handler) http.Handler {
	if opts.RetryAfter == 0 {
		opts.RetryAfter = time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", strconv.FormatFloat(ri.RPS(), 'f', -1, 64))
					w.Header().Set("X-RateLimit-Burst", strconv.Itoa(ri.Burst()))
				}
			}

			dec := Decide(opts.Store, key, opts.RetryAfter)
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:       domain.Key(key),
					Allowed:   dec.Allowed,
					Stage:     domain.StageThrottle,
					Operation: r.Method + " " + r.URL.Path,
					At:        time.Now(),
				})
			}
			if !dec.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(dec.RetryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
