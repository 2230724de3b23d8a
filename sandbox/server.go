package sandbox

import (
	"context"
	"net/http"
	"time"

	"user-manager/config"
	"user-manager/usermanager/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Token string

	RPS        float64
	Burst      int
	RetryAfter time.Duration

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	Stats domain.StatsStore
	Log   logrus.FieldLogger
}

func OptionsFromConfig(c config.SandboxConfig) Options {
	return Options{
		Token:              c.Token,
		RPS:                c.RPS,
		Burst:              c.Burst,
		RetryAfter:         c.RetryAfter,
		ConcurrencyMax:     c.ConcurrencyMax,
		ConcurrencyTimeout: c.ConcurrencyTimeout,
	}
}

// Server é a API com as camadas de proteção na frente.
type Server struct {
	API      *API
	Limiters *KeyedLimiters
	handler  http.Handler
}

// NewServer monta o handler completo. O janitor dos limiters para quando ctx encerrar.
// RPS <= 0 desliga o throttle.
func NewServer(ctx context.Context, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{API: NewAPI(opts.Token, WithAPILogger(log))}

	h := http.Handler(s.API)
	h = Concurrency(ConcurrencyOptions{
		Max:            opts.ConcurrencyMax,
		AcquireTimeout: opts.ConcurrencyTimeout,
	})(h)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.Limiters = NewKeyedLimiters(opts.RPS, burst)
		s.Limiters.StartJanitor(ctx)
		h = Throttle(ThrottleOptions{
			Store:               s.Limiters,
			Stats:               opts.Stats,
			KeyHeader:           domain.HeaderAPIToken,
			RetryAfter:          opts.RetryAfter,
			AddRateLimitHeaders: true,
		})(h)
	}
	s.handler = requestID(log)(h)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestID(log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			log.WithFields(logrus.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"elapsed":    time.Since(start),
			}).Debug("sandbox request")
		})
	}
}
