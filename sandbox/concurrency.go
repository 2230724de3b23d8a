package sandbox

import (
	"context"
	"net/http"
	"time"
)

// SlotPool representa um recurso com capacidade finita.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. O release
// devolvido deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com capacidade `max`.
func NewChanPool(max int) SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// AcquireSlot tenta uma vaga em pool.
//   - timeout <= 0: espera até ctx encerrar
//   - timeout > 0: espera no máximo timeout
func AcquireSlot(ctx context.Context, pool SlotPool, timeout time.Duration) (func(), bool) {
	if pool == nil {
		return func() {}, true
	}
	if timeout <= 0 {
		return pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return pool.Acquire(acqCtx)
}

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
}

// Concurrency limita requisições simultâneas; sem vaga a tempo responde 503.
func Concurrency(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	pool := NewChanPool(opts.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := AcquireSlot(r.Context(), pool, opts.AcquireTimeout)
			if !ok {
				writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "server busy")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
