package infra

import (
	"time"

	"user-manager/usermanager/domain"

	"golang.org/x/time/rate"
)

// Gate libera no máximo uma entrada por intervalo (token bucket com burst 1).
//
// A primeira entrada é sempre admitida. Uma entrada rejeitada não consome nada.
type Gate struct {
	lim      *rate.Limiter
	interval time.Duration
}

var _ domain.Gate = (*Gate)(nil)

// NewGate cria o gate. interval <= 0 desliga o limite.
func NewGate(interval time.Duration) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{
		lim:      rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

func (g *Gate) Interval() time.Duration { return g.interval }

// Enter consome a vaga do intervalo atual ou devolve domain.ErrRateLimited.
func (g *Gate) Enter() error {
	if g.lim.Allow() {
		return nil
	}
	return domain.ErrRateLimited
}

// TryRun executa action em outra goroutine quando admitido.
// A decisão é síncrona; a ação nunca roda na goroutine de quem chamou.
func (g *Gate) TryRun(action func()) error {
	if err := g.Enter(); err != nil {
		return err
	}
	go action()
	return nil
}
