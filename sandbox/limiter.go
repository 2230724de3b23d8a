package sandbox

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter representa algo que pode decidir se uma ação é permitida agora.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: token, IP).
type LimiterStore interface {
	Get(key string) Limiter
}

// KeyedLimiters é um token bucket (x/time/rate) por chave, com limpeza
// periódica das chaves inativas.
type KeyedLimiters struct {
	mu           sync.Mutex
	entries      map[string]*limiterEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LimiterOption func(*KeyedLimiters)

func WithIdleTTL(d time.Duration) LimiterOption {
	return func(s *KeyedLimiters) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LimiterOption {
	return func(s *KeyedLimiters) { s.cleanupEvery = d }
}

func NewKeyedLimiters(rps float64, burst int, opts ...LimiterOption) *KeyedLimiters {
	s := &KeyedLimiters{
		entries:      make(map[string]*limiterEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *KeyedLimiters) RPS() float64 { return float64(s.rps) }
func (s *KeyedLimiters) Burst() int   { return s.burst }

// Get implementa LimiterStore.
func (s *KeyedLimiters) Get(key string) Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *KeyedLimiters) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *KeyedLimiters) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor limpa chaves inativas periodicamente até ctx encerrar.
func (s *KeyedLimiters) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
