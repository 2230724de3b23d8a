package infra

import (
	"context"
	"sync"

	"user-manager/usermanager/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore conta decisões em memória, por operação, estágio e
// (opcionalmente) por chave.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu          sync.Mutex
	total       Counters
	byOperation map[string]Counters
	byStage     map[string]Counters
	byKey       map[string]Counters

	trackKeys bool
}

var _ domain.StatsStore = (*MemoryStatsStore)(nil)

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byOperation: make(map[string]Counters),
		byStage:     make(map[string]Counters),
		byKey:       make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	bump(s.byOperation, ev.Operation, ev.Allowed)
	bump(s.byStage, ev.Stage, ev.Allowed)
	if s.trackKeys {
		bump(s.byKey, string(ev.Key), ev.Allowed)
	}
	return nil
}

func bump(m map[string]Counters, k string, allowed bool) {
	if k == "" {
		return
	}
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByOperation() map[string]Counters {
	return s.snapshot(func() map[string]Counters { return s.byOperation })
}

func (s *MemoryStatsStore) ByStage() map[string]Counters {
	return s.snapshot(func() map[string]Counters { return s.byStage })
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	return s.snapshot(func() map[string]Counters { return s.byKey })
}

func (s *MemoryStatsStore) snapshot(pick func() map[string]Counters) map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := pick()
	out := make(map[string]Counters, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
