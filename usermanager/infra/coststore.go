package infra

import (
	"container/list"
	"sync"
)

// CostStore é um mapa com teto de custo total.
//
// Cada entrada tem um custo informado por quem grava. Quando o total passa do
// teto, as entradas mais antigas saem inteiras até caber. Uma entrada sozinha
// acima do teto nem chega a ser guardada.
type CostStore[K comparable, V any] struct {
	mu      sync.Mutex
	limit   int64
	total   int64
	entries map[K]*list.Element
	order   *list.List
}

type costEntry[K comparable, V any] struct {
	key   K
	value V
	cost  int64
}

// NewCostStore cria o store. limit <= 0 desliga o teto.
func NewCostStore[K comparable, V any](limit int64) *CostStore[K, V] {
	return &CostStore[K, V]{
		limit:   limit,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

func (s *CostStore[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		return el.Value.(*costEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Set grava (ou substitui) a entrada. Devolve false se ela foi despejada.
func (s *CostStore[K, V]) Set(key K, value V, cost int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(key)
	if s.limit > 0 && cost > s.limit {
		return false
	}

	el := s.order.PushBack(&costEntry[K, V]{key: key, value: value, cost: cost})
	s.entries[key] = el
	s.total += cost

	for s.limit > 0 && s.total > s.limit {
		oldest := s.order.Front()
		s.removeLocked(oldest.Value.(*costEntry[K, V]).key)
	}
	return true
}

func (s *CostStore[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
}

func (s *CostStore[K, V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[K]*list.Element)
	s.order.Init()
	s.total = 0
}

func (s *CostStore[K, V]) Cost() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *CostStore[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *CostStore[K, V]) removeLocked(key K) {
	el, ok := s.entries[key]
	if !ok {
		return
	}
	s.total -= el.Value.(*costEntry[K, V]).cost
	s.order.Remove(el)
	delete(s.entries, key)
}
