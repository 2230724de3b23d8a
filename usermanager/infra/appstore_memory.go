package infra

import (
	"context"
	"sync"

	"user-manager/usermanager/domain"
)

// MemoryAppStore guarda o app id só durante o processo. Útil para testes.
type MemoryAppStore struct {
	mu    sync.Mutex
	appID string
	set   bool
}

var _ domain.AppStore = (*MemoryAppStore)(nil)

func NewMemoryAppStore() *MemoryAppStore {
	return &MemoryAppStore{}
}

func (s *MemoryAppStore) LoadAppID(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID, s.set, nil
}

func (s *MemoryAppStore) StoreAppID(_ context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appID, s.set = appID, true
	return nil
}

func (s *MemoryAppStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appID, s.set = "", false
	return nil
}

func (s *MemoryAppStore) Close() error { return nil }
