package service

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenStore is the in-process fallback when no redis is configured.
// Revocations then only survive as long as the process, which is acceptable
// for single-node deployments.
type MemoryTokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}
