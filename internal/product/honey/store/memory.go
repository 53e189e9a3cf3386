// Package store persists honey payloads and per-tier issuance counters.
package store

import (
	"context"
	"slices"
	"sync"

	"certtrace/internal/product/honey"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
)

type InMemory struct {
	mu       sync.RWMutex
	payloads map[domain.CertificateID]honey.Payload
	counters map[honey.Tier]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		payloads: make(map[domain.CertificateID]honey.Payload),
		counters: make(map[honey.Tier]uint64),
	}
}

func (s *InMemory) Save(ctx context.Context, id domain.CertificateID, payload honey.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payloads[id]; exists {
		return sentinel.ErrAlreadyUsed
	}
	payload.Certifications = slices.Clone(payload.Certifications)
	s.payloads[id] = payload
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.payloads, id)
	})
	return nil
}

func (s *InMemory) Find(_ context.Context, id domain.CertificateID) (*honey.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payloads[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p.Certifications = slices.Clone(p.Certifications)
	return &p, nil
}

func (s *InMemory) IncrementTier(ctx context.Context, tier honey.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[tier]++
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.counters[tier]--
	})
	return nil
}

func (s *InMemory) TierCount(_ context.Context, tier honey.Tier) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[tier], nil
}
