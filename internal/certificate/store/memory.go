// Package store persists certificates and their batch and owner indexes.
package store

import (
	"context"
	"sync"

	"certtrace/internal/certificate/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
)

// InMemory keeps certificates in issuance order. IDs are positions + 1.
type InMemory struct {
	mu      sync.RWMutex
	certs   []models.Certificate
	byBatch map[string]domain.CertificateID
	byOwner map[domain.Address][]domain.CertificateID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byBatch: make(map[string]domain.CertificateID),
		byOwner: make(map[domain.Address][]domain.CertificateID),
	}
}

func (s *InMemory) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.certs)), nil
}

// Create stores cert. Its ID must be the next in sequence and its batch
// identifier must never have been used.
func (s *InMemory) Create(ctx context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(cert.ID) != uint64(len(s.certs))+1 {
		return sentinel.ErrConflict
	}
	if _, taken := s.byBatch[cert.BatchID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.certs = append(s.certs, *cert)
	s.byBatch[cert.BatchID] = cert.ID
	s.byOwner[cert.Owner] = append(s.byOwner[cert.Owner], cert.ID)

	batch, owner := cert.BatchID, cert.Owner
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.certs = s.certs[:len(s.certs)-1]
		delete(s.byBatch, batch)
		ids := s.byOwner[owner]
		if len(ids) <= 1 {
			delete(s.byOwner, owner)
		} else {
			s.byOwner[owner] = ids[:len(ids)-1]
		}
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || uint64(id) > uint64(len(s.certs)) {
		return nil, sentinel.ErrNotFound
	}
	cert := s.certs[id-1]
	return &cert, nil
}

func (s *InMemory) FindIDByBatch(_ context.Context, batchID string) (domain.CertificateID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byBatch[batchID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return id, nil
}

func (s *InMemory) ListIDsByOwner(_ context.Context, owner domain.Address) ([]domain.CertificateID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byOwner[owner]
	out := make([]domain.CertificateID, len(ids))
	copy(out, ids)
	return out, nil
}

func (s *InMemory) SetActive(ctx context.Context, id domain.CertificateID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || uint64(id) > uint64(len(s.certs)) {
		return sentinel.ErrNotFound
	}
	previous := s.certs[id-1].Active
	s.certs[id-1].Active = active
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.certs[id-1].Active = previous
	})
	return nil
}
