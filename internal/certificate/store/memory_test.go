package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certtrace/internal/certificate/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
)

type CertificateStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestCertificateStoreSuite(t *testing.T) {
	suite.Run(t, new(CertificateStoreSuite))
}

func (s *CertificateStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

var (
	producerA = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	producerB = domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

func newCert(id uint64, batch string, owner domain.Address) *models.Certificate {
	return &models.Certificate{
		ID:           domain.CertificateID(id),
		BatchID:      batch,
		Owner:        owner,
		Quantity:     10,
		Unit:         "kg",
		DocumentsCID: "bafydocs",
		MetadataCID:  "bafymeta",
		ProductType:  "honey",
		IssuedAt:     time.Now(),
		Active:       true,
	}
}

func (s *CertificateStoreSuite) TestCreateEnforcesSequenceAndBatch() {
	s.Run("first id must be 1", func() {
		s.ErrorIs(s.store.Create(s.ctx, newCert(2, "L-0", producerA)), sentinel.ErrConflict)
	})

	s.Run("creates in order", func() {
		s.Require().NoError(s.store.Create(s.ctx, newCert(1, "L-1", producerA)))
		s.Require().NoError(s.store.Create(s.ctx, newCert(2, "L-2", producerB)))
		n, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(2), n)
	})

	s.Run("batch ids are permanently unique", func() {
		s.Require().NoError(s.store.SetActive(s.ctx, 1, false))
		s.ErrorIs(s.store.Create(s.ctx, newCert(3, "L-1", producerB)), sentinel.ErrAlreadyUsed)
	})
}

func (s *CertificateStoreSuite) TestLookups() {
	s.Require().NoError(s.store.Create(s.ctx, newCert(1, "L-1", producerA)))
	s.Require().NoError(s.store.Create(s.ctx, newCert(2, "L-2", producerB)))
	s.Require().NoError(s.store.Create(s.ctx, newCert(3, "L-3", producerA)))

	s.Run("by id", func() {
		cert, err := s.store.FindByID(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal("L-2", cert.BatchID)

		_, err = s.store.FindByID(s.ctx, 4)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByID(s.ctx, 0)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("by batch", func() {
		id, err := s.store.FindIDByBatch(s.ctx, "L-3")
		s.Require().NoError(err)
		s.Equal(domain.CertificateID(3), id)

		_, err = s.store.FindIDByBatch(s.ctx, "L-9")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("by owner in issuance order", func() {
		ids, err := s.store.ListIDsByOwner(s.ctx, producerA)
		s.Require().NoError(err)
		s.Equal([]domain.CertificateID{1, 3}, ids)

		ids, err = s.store.ListIDsByOwner(s.ctx, domain.MustParseAddress("0x00000000000000000000000000000000000000c3"))
		s.Require().NoError(err)
		s.Empty(ids)
	})

	s.Run("returned records are copies", func() {
		cert, err := s.store.FindByID(s.ctx, 1)
		s.Require().NoError(err)
		cert.Owner = producerB
		again, err := s.store.FindByID(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(producerA, again.Owner)
	})
}
