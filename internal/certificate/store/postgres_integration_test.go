//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certtrace/internal/certificate/models"
	"certtrace/internal/certificate/store"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "honey_payloads", "certificates"))
}

var owner = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")

func newCert(id uint64, batch string) *models.Certificate {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Certificate{
		ID:           domain.CertificateID(id),
		BatchID:      batch,
		Owner:        owner,
		ProducerName: "Apiario Sur",
		Region:       "Biobio",
		Quantity:     120,
		Unit:         "kg",
		DocumentsCID: "bafydocs",
		MetadataCID:  "bafymeta",
		ProductType:  "honey",
		HarvestedAt:  now.Add(-48 * time.Hour),
		IssuedAt:     now,
		IssuedBy:     domain.MustParseAddress("0x00000000000000000000000000000000000000ad"),
		Active:       true,
	}
}

func (s *PostgresStoreSuite) TestRoundTripAndIndexes() {
	ctx := context.Background()
	want := newCert(1, "L-1")
	s.Require().NoError(s.store.Create(ctx, want))

	got, err := s.store.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.Equal(want.BatchID, got.BatchID)
	s.Equal(want.Owner, got.Owner)
	s.Equal(want.IssuedBy, got.IssuedBy)
	s.Equal(want.Quantity, got.Quantity)
	s.True(want.IssuedAt.Equal(got.IssuedAt))

	id, err := s.store.FindIDByBatch(ctx, "L-1")
	s.Require().NoError(err)
	s.Equal(domain.CertificateID(1), id)

	ids, err := s.store.ListIDsByOwner(ctx, owner)
	s.Require().NoError(err)
	s.Equal([]domain.CertificateID{1}, ids)
}

func (s *PostgresStoreSuite) TestUniquenessAndSequence() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newCert(1, "L-1")))

	s.ErrorIs(s.store.Create(ctx, newCert(2, "L-1")), sentinel.ErrAlreadyUsed)
	s.ErrorIs(s.store.Create(ctx, newCert(5, "L-5")), sentinel.ErrConflict)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), n)
}

func (s *PostgresStoreSuite) TestSetActive() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newCert(1, "L-1")))
	s.Require().NoError(s.store.SetActive(ctx, 1, false))

	got, err := s.store.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.False(got.Active)

	s.ErrorIs(s.store.SetActive(ctx, 9, false), sentinel.ErrNotFound)
}
