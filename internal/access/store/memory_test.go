package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certtrace/internal/access/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
)

type MemberStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestMemberStoreSuite(t *testing.T) {
	suite.Run(t, new(MemberStoreSuite))
}

func (s *MemberStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func member(role models.Role, hex string) models.Member {
	return models.Member{
		Role:      role,
		Actor:     domain.MustParseAddress(hex),
		GrantedBy: domain.MustParseAddress("0x00000000000000000000000000000000000000ad"),
		GrantedAt: time.Now(),
	}
}

func (s *MemberStoreSuite) TestAddAndRemove() {
	m := member(models.RoleIssuer, "0x0000000000000000000000000000000000000001")

	s.Run("adds once", func() {
		s.Require().NoError(s.store.Add(s.ctx, m))
		s.ErrorIs(s.store.Add(s.ctx, m), sentinel.ErrAlreadyUsed)
		ok, err := s.store.Has(s.ctx, models.RoleIssuer, m.Actor)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("roles are independent", func() {
		ok, err := s.store.Has(s.ctx, models.RoleOperator, m.Actor)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("removes once", func() {
		s.Require().NoError(s.store.Remove(s.ctx, models.RoleIssuer, m.Actor))
		s.ErrorIs(s.store.Remove(s.ctx, models.RoleIssuer, m.Actor), sentinel.ErrNotFound)
	})
}

func (s *MemberStoreSuite) TestListKeepsGrantOrder() {
	first := member(models.RoleOperator, "0x0000000000000000000000000000000000000003")
	second := member(models.RoleOperator, "0x0000000000000000000000000000000000000001")
	third := member(models.RoleOperator, "0x0000000000000000000000000000000000000002")

	s.Require().NoError(s.store.Add(s.ctx, first))
	added, err := s.store.AddBatch(s.ctx, []models.Member{second, first, third})
	s.Require().NoError(err)
	s.Len(added, 2)

	listed, err := s.store.List(s.ctx, models.RoleOperator)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(first.Actor, listed[0].Actor)
	s.Equal(second.Actor, listed[1].Actor)
	s.Equal(third.Actor, listed[2].Actor)
}
