// Package store persists role memberships.
package store

import (
	"context"
	"slices"
	"sync"

	"certtrace/internal/access/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
)

type entry struct {
	member   models.Member
	position uint64
}

// InMemory keeps role sets in maps. Members list in grant order.
type InMemory struct {
	mu      sync.RWMutex
	members map[models.Role]map[domain.Address]entry
	next    uint64
}

func NewInMemory() *InMemory {
	return &InMemory{members: make(map[models.Role]map[domain.Address]entry)}
}

func (s *InMemory) Add(ctx context.Context, member models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(ctx, member)
}

// AddBatch adds every member not already present and returns those added.
func (s *InMemory) AddBatch(ctx context.Context, members []models.Member) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := make([]models.Member, 0, len(members))
	for _, m := range members {
		if err := s.addLocked(ctx, m); err != nil {
			continue
		}
		added = append(added, m)
	}
	return added, nil
}

func (s *InMemory) addLocked(ctx context.Context, member models.Member) error {
	set, ok := s.members[member.Role]
	if !ok {
		set = make(map[domain.Address]entry)
		s.members[member.Role] = set
	}
	if _, exists := set[member.Actor]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.next++
	set[member.Actor] = entry{member: member, position: s.next}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.members[member.Role], member.Actor)
	})
	return nil
}

func (s *InMemory) Remove(ctx context.Context, role models.Role, actor domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.members[role]
	removed, ok := set[actor]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(set, actor)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.members[role][actor] = removed
	})
	return nil
}

func (s *InMemory) Has(_ context.Context, role models.Role, actor domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[role][actor]
	return ok, nil
}

func (s *InMemory) List(_ context.Context, role models.Role) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]entry, 0, len(s.members[role]))
	for _, e := range s.members[role] {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.position < b.position:
			return -1
		case a.position > b.position:
			return 1
		}
		return 0
	})
	out := make([]models.Member, len(entries))
	for i, e := range entries {
		out[i] = e.member
	}
	return out, nil
}
