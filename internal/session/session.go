// Package session keeps the per-user list of recently shown recommendations.
// The list is advisory: concurrent writers race and the last one wins.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store remembers which recommendations a user has already been shown.
type Store interface {
	Push(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error
	Recent(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// MemoryStore is the single-process fallback used when no redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	limit int
	lists map[uuid.UUID][]uuid.UUID
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 20
	}
	return &MemoryStore{limit: limit, lists: make(map[uuid.UUID][]uuid.UUID)}
}

func (s *MemoryStore) Push(_ context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[userID]
	for _, id := range ids {
		list = append([]uuid.UUID{id}, removeID(list, id)...)
	}
	if len(list) > s.limit {
		list = list[:s.limit]
	}
	s.lists[userID] = list
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.lists[userID]...), nil
}

func removeID(list []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Contains reports whether id appears in list.
func Contains(list []uuid.UUID, id uuid.UUID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
