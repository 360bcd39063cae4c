package user

import (
	"context"
	"sync"

	"clinic/internal/auth/models"
	"clinic/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in a map. Used when DATABASE_URL is unset.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*models.User)}
}

// Create stores user unless the username is taken.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return sentinel.ErrConflict
	}
	u := *user
	s.users[user.Username] = &u
	return nil
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *u
	return &out, nil
}
