package userstore

import (
	"context"
	"sync"

	"github.com/realitycheck/backend/internal/domain"
)

// MemoryStore keeps users in process memory. Accounts are lost on restart.
type MemoryStore struct {
	mutex   sync.RWMutex
	byID    map[string]*domain.StoredUser
	byEmail map[string]string
}

// NewMemoryStore creates an empty in-memory user store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*domain.StoredUser),
		byEmail: make(map[string]string),
	}
}

// Create stores a new user; the email must not already exist
func (s *MemoryStore) Create(ctx context.Context, user *domain.StoredUser) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return domain.ErrEmailTaken
	}

	stored := *user
	s.byID[user.ID] = &stored
	s.byEmail[user.Email] = user.ID
	return nil
}

// FindByEmail looks a user up by exact email
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*domain.StoredUser, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := *s.byID[id]
	return &user, nil
}

// FindByID looks a user up by id
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*domain.StoredUser, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// Delete removes a user; deleting an unknown id is not an error
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if user, ok := s.byID[id]; ok {
		delete(s.byEmail, user.Email)
		delete(s.byID, id)
	}
	return nil
}
