package user

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-companion/backend/internal/model/user"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidTheme = errors.New("theme must be dark or light")
)

// Service keeps user profiles in process memory; they are lost on restart.
type Service struct {
	mu    sync.RWMutex
	users map[string]user.User
}

// NewService bootstraps an empty in-memory user store.
func NewService() *Service {
	return &Service{users: make(map[string]user.User)}
}

// Create stores the user under a freshly generated identifier.
func (s *Service) Create(_ context.Context, u user.User) (user.User, error) {
	if !u.Theme.Valid() {
		return user.User{}, ErrInvalidTheme
	}

	u.ID = uuid.NewString()

	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()

	return u, nil
}

// Get retrieves a user by identifier.
func (s *Service) Get(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, ErrUserNotFound
	}
	return u, nil
}

// UpdateTheme replaces the display theme of an existing user.
func (s *Service) UpdateTheme(_ context.Context, id string, theme user.Theme) (user.User, error) {
	if !theme.Valid() {
		return user.User{}, ErrInvalidTheme
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, ErrUserNotFound
	}
	u.Theme = theme
	s.users[id] = u
	return u, nil
}
