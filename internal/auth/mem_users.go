package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemUsers keeps users in process memory; used by STORE_DRIVER=memory and tests.
type MemUsers struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

var _ UserStore = (*MemUsers)(nil)

func NewMemUsers() *MemUsers {
	return &MemUsers{byID: map[string]User{}, byEmail: map[string]string{}}
}

func (m *MemUsers) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := m.byEmail[email]; ok {
		return ErrEmailTaken
	}
	now := time.Now().UTC()
	u.Email, u.CreatedAt, u.UpdatedAt = email, now, now
	m.byID[u.ID] = *u
	m.byEmail[email] = u.ID
	return nil
}

func (m *MemUsers) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := m.byID[id]
	return &u, nil
}

func (m *MemUsers) GetUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	return m.update(id, func(u *User) { u.PasswordHash = hash })
}

func (m *MemUsers) UpdateRole(ctx context.Context, id string, role Role) error {
	return m.update(id, func(u *User) { u.Role = role })
}

func (m *MemUsers) update(id string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	m.byID[id] = u
	return nil
}
