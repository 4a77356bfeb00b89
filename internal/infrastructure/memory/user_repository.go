package memory

import (
	"context"
	"strings"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
)

// UserRepository はユーザーリポジトリのインメモリ実装
type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[user.NormalizeEmail(email)]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return copyUser(s.users[id]), nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" {
		return user.ErrEmailRequired
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := user.NormalizeEmail(u.Email)
	if _, ok := s.emails[key]; ok {
		return user.ErrEmailAlreadyTaken
	}
	s.nextUserID++
	u.ID = s.nextUserID
	s.users[u.ID] = copyUser(u)
	s.emails[key] = u.ID
	return nil
}

var _ user.Repository = (*UserRepository)(nil)
