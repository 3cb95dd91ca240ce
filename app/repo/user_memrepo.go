package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
)

type MemUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
}

var (
	_ UserRepository = (*MemUserRepo)(nil)
	_ UserRepository = (*UserRepo)(nil)
)

func NewMemUserRepo(users ...model.User) *MemUserRepo {
	r := &MemUserRepo{users: make(map[uuid.UUID]model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *MemUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username && u.IsActive {
			u := u
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemUserRepo) FindByUserID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok || !u.IsActive {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
