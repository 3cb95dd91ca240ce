package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByUserID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type UserRepo struct {
	DB *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{
		DB: db,
	}
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Preload("Role").
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding user by username")
	}
	return &user, nil
}

func (r *UserRepo) FindByUserID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Preload("Role").
		Where("id = ? AND is_active = ?", id, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding user by id")
	}
	return &user, nil
}
