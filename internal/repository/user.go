// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"ripple/internal/cache"
	"ripple/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDFresh(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDFresh reads straight from the database, skipping the cache. Profile
// and password writers need it: the cached copy never carries the password
// hash, and saving a cache hit back would blank it.
func (r *userRepository) GetByIDFresh(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return err
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}
