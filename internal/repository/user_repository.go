package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cdm/internal/db"
	apperrors "cdm/internal/errors"
	"cdm/internal/model"
)

// UserRepository defines persistence operations on users.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	UpdateProfile(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error)
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
	UpdateAvatarURL(ctx context.Context, id uint, url string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return apperrors.ErrEmailAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile writes the profile-owned columns of user (username, nickname,
// preferences, updated_at). Avatar and login columns are left to their own writers.
// A unique violation can only come from username here.
func (r *userRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"username":    nullable(user.Username),
			"nickname":    user.Nickname,
			"preferences": nullable(user.Preferences),
			"updated_at":  user.UpdatedAt,
		})
	if res.Error != nil {
		if db.IsDuplicateKey(res.Error) {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("update profile %d: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return count > 0, nil
}

// ExistsByUsername reports whether a user other than excludeID holds username.
// An excludeID of zero excludes nobody.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users by username: %w", err)
	}
	return count > 0, nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_login_at": at, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("update last login %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpdateAvatarURL(ctx context.Context, id uint, url string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"avatar_url": url, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("update avatar %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
