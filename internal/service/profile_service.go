package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "cdm/internal/errors"
	"cdm/internal/model"
	"cdm/internal/repository"
)

const (
	profileCacheKey = "profile:%d"
	profileCacheTTL = 5 * time.Minute
)

// Cache is the fail-safe key/value cache used for profile reads.
type Cache interface {
	Get(ctx context.Context, key string) []byte
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Profile is the public view of a user.
type Profile struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	Nickname    string    `json:"nickname"`
	Username    *string   `json:"username"`
	AvatarURL   *string   `json:"avatarUrl"`
	Preferences *string   `json:"preferences"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UpdateProfileInput carries optional profile changes. Nil fields are left untouched.
type UpdateProfileInput struct {
	Username    *string `json:"username"`
	Nickname    *string `json:"nickname"`
	Preferences *string `json:"preferences"`
}

type profileUpdateRules struct {
	Username    string `json:"username" validate:"omitempty,min=3,max=30"`
	Nickname    string `json:"nickname" validate:"omitempty,max=50"`
	Preferences string `json:"preferences" validate:"omitempty,json"`
}

// ProfileService reads and edits user profiles.
type ProfileService interface {
	GetProfile(ctx context.Context, userID uint) (*Profile, error)
	UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*Profile, error)
	IsUsernameAvailable(ctx context.Context, username string, currentUserID uint) (bool, error)
	InvalidateProfile(ctx context.Context, userID uint)
}

type profileService struct {
	userRepo  repository.UserRepository
	cache     Cache
	validator *Validator
	log       *zap.Logger
	now       func() time.Time
}

// NewProfileService creates a profile service. cache may be nil.
func NewProfileService(userRepo repository.UserRepository, cache Cache, validator *Validator, log *zap.Logger) ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &profileService{
		userRepo:  userRepo,
		cache:     cache,
		validator: validator,
		log:       log,
		now:       time.Now,
	}
}

func toProfile(u *model.User) *Profile {
	return &Profile{
		ID:          u.ID,
		Email:       u.Email,
		Nickname:    u.Nickname,
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt,
	}
}

func (s *profileService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	key := fmt.Sprintf(profileCacheKey, userID)
	if s.cache != nil {
		if cached := s.cache.Get(ctx, key); cached != nil {
			var p Profile
			if err := json.Unmarshal(cached, &p); err == nil {
				return &p, nil
			}
		}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := toProfile(user)
	if s.cache != nil {
		if payload, err := json.Marshal(profile); err == nil {
			s.cache.Set(ctx, key, payload, profileCacheTTL)
		}
	}
	return profile, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*Profile, error) {
	rules := profileUpdateRules{}
	if input.Username != nil {
		rules.Username = strings.TrimSpace(*input.Username)
	}
	if input.Nickname != nil {
		rules.Nickname = strings.TrimSpace(*input.Nickname)
	}
	if input.Preferences != nil {
		rules.Preferences = *input.Preferences
	}
	if err := s.validator.Validate(rules); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if rules.Username != "" && (user.Username == nil || *user.Username != rules.Username) {
		available, err := s.IsUsernameAvailable(ctx, rules.Username, userID)
		if err != nil {
			return nil, err
		}
		if !available {
			s.log.Info("username already taken", zap.Uint("user_id", userID), zap.String("username", rules.Username))
			return nil, apperrors.ErrUsernameTaken
		}
		username := rules.Username
		user.Username = &username
	}
	if rules.Nickname != "" {
		user.Nickname = rules.Nickname
	}
	if input.Preferences != nil {
		if rules.Preferences == "" {
			user.Preferences = nil
		} else {
			prefs := rules.Preferences
			user.Preferences = &prefs
		}
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	s.InvalidateProfile(ctx, userID)

	s.log.Info("profile updated", zap.Uint("user_id", userID))
	return toProfile(user), nil
}

// IsUsernameAvailable reports false for blank usernames and true when no other user holds it.
func (s *profileService) IsUsernameAvailable(ctx context.Context, username string, currentUserID uint) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}
	exists, err := s.userRepo.ExistsByUsername(ctx, username, currentUserID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (s *profileService) InvalidateProfile(ctx context.Context, userID uint) {
	if s.cache != nil {
		s.cache.Delete(ctx, fmt.Sprintf(profileCacheKey, userID))
	}
}
