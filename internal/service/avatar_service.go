package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "cdm/internal/errors"
	"cdm/internal/imaging"
	"cdm/internal/metrics"
	"cdm/internal/repository"
	"cdm/internal/storage"
)

// MaxAvatarSize is the largest accepted avatar upload in bytes.
const MaxAvatarSize = 2 * 1024 * 1024

var allowedAvatarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// AvatarService validates, stores and records user avatars.
type AvatarService interface {
	Validate(filename string, size int64) error
	Upload(ctx context.Context, userID uint, filename string, data []byte) (string, error)
}

type avatarService struct {
	userRepo     repository.UserRepository
	store        storage.Store
	profiles     ProfileService
	maxDimension int
	log          *zap.Logger
}

// NewAvatarService creates an avatar service. Images larger than maxDimension
// on either side are scaled down before storage.
func NewAvatarService(userRepo repository.UserRepository, store storage.Store, profiles ProfileService, maxDimension int, log *zap.Logger) AvatarService {
	if log == nil {
		log = zap.NewNop()
	}
	return &avatarService{
		userRepo:     userRepo,
		store:        store,
		profiles:     profiles,
		maxDimension: maxDimension,
		log:          log,
	}
}

// Validate checks presence, size and extension, case-insensitively.
func (s *avatarService) Validate(filename string, size int64) error {
	if filename == "" || size <= 0 {
		return apperrors.ErrNoFile
	}
	if size > MaxAvatarSize {
		return apperrors.ErrFileTooLarge
	}
	if !allowedAvatarExtensions[strings.ToLower(filepath.Ext(filename))] {
		return apperrors.ErrInvalidFileFormat
	}
	return nil
}

// Upload stores the avatar as <userID>_avatar<ext>, records its URL and removes
// the previous file when it lived under a different key.
func (s *avatarService) Upload(ctx context.Context, userID uint, filename string, data []byte) (url string, err error) {
	defer func() {
		metrics.AvatarUploads.WithLabelValues(metrics.Status(err)).Inc()
	}()

	if err := s.Validate(filename, int64(len(data))); err != nil {
		s.log.Info("avatar rejected", zap.Uint("user_id", userID), zap.Error(err))
		return "", err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	normalized, err := imaging.Normalize(data, ext, s.maxDimension)
	if err != nil {
		if errors.Is(err, imaging.ErrDecode) {
			return "", apperrors.ErrInvalidImage
		}
		return "", fmt.Errorf("normalize avatar: %w", err)
	}
	contentType, err := imaging.ContentType(ext)
	if err != nil {
		return "", apperrors.ErrInvalidFileFormat
	}

	key := fmt.Sprintf("%d_avatar%s", userID, ext)
	url, err = s.store.Put(ctx, key, normalized, contentType)
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	if err := s.userRepo.UpdateAvatarURL(ctx, userID, url); err != nil {
		return "", err
	}
	if s.profiles != nil {
		s.profiles.InvalidateProfile(ctx, userID)
	}

	if user.AvatarURL != nil && *user.AvatarURL != "" {
		if oldKey, ok := s.store.KeyFromURL(*user.AvatarURL); ok && oldKey != key {
			if err := s.store.Delete(ctx, oldKey); err != nil {
				s.log.Warn("failed to delete previous avatar", zap.Uint("user_id", userID), zap.String("key", oldKey), zap.Error(err))
			}
		}
	}

	s.log.Info("avatar uploaded", zap.Uint("user_id", userID), zap.String("url", url), zap.Int("bytes", len(normalized)))
	return url, nil
}
