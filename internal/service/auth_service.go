package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cdm/internal/auth"
	apperrors "cdm/internal/errors"
	"cdm/internal/metrics"
	"cdm/internal/model"
	"cdm/internal/repository"
)

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Nickname        string `json:"nickname" validate:"required,max=50"`
}

// LoginInput is the login payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by successful registrations and logins.
type AuthResult struct {
	UserID   uint   `json:"userId"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Token    string `json:"token"`
	Message  string `json:"message"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

type authService struct {
	userRepo   repository.UserRepository
	hasher     auth.PasswordHasher
	jwtService auth.JWTService
	tokenStore auth.TokenStoreInterface
	validator  *Validator
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	userRepo repository.UserRepository,
	hasher auth.PasswordHasher,
	jwtService auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	validator *Validator,
	log *zap.Logger,
) AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &authService{
		userRepo:   userRepo,
		hasher:     hasher,
		jwtService: jwtService,
		tokenStore: tokenStore,
		validator:  validator,
		log:        log,
		now:        time.Now,
	}
}

// Register validates input, creates an active user and issues a token.
func (s *authService) Register(ctx context.Context, input RegisterInput) (result *AuthResult, err error) {
	start := time.Now()
	defer func() {
		metrics.AuthRequests.WithLabelValues("register", metrics.Status(err)).Inc()
		metrics.AuthLatency.WithLabelValues("register").Observe(time.Since(start).Seconds())
	}()

	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		s.log.Info("registration rejected: email exists", zap.String("email", input.Email))
		return nil, apperrors.ErrEmailAlreadyExists
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		Email:        input.Email,
		Nickname:     input.Nickname,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrEmailAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.jwtService.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return &AuthResult{
		UserID:   user.ID,
		Email:    user.Email,
		Nickname: user.Nickname,
		Token:    token,
		Message:  "Account created successfully",
	}, nil
}

// Login verifies credentials. Unknown emails, inactive accounts and wrong passwords
// all fail with ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, input LoginInput) (result *AuthResult, err error) {
	start := time.Now()
	defer func() {
		metrics.AuthRequests.WithLabelValues("login", metrics.Status(err)).Inc()
		metrics.AuthLatency.WithLabelValues("login").Observe(time.Since(start).Seconds())
	}()

	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.log.Info("login failed: unknown email", zap.String("email", input.Email))
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		s.log.Info("login failed: inactive account", zap.Uint("user_id", user.ID))
		return nil, apperrors.ErrInvalidCredentials
	}
	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.log.Info("login failed: wrong password", zap.Uint("user_id", user.ID))
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}

	token, err := s.jwtService.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("user logged in", zap.Uint("user_id", user.ID))
	return &AuthResult{
		UserID:   user.ID,
		Email:    user.Email,
		Nickname: user.Nickname,
		Token:    token,
		Message:  "Login successful",
	}, nil
}

// Logout revokes the token until its own expiry.
func (s *authService) Logout(ctx context.Context, token string) (err error) {
	defer func() {
		metrics.AuthRequests.WithLabelValues("logout", metrics.Status(err)).Inc()
	}()

	claims, err := s.jwtService.Parse(token)
	if err != nil {
		return apperrors.ErrInvalidToken
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.tokenStore.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.log.Info("user logged out", zap.String("user_id", claims.Subject))
	return nil
}

// Authenticate validates a bearer token and rejects revoked ones.
func (s *authService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtService.Parse(token)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if s.tokenStore.IsRevoked(ctx, claims.ID) {
		metrics.TokenErrors.WithLabelValues("revoked").Inc()
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}
