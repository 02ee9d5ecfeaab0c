package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cdm/internal/metrics"
)

// MinSecretLength is the shortest HMAC secret accepted without a warning.
const MinSecretLength = 32

// Claims represents JWT claims. The user id travels in the subject claim.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// Identity is the user identity carried by a valid token.
type Identity struct {
	UserID uint
	Email  string
}

// JWTService issues and validates signed access tokens.
type JWTService interface {
	Issue(userID uint, email string) (string, error)
	Parse(token string) (*Claims, error)
	Validate(token string) bool
	Decode(token string) (Identity, bool)
}

// Option configures the JWT service.
type Option func(*jwtService)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *jwtService) { s.now = now }
}

type jwtService struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
	parser   *jwt.Parser
	log      *zap.Logger
}

// NewJWTService creates a new JWT service signing with HS256.
func NewJWTService(secret, issuer, audience string, expirationDays int, log *zap.Logger, opts ...Option) JWTService {
	if log == nil {
		log = zap.NewNop()
	}
	if expirationDays <= 0 {
		expirationDays = 7
	}
	s := &jwtService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		lifetime: time.Duration(expirationDays) * 24 * time.Hour,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) < MinSecretLength {
		log.Warn("jwt secret is shorter than recommended", zap.Int("length", len(s.secret)), zap.Int("min_length", MinSecretLength))
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// Issue generates a new access token for the user.
func (s *jwtService) Issue(userID uint, email string) (string, error) {
	now := s.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, algorithm, issuer, audience and expiry and returns the claims.
func (s *jwtService) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		metrics.TokenErrors.WithLabelValues(classify(err)).Inc()
		return nil, err
	}
	if !token.Valid {
		metrics.TokenErrors.WithLabelValues("invalid").Inc()
		return nil, errors.New("invalid token")
	}
	if _, err := claims.UserID(); err != nil {
		metrics.TokenErrors.WithLabelValues("invalid_claims").Inc()
		return nil, err
	}
	return claims, nil
}

// Validate reports whether the token passes full validation.
func (s *jwtService) Validate(tokenString string) bool {
	_, err := s.Parse(tokenString)
	return err == nil
}

// Decode returns the identity carried by a valid token.
func (s *jwtService) Decode(tokenString string) (Identity, bool) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return Identity{}, false
	}
	id, _ := claims.UserID()
	return Identity{UserID: id, Email: claims.Email}, true
}

func classify(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "invalid_signature"
	default:
		return "invalid_claims"
	}
}
