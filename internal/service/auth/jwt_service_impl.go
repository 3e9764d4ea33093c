// Package auth issues and validates the bearer tokens that guard the admin API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
)

const (
	// MinSecretLength is the shortest accepted HMAC signing secret.
	MinSecretLength = 32

	// operatorTokenType marks tokens minted for operators.
	operatorTokenType = "operator"

	defaultClockSkew = 2 * time.Minute
)

// TokenIssuer mints operator tokens.
type TokenIssuer interface {
	GenerateToken(ctx context.Context, subject string, ttl time.Duration) (string, error)
}

// TokenValidator checks operator tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated contents of an operator token.
type Claims struct {
	Subject   string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

type jwtCustomClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 operator tokens.
type JWTService struct {
	signingKey []byte
	timeFunc   func() time.Time
	clockSkew  time.Duration
}

var (
	_ TokenIssuer    = (*JWTService)(nil)
	_ TokenValidator = (*JWTService)(nil)
)

// NewJWTService creates a JWTService from the auth configuration.
func NewJWTService(cfg config.AuthConfig) (*JWTService, error) {
	if len(cfg.JWTSecret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakSecret, MinSecretLength)
	}
	return &JWTService{
		signingKey: []byte(cfg.JWTSecret),
		timeFunc:   time.Now,
		clockSkew:  defaultClockSkew,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.timeFunc = now
	return s
}

// GenerateToken creates a signed operator token for subject valid for ttl.
func (s *JWTService) GenerateToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("token lifetime must be positive")
	}
	now := s.timeFunc()
	claims := jwtCustomClaims{
		TokenType: operatorTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign operator token",
			"error", err,
			"subject", subject,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", fmt.Errorf("failed to sign operator token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, lifetime and type of an operator token.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwtCustomClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("operator token expired")
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("operator token not yet valid")
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("operator token rejected", "error", err, "error_type", fmt.Sprintf("%T", err))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != operatorTokenType {
		log.Debug("operator token has wrong type", "actual", claims.TokenType)
		return nil, ErrWrongTokenType
	}

	out := &Claims{
		Subject:   claims.Subject,
		TokenType: claims.TokenType,
		ID:        claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
