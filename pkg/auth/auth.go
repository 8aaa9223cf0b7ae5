// Package auth is the identity gate: it issues tokens on sign-in and turns
// bearer tokens back into a Capability (user id + role) that downstream
// services trust. Sessions live in redis so sign-out revokes a token before
// it expires.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Capability is what an authorized caller is allowed to act as.
type Capability struct {
	UserID string
	Role   models.Role
}

func (c Capability) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// SessionStore holds live sessions keyed by token ID.
type SessionStore interface {
	SaveSession(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	GetSession(ctx context.Context, tokenID string) (string, error)
	DeleteSession(ctx context.Context, tokenID string) error
}

type Service struct {
	config   *config.AuthConfig
	sessions SessionStore
}

func NewService(cfg *config.AuthConfig, sessions SessionStore) *Service {
	return &Service{
		config:   cfg,
		sessions: sessions,
	}
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return apperr.Unauthorized("invalid credentials")
	}
	return nil
}

// IssueToken signs a JWT for the user and registers its session.
func (s *Service) IssueToken(ctx context.Context, user *models.User) (string, error) {
	now := time.Now()
	tokenID := uuid.NewString()

	claims := tokenClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("failed to sign token: %w", err))
	}

	if err := s.sessions.SaveSession(ctx, tokenID, user.ID, s.config.TokenTTL); err != nil {
		return "", apperr.Internal(fmt.Errorf("failed to save session: %w", err))
	}

	return signed, nil
}

// Authorize verifies the token and requires a live session for its ID.
func (s *Service) Authorize(ctx context.Context, token string) (Capability, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return Capability{}, err
	}

	userID, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return Capability{}, apperr.Internal(fmt.Errorf("failed to read session: %w", err))
	}
	if userID == "" || userID != claims.Subject {
		return Capability{}, apperr.Unauthorized("session expired or revoked")
	}

	return Capability{
		UserID: claims.Subject,
		Role:   models.Role(claims.Role),
	}, nil
}

// Revoke deletes the token's session, invalidating it before expiry.
func (s *Service) Revoke(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return err
	}

	if err := s.sessions.DeleteSession(ctx, claims.ID); err != nil {
		return apperr.Internal(fmt.Errorf("failed to delete session: %w", err))
	}
	return nil
}

func (s *Service) parseToken(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return claims, nil
}
