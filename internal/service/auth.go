// Package service provides the catalog business logic: accounts and
// sessions, products and categories, and image uploads. Persistence is
// delegated to repository interfaces.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/models"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// UserRepository defines the user persistence required by AuthService.
type UserRepository interface {
	Create(ctx context.Context, u models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	PromoteAdmin(ctx context.Context, email string) (bool, error)
}

// SessionRepository defines the token persistence required by AuthService.
type SessionRepository interface {
	Create(ctx context.Context, userID, token string, expiresAt time.Time) error
	Lookup(ctx context.Context, token string, now time.Time) (models.Session, error)
	Delete(ctx context.Context, token string) error
}

// AuthService registers users and issues, verifies and revokes sessions.
type AuthService struct {
	users    UserRepository
	sessions SessionRepository
	lifetime time.Duration
	now      func() time.Time
}

// NewAuthService constructs an AuthService issuing sessions valid for
// lifetime.
func NewAuthService(users UserRepository, sessions SessionRepository, lifetime time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Register creates a regular user and signs them in.
func (s *AuthService) Register(ctx context.Context, email, password string) (models.Session, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return models.Session{}, err
	}
	if len(password) < MinPasswordLength {
		return models.Session{}, apperr.Validation(
			fmt.Sprintf("El password debe tener al menos %d caracteres", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Session{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Role:         models.RoleUser,
		CreatedAt:    s.now().UTC(),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return models.Session{}, err
	}
	return s.issue(ctx, user)
}

// Login checks the credentials and issues a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.Session, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return models.Session{}, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Session{}, apperr.Unauthenticated("Credenciales inválidas")
		}
		return models.Session{}, err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return models.Session{}, apperr.Unauthenticated("Credenciales inválidas")
	}
	return s.issue(ctx, user)
}

// Logout revokes token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Verify resolves token into a live session.
func (s *AuthService) Verify(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, apperr.Unauthenticated("No autenticado")
	}
	sess, err := s.sessions.Lookup(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Session{}, apperr.Unauthenticated("Sesión expirada")
		}
		return models.Session{}, err
	}
	return sess, nil
}

// Profile returns the full user record, including the creation time.
func (s *AuthService) Profile(ctx context.Context, userID string) (models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = nil
	return u, nil
}

// PromoteAdmin grants the administrator role to an existing user.
func (s *AuthService) PromoteAdmin(ctx context.Context, email string) (bool, error) {
	return s.users.PromoteAdmin(ctx, strings.TrimSpace(email))
}

func (s *AuthService) issue(ctx context.Context, user models.User) (models.Session, error) {
	token, err := newToken()
	if err != nil {
		return models.Session{}, err
	}
	expires := s.now().Add(s.lifetime).UTC()
	if err := s.sessions.Create(ctx, user.ID, token, expires); err != nil {
		return models.Session{}, err
	}
	user.PasswordHash = nil
	user.CreatedAt = time.Time{}
	return models.Session{User: user, Token: token, ExpiresAt: expires}, nil
}

func checkCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", apperr.Validation("Email y password son requeridos")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("Email no válido")
	}
	return email, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
