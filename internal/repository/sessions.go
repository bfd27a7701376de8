package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/credihogar/catalog/internal/db"
	"github.com/credihogar/catalog/internal/models"
)

// SessionRepository stores issued bearer tokens.
type SessionRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewSessionRepository creates a SessionRepository over conn.
func NewSessionRepository(conn *sql.DB, dialect db.Dialect) *SessionRepository {
	return &SessionRepository{DB: conn, Dialect: dialect}
}

// Create stores a token for userID valid until expiresAt.
func (r *SessionRepository) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		`INSERT INTO sessions (id, user_id, token, expires_at) VALUES (?, ?, ?, ?)`),
		uuid.NewString(), userID, token, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Lookup returns the session for token if it has not expired at now.
func (r *SessionRepository) Lookup(ctx context.Context, token string, now time.Time) (models.Session, error) {
	s := models.Session{Token: token}
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`
		SELECT u.id, u.email, u.role, u.is_admin, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`),
		token, now.UTC(),
	).Scan(&s.User.ID, &s.User.Email, &s.User.Role, &s.User.IsAdmin, &s.ExpiresAt)
	if err != nil {
		return models.Session{}, notFound(err, "Sesión expirada")
	}
	return s, nil
}

// Delete revokes token. Deleting an unknown token is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM sessions WHERE token = ?`), token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
