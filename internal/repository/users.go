package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/credihogar/catalog/internal/db"
	"github.com/credihogar/catalog/internal/models"
)

// UserRepository stores registered users.
type UserRepository struct {
	// DB is the database handle for executing queries.
	DB      *sql.DB
	Dialect db.Dialect
}

// NewUserRepository creates a UserRepository over conn.
func NewUserRepository(conn *sql.DB, dialect db.Dialect) *UserRepository {
	return &UserRepository{DB: conn, Dialect: dialect}
}

// Create inserts u. A duplicate e-mail yields a 409 backend error.
func (r *UserRepository) Create(ctx context.Context, u models.User) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		`INSERT INTO users (id, email, password_hash, role, is_admin, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, string(u.PasswordHash), u.Role, u.IsAdmin, u.CreatedAt,
	)
	if err != nil {
		if c := conflict(err, "El email ya está registrado"); c != err {
			return c
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByEmail returns the user with the given e-mail.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, `WHERE email = ?`, email)
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (models.User, error) {
	var (
		u    models.User
		hash string
	)
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(
		`SELECT id, email, password_hash, role, is_admin, created_at FROM users `+where), arg,
	).Scan(&u.ID, &u.Email, &hash, &u.Role, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return models.User{}, notFound(err, "Usuario no encontrado")
	}
	u.PasswordHash = []byte(hash)
	return u, nil
}

// PromoteAdmin grants the administrator role to the user with the given
// e-mail. It reports whether a user was changed.
func (r *UserRepository) PromoteAdmin(ctx context.Context, email string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		`UPDATE users SET role = ?, is_admin = ? WHERE email = ?`),
		models.RoleAdmin, true, email,
	)
	if err != nil {
		return false, fmt.Errorf("promote admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promote admin: %w", err)
	}
	return n > 0, nil
}
