package local

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/storage"
	"github.com/credihogar/catalog/internal/models"
)

// OwnerID identifies the single local principal.
const OwnerID = "local-owner"

// keySessions holds the issued tokens.
const keySessions = "local_sessions"

// OwnerAuth unlocks the owner principal with the settings' admin password.
// While no password is configured any password is accepted.
type OwnerAuth struct {
	store    *storage.Store
	lifetime time.Duration
	now      func() time.Time
}

// NewOwnerAuth returns an OwnerAuth issuing 24h sessions.
func NewOwnerAuth(store *storage.Store) *OwnerAuth {
	return &OwnerAuth{store: store, lifetime: 24 * time.Hour, now: time.Now}
}

func (a *OwnerAuth) Register(context.Context, string, string) (models.Session, error) {
	return models.Session{}, apperr.Backend(501, "Registro no disponible en modo local")
}

func (a *OwnerAuth) Login(_ context.Context, email, password string) (models.Session, error) {
	st, err := a.store.LoadState()
	if err != nil {
		return models.Session{}, err
	}
	if want := st.Settings.AdminPass; want != "" &&
		subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
		return models.Session{}, apperr.Unauthenticated("Contraseña incorrecta")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = "propietario@local"
	}
	sess := models.Session{
		User: models.User{
			ID:      OwnerID,
			Email:   email,
			Role:    models.RoleAdmin,
			IsAdmin: true,
		},
		Token:     uuid.NewString(),
		ExpiresAt: a.now().Add(a.lifetime).UTC(),
	}
	err = a.update(func(m map[string]models.Session) {
		for tok, s := range m {
			if s.Expired(a.now()) {
				delete(m, tok)
			}
		}
		m[sess.Token] = sess
	})
	if err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

func (a *OwnerAuth) Logout(_ context.Context, token string) error {
	return a.update(func(m map[string]models.Session) { delete(m, token) })
}

func (a *OwnerAuth) Verify(_ context.Context, token string) (models.Session, error) {
	m, err := a.load()
	if err != nil {
		return models.Session{}, err
	}
	sess, ok := m[token]
	if !ok || sess.Expired(a.now()) {
		return models.Session{}, apperr.Unauthenticated("Sesión expirada")
	}
	return sess, nil
}

func (a *OwnerAuth) load() (map[string]models.Session, error) {
	raw, err := a.store.Get(keySessions)
	if err != nil {
		return nil, err
	}
	m := map[string]models.Session{}
	if raw != nil {
		if err := json.Unmarshal(raw, &m); err != nil {
			return map[string]models.Session{}, nil
		}
	}
	return m, nil
}

func (a *OwnerAuth) update(fn func(map[string]models.Session)) error {
	m, err := a.load()
	if err != nil {
		return err
	}
	fn(m)
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return a.store.Put(keySessions, raw)
}
