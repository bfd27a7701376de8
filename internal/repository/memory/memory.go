// Package memory is an in-process store satisfying the same repository
// contracts as the SQL repositories. It backs development servers and the
// client's direct backend.
package memory

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/models"
)

// Store holds users, sessions, products and categories behind one mutex.
type Store struct {
	mu         sync.Mutex
	users      map[string]models.User
	sessions   map[string]session
	products   map[string]models.Product
	categories []models.Category
}

type session struct {
	userID    string
	expiresAt time.Time
}

// New returns a Store seeded with the default categories.
func New() *Store {
	s := &Store{
		users:    map[string]models.User{},
		sessions: map[string]session{},
		products: map[string]models.Product{},
	}
	for _, name := range models.DefaultCategories {
		s.categories = append(s.categories, models.Category{ID: uuid.NewString(), Name: name})
	}
	return s
}

// Users returns the user repository view.
func (s *Store) Users() *Users { return &Users{s} }

// Sessions returns the session repository view.
func (s *Store) Sessions() *Sessions { return &Sessions{s} }

// Products returns the product repository view.
func (s *Store) Products() *Products { return &Products{s} }

// Categories returns the category repository view.
func (s *Store) Categories() *Categories { return &Categories{s} }

// Users stores accounts keyed by id. Emails are unique.
type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, u models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Backend(http.StatusConflict, "El email ya está registrado")
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.s.users[u.ID] = u
	return nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, apperr.NotFound("Usuario no encontrado")
}

func (r *Users) GetByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("Usuario no encontrado")
	}
	return u, nil
}

func (r *Users) PromoteAdmin(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			u.Role, u.IsAdmin = models.RoleAdmin, true
			r.s.users[id] = u
			return true, nil
		}
	}
	return false, nil
}

// Sessions maps tokens to users.
type Sessions struct{ s *Store }

func (r *Sessions) Create(_ context.Context, userID, token string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[token] = session{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *Sessions) Lookup(_ context.Context, token string, now time.Time) (models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok || !now.Before(sess.expiresAt) {
		return models.Session{}, apperr.NotFound("Sesión expirada")
	}
	u, ok := r.s.users[sess.userID]
	if !ok {
		return models.Session{}, apperr.NotFound("Sesión expirada")
	}
	return models.Session{User: u, Token: token, ExpiresAt: sess.expiresAt}, nil
}

func (r *Sessions) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, token)
	return nil
}

// Products stores catalog products.
type Products struct{ s *Store }

func (r *Products) List(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	r.s.mu.Lock()
	all := make([]models.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		all = append(all, p)
	}
	r.s.mu.Unlock()
	return f.Apply(all), nil
}

func (r *Products) Get(_ context.Context, id string) (models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return models.Product{}, apperr.NotFound("Producto no encontrado")
	}
	return p, nil
}

func (r *Products) Insert(_ context.Context, p models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; ok {
		return apperr.Backend(http.StatusConflict, "Producto duplicado")
	}
	r.s.products[p.ID] = p
	return nil
}

func (r *Products) Update(_ context.Context, id string, patch models.ProductPatch, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return apperr.NotFound("Producto no encontrado")
	}
	p = patch.Apply(p)
	p.UpdatedAt = updatedAt.UTC()
	r.s.products[id] = p
	return nil
}

func (r *Products) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return apperr.NotFound("Producto no encontrado")
	}
	delete(r.s.products, id)
	return nil
}

// Categories lists the seeded categories by name.
type Categories struct{ s *Store }

func (r *Categories) List(context.Context) ([]models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Category, len(r.s.categories))
	copy(out, r.s.categories)
	return out, nil
}
