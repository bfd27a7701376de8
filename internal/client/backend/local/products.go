package local

import (
	"context"
	"time"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/storage"
	"github.com/credihogar/catalog/internal/models"
)

// Products keeps products in the state document.
type Products struct {
	store *storage.Store
}

func (r *Products) List(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	st, err := r.store.LoadState()
	if err != nil {
		return nil, err
	}
	return f.Apply(st.Products), nil
}

func (r *Products) Get(_ context.Context, id string) (models.Product, error) {
	st, err := r.store.LoadState()
	if err != nil {
		return models.Product{}, err
	}
	for _, p := range st.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, errNotFound()
}

func (r *Products) Insert(_ context.Context, p models.Product) error {
	return r.store.UpdateState(func(st *storage.LocalState) error {
		st.Products = append(st.Products, p)
		return nil
	})
}

func (r *Products) Update(_ context.Context, id string, patch models.ProductPatch, updatedAt time.Time) error {
	return r.store.UpdateState(func(st *storage.LocalState) error {
		for i, p := range st.Products {
			if p.ID == id {
				p = patch.Apply(p)
				p.UpdatedAt = updatedAt.UTC()
				st.Products[i] = p
				return nil
			}
		}
		return errNotFound()
	})
}

func (r *Products) Delete(_ context.Context, id string) error {
	return r.store.UpdateState(func(st *storage.LocalState) error {
		for i, p := range st.Products {
			if p.ID == id {
				st.Products = append(st.Products[:i], st.Products[i+1:]...)
				return nil
			}
		}
		return errNotFound()
	})
}

func errNotFound() error {
	return apperr.NotFound("Producto no encontrado")
}
