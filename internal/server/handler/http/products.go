package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/middleware"
	"github.com/credihogar/catalog/internal/models"
)

// CatalogService defines the product and category operations required by
// the catalog handlers.
type CatalogService interface {
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id string) (models.Product, error)
	Create(ctx context.Context, principal *models.User, rec models.Record) (models.Product, error)
	Update(ctx context.Context, principal *models.User, id string, rec models.Record) (models.Product, error)
	Delete(ctx context.Context, principal *models.User, id string) error
	Categories(ctx context.Context) ([]models.Category, error)
}

// ProductHandler serves /api/products.
type ProductHandler struct {
	CatalogService CatalogService
}

// Handle dispatches on method: GET lists or fetches by ?id=, POST creates,
// PUT and DELETE act on ?id=.
func (h *ProductHandler) Handle(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			h.get(w, r, id)
			return
		}
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodPut:
		if id == "" {
			writeError(w, apperr.Validation("ID de producto requerido"))
			return
		}
		h.update(w, r, id)
	case http.MethodDelete:
		if id == "" {
			writeError(w, apperr.Validation("ID de producto requerido"))
			return
		}
		h.delete(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.CatalogService.List(r.Context(), models.ProductFilter{
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		OrderBy:   q.Get("order"),
		Ascending: strings.EqualFold(q.Get("dir"), "asc"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.CatalogService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, apperr.Unauthenticated("No autenticado"))
		return
	}
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	p, err := h.CatalogService.Create(r.Context(), principal, rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"id":      p.ID,
		"message": "Producto creado exitosamente",
	})
}

func (h *ProductHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, apperr.Unauthenticated("No autenticado"))
		return
	}
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	if _, err := h.CatalogService.Update(r.Context(), principal, id, rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Producto actualizado exitosamente",
	})
}

func (h *ProductHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, apperr.Unauthenticated("No autenticado"))
		return
	}
	if err := h.CatalogService.Delete(r.Context(), principal, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Producto eliminado exitosamente",
	})
}

// Categories serves GET /api/categories.
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.CatalogService.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (models.Record, bool) {
	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec == nil {
		writeError(w, apperr.Validation("JSON inválido"))
		return nil, false
	}
	return rec, true
}
