package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/models"
)

// ProductRepository defines the product persistence required by
// CatalogService.
type ProductRepository interface {
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id string) (models.Product, error)
	Insert(ctx context.Context, p models.Product) error
	Update(ctx context.Context, id string, patch models.ProductPatch, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository lists categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
}

// ImageRemover deletes stored images referenced by product URLs.
type ImageRemover interface {
	Locate(url string) (string, bool)
	Remove(ctx context.Context, path string) error
}

// CatalogService implements product and category operations with
// owner-or-admin authorization on writes.
type CatalogService struct {
	products   ProductRepository
	categories CategoryRepository
	images     ImageRemover
	log        *zap.Logger
	now        func() time.Time
}

// NewCatalogService constructs a CatalogService. images may be nil, in which
// case deleted products leave their images in place.
func NewCatalogService(
	products ProductRepository,
	categories CategoryRepository,
	images ImageRemover,
	log *zap.Logger,
) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		images:     images,
		log:        log,
		now:        time.Now,
	}
}

// List returns the products matching f.
func (s *CatalogService) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	return s.products.List(ctx, f)
}

// Get returns one product.
func (s *CatalogService) Get(ctx context.Context, id string) (models.Product, error) {
	return s.products.Get(ctx, id)
}

// Categories returns all categories.
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.categories.List(ctx)
}

// Create stores a new product owned by principal.
func (s *CatalogService) Create(ctx context.Context, principal *models.User, rec models.Record) (models.Product, error) {
	if principal == nil {
		return models.Product{}, apperr.Unauthenticated("No autenticado")
	}
	name := strings.TrimSpace(cast.ToString(rec[models.FieldName]))
	rawPrice, hasPrice := rec[models.FieldPrice]
	if name == "" || !hasPrice || rawPrice == nil {
		return models.Product{}, apperr.Validation("Nombre y precio son requeridos")
	}
	price, err := models.NormalizePrice(rawPrice)
	if err != nil {
		return models.Product{}, apperr.Validation("El precio debe ser un número")
	}

	now := s.now().UTC()
	p := models.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(cast.ToString(rec[models.FieldDescription])),
		Price:       price,
		Category:    strings.TrimSpace(cast.ToString(rec[models.FieldCategory])),
		ImageURL:    strings.TrimSpace(cast.ToString(rec[models.FieldImageURL])),
		OwnerID:     principal.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Insert(ctx, p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

// Update applies the fields present in rec to product id.
func (s *CatalogService) Update(ctx context.Context, principal *models.User, id string, rec models.Record) (models.Product, error) {
	current, err := s.authorize(ctx, principal, id, "No tienes permiso para editar este producto")
	if err != nil {
		return models.Product{}, err
	}
	patch, err := models.PatchFromRecord(rec)
	if err != nil {
		return models.Product{}, apperr.Validation("El precio debe ser un número")
	}
	if patch.Empty() {
		return models.Product{}, apperr.Validation("No hay datos para actualizar")
	}
	now := s.now().UTC()
	if err := s.products.Update(ctx, id, patch, now); err != nil {
		return models.Product{}, err
	}
	updated := patch.Apply(current)
	updated.UpdatedAt = now
	return updated, nil
}

// Delete removes product id and, best effort, its stored image.
func (s *CatalogService) Delete(ctx context.Context, principal *models.User, id string) error {
	current, err := s.authorize(ctx, principal, id, "No tienes permiso para eliminar este producto")
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	if current.ImageURL == "" || s.images == nil {
		return nil
	}
	path, ok := s.images.Locate(current.ImageURL)
	if !ok {
		return nil
	}
	if err := s.images.Remove(ctx, path); err != nil {
		s.log.Warn("failed to remove product image",
			zap.String("product", id),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return nil
}

func (s *CatalogService) authorize(ctx context.Context, principal *models.User, id, denied string) (models.Product, error) {
	if principal == nil {
		return models.Product{}, apperr.Unauthenticated("No autenticado")
	}
	current, err := s.products.Get(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	if !principal.CanModify(current.OwnerID) {
		return models.Product{}, apperr.Forbidden(denied)
	}
	return current, nil
}
