// Package mutation orchestrates product writes: validation, image upload,
// the record write and cache invalidation, strictly in that order.
package mutation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/imaging"
	"github.com/credihogar/catalog/internal/models"
)

// Input is the product form. Price is loosely typed: a number or a numeric
// string.
type Input struct {
	Name        string
	Description string
	Price       any
	Category    string
	// Image is uploaded before the record is written. Nil keeps the current
	// image on update.
	Image *backend.File
}

// Sessions yields the remotely verified principal.
type Sessions interface {
	RequirePrincipal(ctx context.Context) (*models.User, error)
}

// Invalidator is notified after every successful write.
type Invalidator interface {
	Invalidate()
}

// Coordinator applies product mutations through a backend.
type Coordinator struct {
	backend  backend.Backend
	sessions Sessions
	cache    Invalidator
	log      *zap.Logger
}

// New returns a Coordinator.
func New(b backend.Backend, sessions Sessions, cache Invalidator, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{backend: b, sessions: sessions, cache: cache, log: log}
}

type fields struct {
	name, description, category string
	price                       float64
}

func validate(in Input) (fields, error) {
	f := fields{
		name:        strings.TrimSpace(in.Name),
		description: strings.TrimSpace(in.Description),
		category:    strings.TrimSpace(in.Category),
	}
	if s, ok := in.Price.(string); ok && strings.TrimSpace(s) == "" {
		in.Price = nil
	}
	if f.name == "" || in.Price == nil || f.category == "" {
		return fields{}, apperr.Validation("Nombre, precio y categoría son requeridos")
	}
	price, err := models.NormalizePrice(in.Price)
	if err != nil {
		return fields{}, apperr.Validation("El precio debe ser un número")
	}
	f.price = price
	if in.Image != nil {
		if err := imaging.CheckFile(in.Image.Name, in.Image.Size); err != nil {
			return fields{}, err
		}
	}
	return f, nil
}

// record leaves image_url out when there is no image so the backend stores
// null.
func (f fields) record(imageURL string) models.Record {
	rec := models.Record{
		models.FieldName:        f.name,
		models.FieldDescription: f.description,
		models.FieldPrice:       f.price,
		models.FieldCategory:    f.category,
	}
	if imageURL != "" {
		rec[models.FieldImageURL] = imageURL
	}
	return rec
}

func (c *Coordinator) products() backend.Table {
	return c.backend.Table(backend.TableProducts)
}

// upload stores img and returns its public URL.
func (c *Coordinator) upload(ctx context.Context, img *backend.File) (string, error) {
	files := c.backend.Files()
	path, err := files.Upload(ctx, backend.BucketProducts, *img)
	if err != nil {
		return "", err
	}
	return files.PublicURL(backend.BucketProducts, path), nil
}

// Create validates in, uploads its image if any, inserts the record and
// invalidates the cache.
func (c *Coordinator) Create(ctx context.Context, in Input) (models.Product, error) {
	f, err := validate(in)
	if err != nil {
		return models.Product{}, err
	}
	if _, err := c.sessions.RequirePrincipal(ctx); err != nil {
		return models.Product{}, err
	}

	var imageURL string
	if in.Image != nil {
		if imageURL, err = c.upload(ctx, in.Image); err != nil {
			return models.Product{}, err
		}
	}

	rec, err := c.products().Insert(ctx, f.record(imageURL))
	if err != nil {
		if imageURL != "" {
			c.log.Warn("product insert failed after image upload", zap.String("image_url", imageURL), zap.Error(err))
		}
		return models.Product{}, err
	}
	return c.done(rec)
}

// Update validates in, checks the caller may edit product id, uploads the
// new image if any and writes the record. Without a new image the current
// image_url is kept.
func (c *Coordinator) Update(ctx context.Context, id string, in Input) (models.Product, error) {
	f, err := validate(in)
	if err != nil {
		return models.Product{}, err
	}
	current, err := c.authorize(ctx, id, "No tienes permiso para editar este producto")
	if err != nil {
		return models.Product{}, err
	}

	imageURL := current.ImageURL
	if in.Image != nil {
		if imageURL, err = c.upload(ctx, in.Image); err != nil {
			return models.Product{}, err
		}
	}

	rec, err := c.products().Update(ctx, id, f.record(imageURL))
	if err != nil {
		return models.Product{}, err
	}
	return c.done(rec)
}

// Delete removes product id. The backend removes the stored image on a best
// effort basis.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if _, err := c.authorize(ctx, id, "No tienes permiso para eliminar este producto"); err != nil {
		return err
	}
	if err := c.products().Delete(ctx, id); err != nil {
		return err
	}
	c.cache.Invalidate()
	return nil
}

// authorize loads product id and checks the verified principal owns it or
// is an admin. It runs before any upload; the backend still enforces the
// same rule on the write.
func (c *Coordinator) authorize(ctx context.Context, id, denied string) (models.Product, error) {
	principal, err := c.sessions.RequirePrincipal(ctx)
	if err != nil {
		return models.Product{}, err
	}
	rec, err := c.products().GetByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	current, err := models.ProductFromRecord(rec)
	if err != nil {
		return models.Product{}, apperr.Wrap(apperr.KindBackend, "Respuesta inválida del servidor", err)
	}
	if !principal.CanModify(current.OwnerID) {
		return models.Product{}, apperr.Forbidden(denied)
	}
	return current, nil
}

func (c *Coordinator) done(rec models.Record) (models.Product, error) {
	c.cache.Invalidate()
	p, err := models.ProductFromRecord(rec)
	if err != nil {
		return models.Product{}, apperr.Wrap(apperr.KindBackend, "Respuesta inválida del servidor", err)
	}
	return p, nil
}
