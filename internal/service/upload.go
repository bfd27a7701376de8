package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/imaging"
	"github.com/credihogar/catalog/internal/models"
)

// ProductBucket is the bucket product images are stored in.
const ProductBucket = "products"

// ObjectStore stores uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, bucket, name string, r io.Reader) (string, error)
	URL(path string) string
}

// UploadService validates, optimizes and stores product images.
type UploadService struct {
	store ObjectStore
}

// NewUploadService constructs an UploadService over store.
func NewUploadService(store ObjectStore) *UploadService {
	return &UploadService{store: store}
}

// Upload stores the image read from r under a fresh unique name.
func (s *UploadService) Upload(ctx context.Context, principal *models.User, filename string, size int64, r io.Reader) (models.StoredImage, error) {
	if principal == nil {
		return models.StoredImage{}, apperr.Unauthenticated("No autenticado")
	}
	if err := imaging.CheckFile(filename, size); err != nil {
		return models.StoredImage{}, err
	}
	data, err := io.ReadAll(io.LimitReader(r, imaging.MaxFileSize+1))
	if err != nil {
		return models.StoredImage{}, apperr.Upload("El archivo se subió parcialmente")
	}
	out, name, err := imaging.Optimize(filename, data)
	if err != nil {
		return models.StoredImage{}, err
	}

	stored := uuid.NewString() + "." + imaging.Ext(name)
	path, err := s.store.Put(ctx, ProductBucket, stored, bytes.NewReader(out))
	if err != nil {
		return models.StoredImage{}, &apperr.Error{
			Kind:    apperr.KindBackend,
			Status:  http.StatusInternalServerError,
			Message: "Error al guardar el archivo",
			Err:     fmt.Errorf("store image: %w", err),
		}
	}
	return models.StoredImage{URL: path, FullURL: s.store.URL(path), Filename: stored}, nil
}
