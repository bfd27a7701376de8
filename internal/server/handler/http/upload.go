package http

import (
	"context"
	"io"
	"net/http"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/imaging"
	"github.com/credihogar/catalog/internal/middleware"
	"github.com/credihogar/catalog/internal/models"
)

// UploadFormField is the multipart field carrying the image.
const UploadFormField = "image"

// UploadService defines the image storage required by UploadHandler.
type UploadService interface {
	Upload(ctx context.Context, principal *models.User, filename string, size int64, r io.Reader) (models.StoredImage, error)
}

// UploadHandler serves POST /api/upload.
type UploadHandler struct {
	UploadService UploadService
}

// Upload stores the multipart image and returns its URLs.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, apperr.Unauthenticated("No autenticado"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxFileSize+1<<20)
	file, hdr, err := r.FormFile(UploadFormField)
	if err != nil {
		writeError(w, apperr.Upload("No se subió ningún archivo"))
		return
	}
	defer file.Close()

	img, err := h.UploadService.Upload(r.Context(), principal, hdr.Filename, hdr.Size, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"url":      img.URL,
		"full_url": img.FullURL,
		"filename": img.Filename,
	})
}
