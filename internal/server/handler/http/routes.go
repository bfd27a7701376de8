package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/middleware"
)

// NewRouter constructs the HTTP handler of the catalog API.
//
// Routes:
//
//	POST|GET /api/auth?action=...   → authHandler.Handle
//	*        /api/products          → productHandler.Handle
//	GET      /api/categories        → productHandler.Categories
//	POST     /api/upload            → uploadHandler.Upload
//	GET      /uploads/*             → files under uploadDir, when set
//
// Middleware chain (applied in order):
//  1. Recoverer : turns panics into 500s
//  2. WithRequestLogging(logger) : logs each request
//  3. auth : resolves the session principal
func NewRouter(
	authHandler *AuthHandler,
	productHandler *ProductHandler,
	uploadHandler *UploadHandler,
	auth func(http.Handler) http.Handler,
	uploadDir string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(auth)
		r.HandleFunc("/auth", authHandler.Handle)
		r.HandleFunc("/products", productHandler.Handle)
		r.Get("/categories", productHandler.Categories)
		r.Post("/upload", uploadHandler.Upload)
	})

	if uploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir)))
		r.Handle("/uploads/*", fs)
	}

	return r
}
