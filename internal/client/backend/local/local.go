// Package local is the fallback backend used when no server is configured.
// Products live in the client's durable storage under the namespaced state
// key, images are kept inline as data URIs, and the only principal is the
// store owner unlocked with the admin password from the settings.
//
// The catalog and upload rules are the server's own services running over
// storage-backed repositories, so validation and error messages match the
// other backends.
package local

import (
	"context"

	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/client/backend/direct"
	"github.com/credihogar/catalog/internal/client/storage"
	"github.com/credihogar/catalog/internal/models"
	"github.com/credihogar/catalog/internal/service"
)

// New returns a backend over store.
func New(store *storage.Store, log *zap.Logger) *direct.Client {
	if log == nil {
		log = zap.NewNop()
	}
	catalog := service.NewCatalogService(&Products{store: store}, Categories{}, nil, log)
	uploads := service.NewUploadService(DataURIStore{})
	return direct.New(NewOwnerAuth(store), catalog, uploads, nil)
}

// Settings returns the stored settings.
func Settings(store *storage.Store) (storage.Settings, error) {
	st, err := store.LoadState()
	if err != nil {
		return storage.Settings{}, err
	}
	return st.Settings, nil
}

// SaveSettings stores the non-empty values of s, keeping the rest.
func SaveSettings(store *storage.Store, s storage.Settings) error {
	return store.UpdateState(func(st *storage.LocalState) error {
		if s.WhatsApp != "" {
			st.Settings.WhatsApp = s.WhatsApp
		}
		if s.AdminPass != "" {
			st.Settings.AdminPass = s.AdminPass
		}
		return nil
	})
}

// Categories serves the default category set.
type Categories struct{}

func (Categories) List(_ context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(models.DefaultCategories))
	for _, name := range models.DefaultCategories {
		out = append(out, models.Category{ID: name, Name: name})
	}
	return out, nil
}
