// Package app assembles the client: durable storage, the selected backend
// adapter, the session store, the catalog cache and the mutation
// coordinator. Everything is constructed explicitly and owned by App.
package app

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/certgen"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/client/backend/direct"
	"github.com/credihogar/catalog/internal/client/backend/local"
	"github.com/credihogar/catalog/internal/client/backend/rest"
	"github.com/credihogar/catalog/internal/client/catalog"
	"github.com/credihogar/catalog/internal/client/contact"
	"github.com/credihogar/catalog/internal/client/mutation"
	"github.com/credihogar/catalog/internal/client/session"
	"github.com/credihogar/catalog/internal/client/storage"
	"github.com/credihogar/catalog/internal/filestore"
	"github.com/credihogar/catalog/internal/models"
	"github.com/credihogar/catalog/internal/repository/memory"
	"github.com/credihogar/catalog/internal/service"
)

// Backend kinds.
const (
	BackendREST   = "rest"
	BackendDirect = "direct"
	BackendLocal  = "local"
)

// Options selects and configures the backend.
type Options struct {
	// Backend is BackendREST, BackendDirect or BackendLocal. Empty picks
	// rest when URL is set and local otherwise.
	Backend string
	// URL is the API base of the rest backend, e.g. http://localhost:8080/api.
	URL string
	// CAFile, when set, is the only root the rest backend trusts.
	CAFile string
	// Timeout bounds each rest request.
	Timeout time.Duration
	// DataDir holds the client database and the direct backend's files.
	DataDir string
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// App is the client application context.
type App struct {
	Kind      string
	Log       *zap.Logger
	Storage   *storage.Store
	Backend   backend.Backend
	Sessions  *session.Store
	Catalog   *catalog.Cache
	Mutations *mutation.Coordinator
	Bus       EventBus.Bus
}

// New opens storage under opts.DataDir and builds the client around the
// selected backend.
func New(opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	kind := opts.Backend
	if kind == "" {
		kind = BackendLocal
		if opts.URL != "" {
			kind = BackendREST
		}
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	if err := os.MkdirAll(opts.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.Open(filepath.Join(opts.DataDir, "catalog.db"))
	if err != nil {
		return nil, err
	}

	b, err := newBackend(kind, opts, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := EventBus.New()
	sessions := session.New(b.Auth(), store, log.Named("session"))
	cache := catalog.New(b, bus, log.Named("catalog"))
	return &App{
		Kind:      kind,
		Log:       log,
		Storage:   store,
		Backend:   b,
		Sessions:  sessions,
		Catalog:   cache,
		Mutations: mutation.New(b, sessions, cache, log.Named("mutation")),
		Bus:       bus,
	}, nil
}

func newBackend(kind string, opts Options, store *storage.Store, log *zap.Logger) (backend.Backend, error) {
	switch kind {
	case BackendREST:
		if opts.URL == "" {
			return nil, errors.New("rest backend requires a URL")
		}
		hc, err := httpClient(opts)
		if err != nil {
			return nil, err
		}
		return rest.New(opts.URL, hc, log.Named("rest"))
	case BackendDirect:
		return newDirect(opts.DataDir, log)
	case BackendLocal:
		return local.New(store, log.Named("local")), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

func httpClient(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if opts.CAFile != "" {
		pool, err := certgen.LoadCertPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		hc.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		}
	}
	return hc, nil
}

// newDirect runs the catalog services in process over an in-memory store.
// Images are written under dir/uploads and referenced by file URL.
func newDirect(dir string, log *zap.Logger) (backend.Backend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	files := filestore.NewLocal(filepath.Join(abs, filestore.URLPrefix), "file://"+filepath.ToSlash(abs))
	mem := memory.New()
	auth := service.NewAuthService(mem.Users(), mem.Sessions(), 24*time.Hour)
	cat := service.NewCatalogService(mem.Products(), mem.Categories(), files, log.Named("direct"))
	return direct.New(auth, cat, service.NewUploadService(files), files.URL), nil
}

// Close releases the client database.
func (a *App) Close() error {
	return a.Storage.Close()
}

// Settings returns the locally stored seller settings.
func (a *App) Settings() (storage.Settings, error) {
	return local.Settings(a.Storage)
}

// SaveSettings updates the non-empty fields of s.
func (a *App) SaveSettings(s storage.Settings) error {
	s.WhatsApp = strings.TrimSpace(s.WhatsApp)
	return local.SaveSettings(a.Storage, s)
}

// ContactLink returns the deep link asking the seller about p.
func (a *App) ContactLink(p models.Product) (string, error) {
	s, err := a.Settings()
	if err != nil {
		return "", err
	}
	return contact.Link(s.WhatsApp, p.Name)
}
