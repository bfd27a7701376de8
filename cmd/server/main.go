// Package main initializes and starts the catalog API server, setting up
// configuration, logging, database connections, repositories, services,
// handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/certgen"
	"github.com/credihogar/catalog/internal/config"
	"github.com/credihogar/catalog/internal/db"
	"github.com/credihogar/catalog/internal/filestore"
	"github.com/credihogar/catalog/internal/logger"
	"github.com/credihogar/catalog/internal/middleware"
	"github.com/credihogar/catalog/internal/repository"
	"github.com/credihogar/catalog/internal/repository/memory"
	"github.com/credihogar/catalog/internal/server/handler/http"
	"github.com/credihogar/catalog/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// repositories groups the persistence the services are built on.
type repositories struct {
	users      service.UserRepository
	sessions   service.SessionRepository
	products   service.ProductRepository
	categories service.CategoryRepository
}

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	log.File = options.LogFile
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeDB, err := openRepositories(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer closeDB()

	files, uploadDir, err := openFileStore(options)
	if err != nil {
		zapLogger.Fatal("cannot init file store", zap.Error(err))
	}

	// Initialize business-logic services.
	authService := service.NewAuthService(repos.users, repos.sessions, options.SessionLifetime)
	catalogService := service.NewCatalogService(repos.products, repos.categories, files, zapLogger)
	uploadService := service.NewUploadService(files)

	if options.AdminEmail != "" {
		promoted, err := authService.PromoteAdmin(ctx, options.AdminEmail)
		switch {
		case err != nil:
			zapLogger.Error("failed to promote admin", zap.String("email", options.AdminEmail), zap.Error(err))
		case promoted:
			zapLogger.Info("admin promoted", zap.String("email", options.AdminEmail))
		default:
			zapLogger.Warn("admin email not registered yet", zap.String("email", options.AdminEmail))
		}
	}

	cookies := newCookieStore(options, zapLogger)

	// Build the router with middleware and routes.
	router := http.NewRouter(
		&http.AuthHandler{AuthService: authService, Cookies: cookies},
		&http.ProductHandler{CatalogService: catalogService},
		&http.UploadHandler{UploadService: uploadService},
		middleware.SessionAuth(authService, cookies, zapLogger),
		uploadDir,
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if options.TLSCert != "" {
		if options.TLSDev {
			created, err := certgen.Ensure(options.TLSCert, options.TLSKey, certgen.DefaultHosts)
			if err != nil {
				zapLogger.Fatal("failed to generate dev TLS pair", zap.Error(err))
			}
			if created {
				zapLogger.Info("generated self-signed TLS pair", zap.String("cert", options.TLSCert))
			}
		}
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("shutdown failed", zap.Error(err))
		}
	}()

	if options.TLSCert != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// openRepositories connects the configured driver. SQL drivers also start
// the expired-session cleaner, which stops with ctx.
func openRepositories(ctx context.Context, o *config.Options, log *zap.Logger) (repositories, func(), error) {
	if o.DatabaseDriver == "memory" {
		log.Warn("using in-memory storage; data is lost on restart")
		store := memory.New()
		return repositories{
			users:      store.Users(),
			sessions:   store.Sessions(),
			products:   store.Products(),
			categories: store.Categories(),
		}, func() {}, nil
	}

	conn, dialect, err := db.Open(o.DatabaseDriver, o.DatabaseDSN)
	if err != nil {
		return repositories{}, nil, err
	}
	db.StartExpiredSessionCleaner(ctx, conn, dialect, time.Hour, log)

	return repositories{
		users:      repository.NewUserRepository(conn, dialect),
		sessions:   repository.NewSessionRepository(conn, dialect),
		products:   repository.NewProductRepository(conn, dialect),
		categories: repository.NewCategoryRepository(conn),
	}, func() { _ = conn.Close() }, nil
}

// openFileStore returns the image bucket and, for the local store, the
// directory served under /uploads.
func openFileStore(o *config.Options) (filestore.Store, string, error) {
	if o.FileStore == "cloudinary" {
		s, err := filestore.NewCloudinary(o.CloudinaryURL)
		return s, "", err
	}
	if err := os.MkdirAll(o.UploadDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create upload dir: %w", err)
	}
	return filestore.NewLocal(o.UploadDir, o.BaseURL), o.UploadDir, nil
}

func newCookieStore(o *config.Options, log *zap.Logger) *sessions.CookieStore {
	secret := []byte(o.SessionSecret)
	if len(secret) == 0 {
		log.Warn("no session secret configured; cookies will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(o.SessionLifetime.Seconds()),
		HttpOnly: true,
		Secure:   o.TLSCert != "",
		SameSite: nethttp.SameSiteLaxMode,
	}
	return store
}
