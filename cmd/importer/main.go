// Package main bulk-imports a product catalog folder. Every image under
// <dir>/<category>/ becomes one product in that category, named after the
// file, through the same mutation path the interactive client uses. An
// optional CSV manifest with the columns file,name,description,price
// overrides the generated fields.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/client/app"
	"github.com/credihogar/catalog/internal/logger"
)

func main() {
	var (
		dir         string
		manifest    string
		workers     int
		backendKind string
		baseURL     string
		caFile      string
		dataDir     string
		email       string
		password    string
		logLevel    string
	)
	flag.StringVar(&dir, "dir", "Catalog", "catalog root: <dir>/<category>/<image>")
	flag.StringVar(&manifest, "manifest", "", "optional CSV manifest (file,name,description,price)")
	flag.IntVar(&workers, "workers", 4, "concurrent uploads")
	flag.StringVar(&backendKind, "backend", "", "backend: rest | direct | local")
	flag.StringVar(&baseURL, "url", os.Getenv("CATALOG_API_URL"), "API base URL")
	flag.StringVar(&caFile, "ca", "", "path to a CA certificate to trust")
	flag.StringVar(&dataDir, "data", ".credihogar", "client data directory")
	flag.StringVar(&email, "email", os.Getenv("CATALOG_EMAIL"), "account email")
	flag.StringVar(&password, "password", os.Getenv("CATALOG_PASSWORD"), "account password")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.Parse()

	log := logger.New()
	if err := log.Init(logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()
	zl := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(app.Options{
		Backend: backendKind,
		URL:     baseURL,
		CAFile:  caFile,
		Timeout: 2 * time.Minute,
		DataDir: dataDir,
		Logger:  zl,
	})
	if err != nil {
		zl.Fatal("cannot start client", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	if a.Sessions.Current() == nil || email != "" {
		if _, err := a.Sessions.SignIn(ctx, email, password); err != nil {
			zl.Fatal("sign in failed", zap.Error(err))
		}
	}

	rows, err := loadManifest(manifest)
	if err != nil {
		zl.Fatal("cannot load manifest", zap.Error(err))
	}
	jobs, err := scan(filepath.Clean(dir), rows)
	if err != nil {
		zl.Fatal("cannot scan catalog", zap.Error(err))
	}
	zl.Info("importing", zap.Int("images", len(jobs)), zap.Int("workers", workers))

	results, err := importAll(ctx, a.Mutations, jobs, workers, zl)
	if err != nil {
		zl.Fatal("import aborted", zap.Error(err))
	}
	created, err := summarize(results)
	zl.Info("import finished", zap.Int("created", created), zap.Int("failed", len(results)-created))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
