// Package main is the interactive catalog client. It browses and filters
// the catalog, opens the seller contact link, and lets signed-in users
// manage their products against a rest, direct or local backend.
package main

import (
	"bufio"
	"cmp"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/client/app"
	"github.com/credihogar/catalog/internal/logger"
)

var (
	version   string
	buildDate string
)

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "credihogar")
	}
	return ".credihogar"
}

// main parses command-line flags, builds the client and runs the shell.
func main() {
	var (
		backendKind string
		baseURL     string
		caFile      string
		dataDir     string
		logLevel    string
		timeout     time.Duration
		showVer     bool
	)

	flag.StringVar(&backendKind, "backend", "", "backend: rest | direct | local (default rest when -url is set, else local)")
	flag.StringVar(&baseURL, "url", os.Getenv("CATALOG_API_URL"), "API base URL, e.g. http://localhost:8080/api")
	flag.StringVar(&caFile, "ca", "", "path to a CA certificate to trust")
	flag.StringVar(&dataDir, "data", defaultDataDir(), "client data directory")
	flag.StringVar(&logLevel, "log-level", "error", "log level")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Credihogar catalog client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	log := logger.New()
	log.File = filepath.Join(dataDir, "client.log")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := log.Init(logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()

	a, err := app.New(app.Options{
		Backend: backendKind,
		URL:     baseURL,
		CAFile:  caFile,
		Timeout: timeout,
		DataDir: dataDir,
		Logger:  log.Log,
	})
	if err != nil {
		log.Log.Fatal("cannot start client", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	sh := newShell(a, bufio.NewScanner(os.Stdin), os.Stdout)
	sh.run()
}
