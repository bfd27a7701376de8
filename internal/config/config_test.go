package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Options {
	return &Options{
		Port:            "localhost:8080",
		DatabaseDriver:  "postgres",
		DatabaseDSN:     "postgres://localhost/credihogar",
		SessionLifetime: 24 * time.Hour,
		BaseURL:         "http://localhost:8080",
		FileStore:       "local",
		UploadDir:       "uploads",
		LogLevel:        "info",
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"address": ":9000",
		"database_driver": "mysql",
		"database_dsn": "user:pass@/credihogar",
		"session_lifetime": "2h"
	}`), 0o600))

	opts := defaults()
	require.NoError(t, Load(path, opts))

	assert.Equal(t, ":9000", opts.Port)
	assert.Equal(t, "mysql", opts.DatabaseDriver)
	assert.Equal(t, "user:pass@/credihogar", opts.DatabaseDSN)
	assert.Equal(t, 2*time.Hour, opts.SessionLifetime)
	assert.Equal(t, "uploads", opts.UploadDir, "unset keys keep their defaults")
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"base_url: https://shop.example.com/\nfile_store: cloudinary\ncloudinary_url: cloudinary://k:s@demo\n",
	), 0o600))

	opts := defaults()
	require.NoError(t, Load(path, opts))
	require.NoError(t, opts.Validate())

	assert.Equal(t, "https://shop.example.com", opts.BaseURL)
	assert.Equal(t, "cloudinary", opts.FileStore)
}

func TestLoad_MissingFile(t *testing.T) {
	opts := defaults()
	assert.NoError(t, Load(filepath.Join(t.TempDir(), "nope.json"), opts))
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session_lifetime":"forever"}`), 0o600))
	assert.Error(t, Load(path, defaults()))
}

func TestValidate(t *testing.T) {
	opts := defaults()
	opts.DatabaseDriver = "sqlite"
	assert.Error(t, opts.Validate())

	opts = defaults()
	opts.FileStore = "cloudinary"
	assert.Error(t, opts.Validate())

	opts = defaults()
	opts.SessionLifetime = 0
	assert.Error(t, opts.Validate())

	opts = defaults()
	opts.DatabaseDSN = ""
	assert.Error(t, opts.Validate(), "sql drivers need a DSN")
	opts.DatabaseDriver = "memory"
	assert.NoError(t, opts.Validate())

	opts = defaults()
	opts.TLSCert = "server.crt"
	assert.Error(t, opts.Validate(), "cert without key")

	assert.NoError(t, defaults().Validate())
}

func TestValidate_TLSDevDefaults(t *testing.T) {
	opts := defaults()
	opts.TLSDev = true
	require.NoError(t, opts.Validate())
	assert.Equal(t, "certs/server.crt", opts.TLSCert)
	assert.Equal(t, "certs/server.key", opts.TLSKey)

	opts = defaults()
	opts.TLSDev = true
	opts.TLSCert, opts.TLSKey = "a.crt", "a.key"
	require.NoError(t, opts.Validate())
	assert.Equal(t, "a.crt", opts.TLSCert)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("UPLOAD_DIR", "/srv/uploads")

	opts := defaults()
	applyEnv(opts)
	assert.Equal(t, ":7000", opts.Port)
	assert.Equal(t, "/srv/uploads", opts.UploadDir)
}
