package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// URLPrefix is the site path under which local uploads are served.
const URLPrefix = "uploads"

// Local keeps images in a directory served by the catalog server itself.
type Local struct {
	// Dir is the root directory on disk.
	Dir string
	// BaseURL is the public origin, without a trailing slash.
	BaseURL string
}

// NewLocal creates a Local store rooted at dir.
func NewLocal(dir, baseURL string) *Local {
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Put writes r to Dir/bucket/name and returns "uploads/bucket/name".
func (s *Local) Put(_ context.Context, bucket, name string, r io.Reader) (string, error) {
	rel, err := cleanRel(path.Join(bucket, name))
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return URLPrefix + "/" + rel, nil
}

// URL returns BaseURL/path. Absolute URLs pass through.
func (s *Local) URL(p string) string {
	if isAbsolute(p) {
		return p
	}
	return s.BaseURL + "/" + strings.TrimLeft(p, "/")
}

// Locate accepts either an absolute URL under BaseURL or a site-relative
// path and returns the object path if it lies under the uploads prefix.
func (s *Local) Locate(u string) (string, bool) {
	p := u
	if isAbsolute(u) {
		rest, ok := strings.CutPrefix(u, s.BaseURL+"/")
		if !ok {
			return "", false
		}
		p = rest
	}
	p = strings.TrimLeft(p, "/")
	rel, ok := strings.CutPrefix(p, URLPrefix+"/")
	if !ok {
		return "", false
	}
	if _, err := cleanRel(rel); err != nil {
		return "", false
	}
	return p, true
}

// Remove deletes the file behind path.
func (s *Local) Remove(_ context.Context, p string) error {
	rel, ok := strings.CutPrefix(strings.TrimLeft(p, "/"), URLPrefix+"/")
	if !ok {
		return fmt.Errorf("path %q is outside the upload area", p)
	}
	rel, err := cleanRel(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func cleanRel(p string) (string, error) {
	c := path.Clean("/" + p)[1:]
	if c == "" || c != strings.TrimLeft(p, "/") {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return c, nil
}

// isAbsolute reports whether u carries a scheme (http, https, file).
func isAbsolute(u string) bool {
	scheme, _, ok := strings.Cut(u, "://")
	return ok && scheme != "" && !strings.Contains(scheme, "/")
}
