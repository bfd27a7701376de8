// Package filestore stores uploaded product images in a public bucket.
package filestore

import (
	"context"
	"io"
)

// Store is a public image bucket.
type Store interface {
	// Put stores r as name inside bucket and returns the object path. The
	// path is either relative to the site root or an absolute URL.
	Put(ctx context.Context, bucket, name string, r io.Reader) (string, error)
	// URL returns the absolute public URL of path.
	URL(path string) string
	// Locate maps a public URL back to an object this store owns.
	Locate(url string) (string, bool)
	// Remove deletes the object at path. Missing objects are not an error.
	Remove(ctx context.Context, path string) error
}
