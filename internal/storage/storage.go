package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when the addressed file or object does not exist.
var ErrNotFound = errors.New("not found")

// Service reads and writes whole files addressed by URI.
type Service interface {
	// Read returns the content at uri, or an error wrapping ErrNotFound.
	Read(ctx context.Context, uri string) ([]byte, error)

	// Write replaces the content at uri.
	Write(ctx context.Context, uri string, data []byte) error
}

// Router sends gs:// URIs to Cloud Storage and everything else to the local
// filesystem.
type Router struct {
	Local Service
	GCS   Service
}

// NewRouter creates a Router backed by the local filesystem and Cloud Storage.
func NewRouter() *Router {
	return &Router{
		Local: LocalStorage{},
		GCS:   NewGCSStorage(),
	}
}

func (r *Router) Read(ctx context.Context, uri string) ([]byte, error) {
	return r.pick(uri).Read(ctx, uri)
}

func (r *Router) Write(ctx context.Context, uri string, data []byte) error {
	return r.pick(uri).Write(ctx, uri, data)
}

func (r *Router) pick(uri string) Service {
	if IsGCSURI(uri) {
		return r.GCS
	}
	return r.Local
}

// IsGCSURI reports whether uri uses the gs:// scheme.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, gcsScheme)
}

// Join appends a file name to a directory path or a gs:// prefix.
func Join(dir, name string) string {
	if IsGCSURI(dir) {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}

var _ Service = (*Router)(nil)
