// Package static turns on-disk asset paths into the public URLs clients use.
package static

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetry/internal/config"
	"github.com/conneroisu/assetry/internal/errors"
)

// Resolver maps an asset's filesystem path to its public URL.
type Resolver interface {
	URL(path string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(path string) (string, error)

// URL calls f(path).
func (f ResolverFunc) URL(path string) (string, error) {
	return f(path)
}

// FileResolver serves every file under Root below the URL Prefix, the way a
// static file handler mounted at Prefix would.
type FileResolver struct {
	Root   string
	Prefix string
}

// NewFileResolver creates a resolver for root mounted at prefix.
func NewFileResolver(root, prefix string) (*FileResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving static root: %w", err)
	}
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &FileResolver{Root: abs, Prefix: prefix}, nil
}

// FromConfig creates the resolver described by the static section.
func FromConfig(cfg *config.Config) (*FileResolver, error) {
	return NewFileResolver(cfg.Static.Root, cfg.Static.URL)
}

// URL returns Prefix joined with the slash-separated path of p relative to
// Root. Paths outside Root are rejected.
func (r *FileResolver) URL(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.ErrInvalidPath(p)
	}
	rel, err := filepath.Rel(r.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.ErrInvalidPath(p).WithContext("root", r.Root)
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return r.Prefix + path.Join(segments...), nil
}
