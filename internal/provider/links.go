package provider

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"strconv"
	"strings"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/static"
)

// CacheBust selects how the cache-busting token of a link is computed when
// the run has no version id.
type CacheBust string

const (
	// CacheBustMtime uses the file's modification time in minutes since the epoch.
	CacheBustMtime CacheBust = "mtime"
	// CacheBustHash uses a checksum of the file's content.
	CacheBustHash CacheBust = "hash"
	// CacheBustNone emits no token.
	CacheBustNone CacheBust = "none"
)

func (c CacheBust) validate() error {
	switch c {
	case "", CacheBustMtime, CacheBustHash, CacheBustNone:
		return nil
	default:
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown cache_bust %q", c))
	}
}

type linkKind int

const (
	linkCSS linkKind = iota
	linkJS
)

// LinkOptions configure a LinkProvider.
type LinkOptions struct {
	Group string
	// Filepath locates the asset; it may use the {appdir} and {template}
	// placeholders.
	Filepath  string
	CacheBust CacheBust
	// ModuleEntry marks the script of the most-derived template as an ES
	// module entry point. Scripts only.
	ModuleEntry bool
}

// LinkProvider references an existing stylesheet or script of a template.
// Templates without the file contribute nothing.
type LinkProvider struct {
	opts     LinkOptions
	kind     linkKind
	resolver static.Resolver
	hasher   *build.HashProvider
}

// NewCSSLinkProvider creates a provider emitting <link> tags for
// {appdir}/styles/{template}.css by default.
func NewCSSLinkProvider(opts LinkOptions, deps Deps) (*LinkProvider, error) {
	if opts.Group == "" {
		opts.Group = "styles"
	}
	if opts.Filepath == "" {
		opts.Filepath = "{appdir}/styles/{template}.css"
	}
	return newLinkProvider(opts, linkCSS, deps)
}

// NewJSLinkProvider creates a provider emitting <script> tags for
// {appdir}/scripts/{template}.js by default.
func NewJSLinkProvider(opts LinkOptions, deps Deps) (*LinkProvider, error) {
	if opts.Group == "" {
		opts.Group = "scripts"
	}
	if opts.Filepath == "" {
		opts.Filepath = "{appdir}/scripts/{template}.js"
	}
	return newLinkProvider(opts, linkJS, deps)
}

func newLinkProvider(opts LinkOptions, kind linkKind, deps Deps) (*LinkProvider, error) {
	if err := opts.CacheBust.validate(); err != nil {
		return nil, err
	}
	if opts.CacheBust == "" {
		opts.CacheBust = CacheBustMtime
	}
	if deps.Resolver == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "link provider requires a static resolver")
	}
	deps = deps.withDefaults()
	return &LinkProvider{opts: opts, kind: kind, resolver: deps.Resolver, hasher: deps.Hasher}, nil
}

// Group returns the provider group.
func (p *LinkProvider) Group() string {
	return p.opts.Group
}

func (p *LinkProvider) String() string {
	if p.kind == linkJS {
		return "link_js"
	}
	return "link_css"
}

// Content returns the tag for the template's asset, or nothing when the file
// does not exist.
func (p *LinkProvider) Content(_ context.Context, run *Run, ti *TemplateInfo) (string, error) {
	path := Expand(p.opts.Filepath, ti)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotFound, "stat asset", err).WithLocation(path, 0, 0)
	}
	if info.IsDir() {
		return "", nil
	}

	href, err := assetURL(p.resolver, p.hasher, path, ti.VersionID, p.opts.CacheBust)
	if err != nil {
		return "", err
	}

	if p.kind == linkCSS {
		return cssLinkTag(href), nil
	}
	module := p.opts.ModuleEntry && run != nil && run.IsLast()
	return scriptTag(href, module), nil
}

// assetURL resolves the public URL of path and appends the cache-busting
// token.
func assetURL(resolver static.Resolver, hasher *build.HashProvider, path, versionID string, mode CacheBust) (string, error) {
	href, err := resolver.URL(path)
	if err != nil {
		return "", err
	}

	token := versionID
	if token == "" {
		token, err = cacheToken(hasher, path, mode)
		if err != nil {
			return "", err
		}
	}
	if token == "" {
		return href, nil
	}

	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return href + sep + "v=" + token, nil
}

func cacheToken(hasher *build.HashProvider, path string, mode CacheBust) (string, error) {
	switch mode {
	case CacheBustNone:
		return "", nil
	case CacheBustHash:
		hash, err := hasher.ContentHash(path)
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound, "hash asset", err).WithLocation(path, 0, 0)
		}
		return hash, nil
	default:
		info, err := os.Stat(path)
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound, "stat asset", err).WithLocation(path, 0, 0)
		}
		return strconv.FormatInt(info.ModTime().Unix()/60, 10), nil
	}
}

func cssLinkTag(href string) string {
	return `<link rel="stylesheet" type="text/css" href="` + template.HTMLEscapeString(href) + `" />`
}

func scriptTag(href string, module bool) string {
	if module {
		return `<script type="module" src="` + template.HTMLEscapeString(href) + `"></script>`
	}
	return `<script src="` + template.HTMLEscapeString(href) + `"></script>`
}
