package provider

import (
	"context"
	"html/template"
	"net/http"
	"sync"

	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/logging"
)

// Providers returns the provider output for the template h is rendering. Use
// it from inside a render, where h carries the live request and data. An
// empty group runs every provider; versionID, when set, replaces every
// cache-busting token.
//
//	{{ providers .Self "styles" }}   in <head>
//	{{ providers .Self "scripts" }}  before </body>
func Providers(ctx context.Context, h Handle, group, versionID string) (template.HTML, error) {
	chain, err := BuildChain(h, versionID)
	if err != nil {
		return "", err
	}

	var (
		req  *http.Request
		data map[string]any
	)
	if h != nil {
		req, data = h.Request(), h.Data()
	}

	out, err := NewRun(req, data, group, chain).Content(ctx)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil // #nosec G203 -- fragments are built from escaped tags
}

// TemplateProviders returns the provider output for a template identified by
// app and name, for callers outside a render. The template is looked up but
// not executed.
func TemplateProviders(ctx context.Context, req *http.Request, app, name string, data map[string]any, group, versionID string) (template.HTML, error) {
	settings := current()
	if settings == nil {
		return "", errors.ErrNotInitialized()
	}
	if settings.Loader == nil {
		return "", errors.NewConfigError(errors.ErrCodeNotInitialized, "no template loader installed")
	}

	h, err := settings.Loader.Template(app, name)
	if err != nil {
		return "", err
	}

	chain, err := BuildChain(h, versionID)
	if err != nil {
		return "", err
	}

	out, err := NewRun(req, data, group, chain).Content(ctx)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil // #nosec G203 -- fragments are built from escaped tags
}

var deprecations sync.Map

func warnDeprecated(ctx context.Context, name, replacement string) {
	if _, warned := deprecations.LoadOrStore(name, struct{}{}); warned {
		return
	}
	logger := logging.FromContext(ctx)
	if s := current(); s != nil {
		logger = s.Logger
	}
	logger.Warn(ctx, nil, name+" is deprecated", "replacement", replacement)
}

// LinkCSS returns the styles group of h.
//
// Deprecated: use Providers(ctx, h, "styles", versionID).
func LinkCSS(ctx context.Context, h Handle, versionID string) (template.HTML, error) {
	warnDeprecated(ctx, "LinkCSS", `Providers(ctx, h, "styles", versionID)`)
	return Providers(ctx, h, "styles", versionID)
}

// LinkJS returns the scripts group of h.
//
// Deprecated: use Providers(ctx, h, "scripts", versionID).
func LinkJS(ctx context.Context, h Handle, versionID string) (template.HTML, error) {
	warnDeprecated(ctx, "LinkJS", `Providers(ctx, h, "scripts", versionID)`)
	return Providers(ctx, h, "scripts", versionID)
}

// LinkTemplateCSS returns the styles group of a template outside a render.
//
// Deprecated: use TemplateProviders with group "styles".
func LinkTemplateCSS(ctx context.Context, req *http.Request, app, name string, data map[string]any, versionID string) (template.HTML, error) {
	warnDeprecated(ctx, "LinkTemplateCSS", `TemplateProviders(..., "styles", versionID)`)
	return TemplateProviders(ctx, req, app, name, data, "styles", versionID)
}

// LinkTemplateJS returns the scripts group of a template outside a render.
//
// Deprecated: use TemplateProviders with group "scripts".
func LinkTemplateJS(ctx context.Context, req *http.Request, app, name string, data map[string]any, versionID string) (template.HTML, error) {
	warnDeprecated(ctx, "LinkTemplateJS", `TemplateProviders(..., "scripts", versionID)`)
	return TemplateProviders(ctx, req, app, name, data, "scripts", versionID)
}
