// Package provider generates the static-asset HTML for a template and every
// template it inherits from.
//
// Each application configures an ordered list of providers. For a given
// rendering template, the chain builder collects one TemplateInfo per level
// of inheritance, root first, and a Run invokes every provider of every
// level in order. Providers emit fragments such as <link> or <script> tags,
// and may compile a source asset first. The fragments are joined with
// newlines into one HTML-safe string.
//
// Two entry points exist: Providers, used while a template renders, and
// TemplateProviders, used from ordinary code with an app and template name.
package provider

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
)

// Provider produces zero or one fragment for one level of a template chain.
// Providers are shared by concurrent runs and must not keep per-run state.
// An empty fragment means the provider has nothing to contribute.
type Provider interface {
	Group() string
	Content(ctx context.Context, run *Run, ti *TemplateInfo) (string, error)
}

// Handle is a template as seen by the rendering engine.
type Handle interface {
	App() string
	// AppDir is the absolute directory of the owning application.
	AppDir() string
	Name() string
	// Parent returns the template this one inherits from, or nil at the root.
	Parent() Handle
	Request() *http.Request
	Data() map[string]any
}

// Loader looks up templates by application and name without rendering them.
type Loader interface {
	Template(app, name string) (Handle, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(app, name string) (Handle, error)

// Template calls f(app, name).
func (f LoaderFunc) Template(app, name string) (Handle, error) {
	return f(app, name)
}

// Expand replaces the {appdir}, {app} and {template} placeholders in pattern
// with the values of ti. {template} is the template name without extension.
func Expand(pattern string, ti *TemplateInfo) string {
	r := strings.NewReplacer(
		"{appdir}", ti.AppDir,
		"{app}", ti.App,
		"{template}", ti.TemplateName(),
	)
	return filepath.FromSlash(r.Replace(pattern))
}
