// Package renderer loads and renders the html/template files of each
// application.
//
// Templates live in <app>/templates and inherit by invoking their parent at
// the top level, for example {{template "base.htm" .}} or, across
// applications, {{template "shared/base.htm" .}}. The parent's blocks are
// overridden by the child's {{define}} actions. Every render exposes the
// rendering template as .Self and a providers function that emits the asset
// tags of the template and all of its ancestors:
//
//	<head>{{ providers .Self "styles" }}</head>
//
// Creating an Engine installs the provider settings built from the
// configuration, so it must happen before providers are used.
package renderer

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/config"
	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/logging"
	"github.com/conneroisu/assetry/internal/metrics"
	"github.com/conneroisu/assetry/internal/provider"
	"github.com/conneroisu/assetry/internal/registry"
	"github.com/conneroisu/assetry/internal/static"
)

// RenderData is the value templates are executed with.
type RenderData struct {
	Self    *Template
	Request *http.Request
	Data    map[string]any
}

// Options hold optional collaborators of an Engine.
type Options struct {
	// Deps override the provider collaborators built from the configuration.
	Deps    provider.Deps
	Logger  logging.Logger
	Metrics *metrics.Collector
}

// Engine looks up and renders templates.
type Engine struct {
	registry *registry.AppRegistry
	logger   logging.Logger

	mu      sync.RWMutex
	sources map[string]*source
}

// New creates an engine for the applications in reg and installs the
// provider settings described by cfg.
func New(cfg *config.Config, reg *registry.AppRegistry, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	deps := opts.Deps
	if deps.Resolver == nil {
		resolver, err := static.FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		deps.Resolver = resolver
	}
	if deps.Builder == nil {
		deps.Builder = build.NewBuilder(cfg.Build.Timeout)
		if opts.Metrics != nil {
			deps.Builder.Observer = opts.Metrics
		}
	}

	e := &Engine{
		registry: reg,
		logger:   logger.WithComponent("renderer"),
		sources:  make(map[string]*source),
	}

	settings, err := provider.FromConfig(cfg, deps)
	if err != nil {
		return nil, err
	}
	settings.Loader = provider.LoaderFunc(func(app, name string) (provider.Handle, error) {
		t, err := e.Template(app, name)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
	settings.Logger = logger.WithComponent("provider")
	settings.Metrics = opts.Metrics
	if provider.Initialized() {
		e.logger.Warn(context.Background(), nil, "replacing installed provider settings")
	}
	if err := provider.Init(settings); err != nil {
		return nil, err
	}

	e.logger.Debug(context.Background(), "template engine ready",
		"apps", reg.Count(), "providers", len(settings.Default))
	return e, nil
}

// Registry returns the application registry of the engine.
func (e *Engine) Registry() *registry.AppRegistry {
	return e.registry
}

// SplitName splits "app/template.html#block" into its parts. The app and
// block are optional.
func SplitName(full string) (app, name, block string) {
	name = full
	if i := strings.LastIndex(name, "#"); i >= 0 {
		name, block = name[:i], name[i+1:]
	}
	if i := strings.Index(name, "/"); i >= 0 {
		app, name = name[:i], name[i+1:]
	}
	return app, name, block
}

// Template returns the template name of app without rendering it. Every
// ancestor must exist.
func (e *Engine) Template(app, name string) (*Template, error) {
	t, err := e.lookup(app, name)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{t.String(): true}
	for cur := t; ; {
		parent, err := cur.parent()
		if err != nil {
			return nil, fmt.Errorf("%s extends %q: %w", cur, cur.ParentName(), err)
		}
		if parent == nil || seen[parent.String()] {
			break
		}
		seen[parent.String()] = true
		cur = parent
	}

	return t, nil
}

// Templates returns the template names of app.
func (e *Engine) Templates(app string) []string {
	info, ok := e.registry.Get(app)
	if !ok {
		return nil
	}
	return append([]string(nil), info.Templates...)
}

// Precompile compiles the stale assets of every template of every
// application. Templates that cannot be loaded and failed compiles are added
// to collector.
func (e *Engine) Precompile(ctx context.Context, collector *errors.ErrorCollector) ([]build.Result, error) {
	var handles []provider.Handle
	for _, app := range e.registry.GetAll() {
		for _, name := range app.Templates {
			t, err := e.Template(app.Name, name)
			if err != nil {
				collector.Add(app.Name+"/"+name, "", err)
				continue
			}
			handles = append(handles, t)
		}
	}

	logger := e.logger.With("templates", len(handles))
	perf := logging.StartOperation(logger, "precompile")
	results, err := provider.Precompile(ctx, handles, collector)
	if err != nil {
		perf.EndWithError(ctx, err)
		return results, err
	}
	perf.End(ctx, "assets", len(results), "failed", collector.Count())
	return results, nil
}

// Forget drops every parsed template.
func (e *Engine) Forget() {
	e.mu.Lock()
	e.sources = make(map[string]*source)
	e.mu.Unlock()
}

func (e *Engine) lookup(app, name string) (*Template, error) {
	if !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) || !registry.IsTemplate(name) {
		return nil, errors.ErrTemplateNotFound(app, name)
	}
	info, ok := e.registry.Get(app)
	if !ok {
		return nil, errors.ErrTemplateNotFound(app, name)
	}

	path := filepath.Join(info.TemplateDir(), name)
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.ErrTemplateNotFound(app, name)
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "stat template", err).WithLocation(path, 0, 0)
	}

	key := app + "/" + name
	e.mu.RLock()
	src, ok := e.sources[key]
	e.mu.RUnlock()

	if !ok || !src.modTime.Equal(stat.ModTime()) {
		src, err = parseSource(path)
		if err != nil {
			return nil, errors.NewBuildError(errors.ErrCodeRenderFailed, "parse template", err).
				WithLocation(path, 0, 0).WithTemplate(key)
		}
		e.mu.Lock()
		e.sources[key] = src
		e.mu.Unlock()
	}

	return &Template{engine: e, app: info, name: name, src: src}, nil
}

// Render executes template name of app with data. The name may select a
// block with "template.html#block".
func (e *Engine) Render(ctx context.Context, w io.Writer, req *http.Request, app, name string, data map[string]any) error {
	name, block := splitBlock(name)

	top, err := e.Template(app, name)
	if err != nil {
		return err
	}
	top.req, top.data = req, data

	levels, err := top.levels()
	if err != nil {
		return err
	}

	// ancestors are added under the name their child invokes them with, root
	// first, so that each child's definitions replace the parent's blocks
	set := template.New("").Funcs(e.funcs(ctx))
	for i, level := range levels {
		setName := top.String()
		if i < len(levels)-1 {
			setName = levels[i+1].ParentName()
		}
		if _, err := set.New(setName).Parse(level.src.text); err != nil {
			return errors.NewBuildError(errors.ErrCodeRenderFailed, "parse template", err).
				WithLocation(level.Path(), 0, 0).WithTemplate(level.String())
		}
	}

	target := top.String()
	if block != "" {
		target = block
	}

	perf := logging.StartOperation(e.logger, "render")

	err = set.ExecuteTemplate(w, target, RenderData{Self: top, Request: req, Data: data})
	if err != nil {
		perf.EndWithError(ctx, err, "template", top.String())
		return errors.NewBuildError(errors.ErrCodeRenderFailed, "render template", err).WithTemplate(top.String())
	}
	perf.End(ctx, "template", top.String())
	return nil
}

func (e *Engine) funcs(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"providers": func(self provider.Handle, args ...string) (template.HTML, error) {
			var group, versionID string
			if len(args) > 0 {
				group = args[0]
			}
			if len(args) > 1 {
				versionID = args[1]
			}
			return provider.Providers(ctx, self, group, versionID)
		},
	}
}

// levels returns t and its ancestors, root first.
func (t *Template) levels() ([]*Template, error) {
	var levels []*Template
	seen := make(map[string]bool)
	for cur := t; cur != nil; {
		if seen[cur.String()] {
			return nil, errors.NewConfigError(errors.ErrCodeInheritanceCycle,
				fmt.Sprintf("template inheritance cycle at %s", cur)).WithTemplate(t.String())
		}
		seen[cur.String()] = true
		levels = append(levels, cur)

		parent, err := cur.parent()
		if err != nil {
			return nil, err
		}
		cur = parent
	}

	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
	return levels, nil
}

func splitBlock(name string) (string, string) {
	if i := strings.LastIndex(name, "#"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
