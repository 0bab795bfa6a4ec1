package provider

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"sync"
	"time"

	"github.com/conneroisu/assetry/internal/errors"
)

// InlineOptions configure a TemplateProvider.
type InlineOptions struct {
	Group string
	// Filepath locates the template; it may use the {appdir} and {template}
	// placeholders.
	Filepath string
}

// TemplateProvider renders a per-template stylesheet or script template with
// the run's data and embeds the result in the page. The file is parsed inside
// its <style> or <script> element, so values are escaped for CSS or
// JavaScript.
type TemplateProvider struct {
	opts InlineOptions
	open string
	end  string
	name string

	mu    sync.Mutex
	cache map[string]cachedTemplate
}

type cachedTemplate struct {
	modTime time.Time
	tmpl    *template.Template
}

// NewTemplateCSSProvider creates a provider for {appdir}/styles/{template}.cssm
// by default.
func NewTemplateCSSProvider(opts InlineOptions) *TemplateProvider {
	if opts.Group == "" {
		opts.Group = "styles"
	}
	if opts.Filepath == "" {
		opts.Filepath = "{appdir}/styles/{template}.cssm"
	}
	return &TemplateProvider{
		opts:  opts,
		open:  `<style type="text/css">` + "\n",
		end:   "\n</style>",
		name:  "template_css",
		cache: make(map[string]cachedTemplate),
	}
}

// NewTemplateJSProvider creates a provider for {appdir}/scripts/{template}.jsm
// by default.
func NewTemplateJSProvider(opts InlineOptions) *TemplateProvider {
	if opts.Group == "" {
		opts.Group = "scripts"
	}
	if opts.Filepath == "" {
		opts.Filepath = "{appdir}/scripts/{template}.jsm"
	}
	return &TemplateProvider{
		opts:  opts,
		open:  "<script>\n",
		end:   "\n</script>",
		name:  "template_js",
		cache: make(map[string]cachedTemplate),
	}
}

// Group returns the provider group.
func (p *TemplateProvider) Group() string {
	return p.opts.Group
}

func (p *TemplateProvider) String() string {
	return p.name
}

// Content renders the template's file, or returns nothing when it does not
// exist.
func (p *TemplateProvider) Content(_ context.Context, run *Run, ti *TemplateInfo) (string, error) {
	path := Expand(p.opts.Filepath, ti)
	tmpl, err := p.load(path)
	if err != nil || tmpl == nil {
		return "", err
	}

	var data map[string]any
	if run != nil {
		data = run.Data
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.NewBuildError(errors.ErrCodeRenderFailed, "render inline template", err).
			WithLocation(path, 0, 0)
	}
	return buf.String(), nil
}

func (p *TemplateProvider) load(path string) (*template.Template, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "stat inline template", err).WithLocation(path, 0, 0)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[path]; ok && cached.modTime.Equal(info.ModTime()) {
		return cached.tmpl, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "read inline template", err).WithLocation(path, 0, 0)
	}
	tmpl, err := template.New(path).Option("missingkey=zero").Parse(p.open + string(src) + p.end)
	if err != nil {
		return nil, errors.NewBuildError(errors.ErrCodeRenderFailed, "parse inline template", err).
			WithLocation(path, 0, 0)
	}

	p.cache[path] = cachedTemplate{modTime: info.ModTime(), tmpl: tmpl}
	return tmpl, nil
}
