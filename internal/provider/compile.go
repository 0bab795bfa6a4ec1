package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/static"
)

// CompileMode selects the fragment a CompileProvider emits after a
// successful compile.
type CompileMode string

const (
	// ModeLink references the compiled output with a <link> or <script> tag.
	ModeLink CompileMode = "link"
	// ModeInline embeds the compiled output in a <style> or <script> block.
	ModeInline CompileMode = "inline"
	// ModeNone only keeps the output fresh; another provider links it.
	ModeNone CompileMode = "none"
)

// CompileOptions configure a CompileProvider. Source, Output, and Command may
// use the {appdir} and {template} placeholders; Command may also use {source}
// and {output}.
type CompileOptions struct {
	Group   string
	Source  string
	Output  string
	Command []string
	// Compiler replaces Command when set.
	Compiler  build.Compiler
	Mode      CompileMode
	CacheBust CacheBust
	// CheckOnce checks freshness only the first time a template runs, for
	// production deployments where sources do not change.
	CheckOnce bool
}

// CompileProvider compiles a template's source asset, such as a .scss file,
// when its output is missing or older than the source.
type CompileProvider struct {
	opts     CompileOptions
	name     string
	command  *build.CommandCompiler
	builder  *build.Builder
	resolver static.Resolver
	hasher   *build.HashProvider
	// markers protects template actions in the source from the compiler.
	markers bool
}

// NewCompileProvider creates a generic compile provider.
func NewCompileProvider(opts CompileOptions, deps Deps) (*CompileProvider, error) {
	return newCompileProvider("compile", opts, deps)
}

// NewScssProvider creates a compile provider for
// {appdir}/styles/{template}.scss using the scss command.
func NewScssProvider(opts CompileOptions, deps Deps) (*CompileProvider, error) {
	if opts.Source == "" {
		opts.Source = "{appdir}/styles/{template}.scss"
	}
	if opts.Output == "" {
		opts.Output = "{appdir}/styles/{template}.css"
	}
	if len(opts.Command) == 0 && opts.Compiler == nil {
		opts.Command = []string{"scss", "--load-path=.", "--unix-newlines", "{source}", "{output}"}
	}
	return newCompileProvider("scss", opts, deps)
}

// NewLessProvider creates a compile provider for
// {appdir}/styles/{template}.less using lessc.
func NewLessProvider(opts CompileOptions, deps Deps) (*CompileProvider, error) {
	if opts.Source == "" {
		opts.Source = "{appdir}/styles/{template}.less"
	}
	if opts.Output == "" {
		opts.Output = "{appdir}/styles/{template}.css"
	}
	if len(opts.Command) == 0 && opts.Compiler == nil {
		opts.Command = []string{"lessc", "--source-map", "{source}", "{output}"}
	}
	return newCompileProvider("less", opts, deps)
}

// NewScssmProvider creates a compile provider for scss sources that contain
// template actions: {appdir}/styles/{template}.scssm compiles to a .cssm
// file, which the template_css provider then renders with the run's data.
// It only keeps the output fresh unless another mode is configured.
func NewScssmProvider(opts CompileOptions, deps Deps) (*CompileProvider, error) {
	if opts.Source == "" {
		opts.Source = "{appdir}/styles/{template}.scssm"
	}
	if opts.Output == "" {
		opts.Output = "{appdir}/styles/{template}.cssm"
	}
	if opts.Mode == "" {
		opts.Mode = ModeNone
	}
	if len(opts.Command) == 0 && opts.Compiler == nil {
		opts.Command = []string{"scss", "--load-path=.", "--unix-newlines", "{source}", "{output}"}
	}
	p, err := newCompileProvider("scssm", opts, deps)
	if err != nil {
		return nil, err
	}
	p.markers = true
	return p, nil
}

func newCompileProvider(name string, opts CompileOptions, deps Deps) (*CompileProvider, error) {
	if opts.Group == "" {
		opts.Group = "styles"
	}
	if opts.Mode == "" {
		opts.Mode = ModeLink
	}
	switch opts.Mode {
	case ModeLink, ModeInline, ModeNone:
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown compile mode %q", opts.Mode))
	}
	if err := opts.CacheBust.validate(); err != nil {
		return nil, err
	}
	if opts.CacheBust == "" {
		opts.CacheBust = CacheBustMtime
	}
	if opts.Source == "" || opts.Output == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "compile provider requires source and output")
	}
	if opts.Mode == ModeLink && deps.Resolver == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "compile provider in link mode requires a static resolver")
	}

	deps = deps.withDefaults()
	p := &CompileProvider{
		opts:     opts,
		name:     name,
		builder:  deps.Builder,
		resolver: deps.Resolver,
		hasher:   deps.Hasher,
	}

	if opts.Compiler == nil {
		cc, err := build.NewCommandCompiler(opts.Command, deps.Allowed)
		if err != nil {
			return nil, err
		}
		p.command = cc
	}

	return p, nil
}

// Group returns the provider group.
func (p *CompileProvider) Group() string {
	return p.opts.Group
}

func (p *CompileProvider) String() string {
	return p.name
}

// Paths returns the source and output paths for ti.
func (p *CompileProvider) Paths(ti *TemplateInfo) (source, output string) {
	return Expand(p.opts.Source, ti), Expand(p.opts.Output, ti)
}

// Ensure compiles the template's source when it is stale. It reports whether
// a source exists for the template.
func (p *CompileProvider) Ensure(ctx context.Context, ti *TemplateInfo) (build.Result, bool, error) {
	source, output := p.Paths(ti)
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return build.Result{}, false, nil
	}

	ctx, span := tracer.Start(ctx, "provider.Compile",
		trace.WithAttributes(
			attribute.String("compile.provider", p.name),
			attribute.String("compile.source", source),
			attribute.String("compile.output", output),
			attribute.String("template", ti.String()),
		),
	)
	defer span.End()

	res, err := p.builder.Ensure(ctx, source, output, p.compilerFor(ti, source, output),
		build.EnsureOptions{CheckOnce: p.opts.CheckOnce})
	if err != nil {
		// the source disappeared between the stat and the build
		var ae *errors.AssetError
		if !stderrors.As(err, &ae) && stderrors.Is(err, fs.ErrNotExist) {
			return build.Result{}, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "compile failed")
		return res, true, err
	}
	span.SetAttributes(attribute.Bool("compile.compiled", res.Compiled))

	return res, true, nil
}

// Content compiles when needed and returns the fragment for the configured
// mode.
func (p *CompileProvider) Content(ctx context.Context, _ *Run, ti *TemplateInfo) (string, error) {
	res, ok, err := p.Ensure(ctx, ti)
	if err != nil || !ok {
		return "", err
	}

	switch p.opts.Mode {
	case ModeNone:
		return "", nil
	case ModeInline:
		data, err := os.ReadFile(res.Output)
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound, "read compiled output", err).
				WithLocation(res.Output, 0, 0)
		}
		if isScript(res.Output) {
			return "<script>\n" + rawText(string(data)) + "\n</script>", nil
		}
		return `<style type="text/css">` + "\n" + rawText(string(data)) + "\n</style>", nil
	default:
		href, err := assetURL(p.resolver, p.hasher, res.Output, ti.VersionID, p.opts.CacheBust)
		if err != nil {
			return "", err
		}
		if isScript(res.Output) {
			return scriptTag(href, false), nil
		}
		return cssLinkTag(href), nil
	}
}

// compilerFor returns the compiler for one template. Configured command
// arguments that name the template's source or output path are rewritten to
// the {source} and {output} placeholders so the command writes to the
// temporary file of the atomic build.
func (p *CompileProvider) compilerFor(ti *TemplateInfo, source, output string) build.Compiler {
	c := p.commandFor(ti, source, output)
	if p.markers {
		return build.MarkerCompiler{Inner: c}
	}
	return c
}

func (p *CompileProvider) commandFor(ti *TemplateInfo, source, output string) build.Compiler {
	if p.opts.Compiler != nil {
		return p.opts.Compiler
	}

	cc := *p.command
	cc.Args = make([]string, len(p.command.Args))
	for i, arg := range p.command.Args {
		switch Expand(arg, ti) {
		case output:
			cc.Args[i] = "{output}"
		case source:
			cc.Args[i] = "{source}"
		default:
			cc.Args[i] = arg
		}
	}
	cc.Vars = map[string]string{
		"{appdir}":   ti.AppDir,
		"{app}":      ti.App,
		"{template}": ti.TemplateName(),
	}
	return &cc
}

var closingTag = regexp.MustCompile(`(?i)</(style|script)`)

// rawText keeps embedded content from closing its <style> or <script> element.
func rawText(content string) string {
	return closingTag.ReplaceAllString(content, `<\/$1`)
}

func isScript(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".js" || ext == ".mjs"
}
