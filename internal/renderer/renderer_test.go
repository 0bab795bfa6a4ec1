package renderer

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetry/internal/config"
	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/logging"
	"github.com/conneroisu/assetry/internal/metrics"
	"github.com/conneroisu/assetry/internal/provider"
	"github.com/conneroisu/assetry/internal/registry"
)

const baseTemplate = `<html><head>{{ providers .Self "styles" }}</head>` +
	`<body>{{ block "content" . }}base{{ end }}{{ providers .Self "scripts" }}</body></html>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newEngine lays out the homepage and blog apps under a temporary static
// root and starts an engine for them.
func newEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "homepage/templates/base.htm"), baseTemplate)
	writeFile(t, filepath.Join(root, "homepage/templates/index.html"),
		`{{ define "content" }}hello {{ .Data.name }}{{ end }}{{ template "base.htm" . }}`)
	writeFile(t, filepath.Join(root, "homepage/styles/base.css"), "body{}")
	writeFile(t, filepath.Join(root, "homepage/styles/index.css"), "main{}")
	writeFile(t, filepath.Join(root, "blog/templates/post.html"),
		`{{ define "content" }}post{{ end }}{{ template "homepage/base.htm" . }}`)
	writeFile(t, filepath.Join(root, "blog/scripts/post.js"), "post()")

	cfg := config.Default()
	cfg.Static.Root = root
	cfg.Apps = []config.AppConfig{
		{Name: "homepage", Path: filepath.Join(root, "homepage")},
		{Name: "blog", Path: filepath.Join(root, "blog")},
	}
	cfg.Providers = []config.ProviderConfig{
		{Type: config.ProviderLinkCSS, CacheBust: "none"},
		{Type: config.ProviderLinkJS, CacheBust: "none"},
	}

	reg, err := registry.FromConfig(cfg)
	require.NoError(t, err)

	e, err := New(cfg, reg, Options{Metrics: metrics.New(prometheus.NewRegistry())})
	require.NoError(t, err)
	t.Cleanup(provider.Reset)

	return e, root
}

func TestNewReplacesInstalledSettings(t *testing.T) {
	e, root := newEngine(t)
	require.True(t, provider.Initialized())

	cfg := config.Default()
	cfg.Static.Root = root
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Format: "text", Output: &buf})
	_, err := New(cfg, e.Registry(), Options{Logger: logger})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "replacing installed provider settings")
}

func TestRenderInheritance(t *testing.T) {
	e, _ := newEngine(t)

	var buf bytes.Buffer
	req := httptest.NewRequest("GET", "/", nil)
	err := e.Render(context.Background(), &buf, req, "homepage", "index.html", map[string]any{"name": "ann"})
	require.NoError(t, err)

	assert.Equal(t,
		`<html><head>`+
			`<link rel="stylesheet" type="text/css" href="/static/homepage/styles/base.css" />`+"\n"+
			`<link rel="stylesheet" type="text/css" href="/static/homepage/styles/index.css" />`+
			`</head><body>hello ann</body></html>`,
		buf.String())
}

func TestRenderRoot(t *testing.T) {
	e, _ := newEngine(t)

	var buf bytes.Buffer
	require.NoError(t, e.Render(context.Background(), &buf, nil, "homepage", "base.htm", nil))
	assert.Equal(t,
		`<html><head><link rel="stylesheet" type="text/css" href="/static/homepage/styles/base.css" /></head>`+
			`<body>base</body></html>`,
		buf.String())
}

func TestRenderStandaloneTemplateRepeatedly(t *testing.T) {
	e, root := newEngine(t)
	writeFile(t, filepath.Join(root, "homepage/templates/plain.html"), `<p>{{ .Data.n }}</p>`)
	_, err := e.Registry().Rescan("homepage")
	require.NoError(t, err)

	for _, n := range []string{"1", "2"} {
		var buf bytes.Buffer
		require.NoError(t, e.Render(context.Background(), &buf, nil, "homepage", "plain.html", map[string]any{"n": n}))
		assert.Equal(t, "<p>"+n+"</p>", buf.String())
	}
}

func TestRenderCrossApp(t *testing.T) {
	e, _ := newEngine(t)

	var buf bytes.Buffer
	require.NoError(t, e.Render(context.Background(), &buf, nil, "blog", "post.html", nil))
	assert.Equal(t,
		`<html><head><link rel="stylesheet" type="text/css" href="/static/homepage/styles/base.css" /></head>`+
			`<body>post<script src="/static/blog/scripts/post.js"></script></body></html>`,
		buf.String())
}

func TestRenderBlock(t *testing.T) {
	e, _ := newEngine(t)

	var buf bytes.Buffer
	require.NoError(t, e.Render(context.Background(), &buf, nil, "homepage", "index.html#content", map[string]any{"name": "bo"}))
	assert.Equal(t, "hello bo", buf.String())
}

func TestTemplateHandle(t *testing.T) {
	e, root := newEngine(t)

	index, err := e.Template("homepage", "index.html")
	require.NoError(t, err)
	assert.Equal(t, "homepage", index.App())
	assert.Equal(t, filepath.Join(root, "homepage"), index.AppDir())
	assert.Equal(t, "base.htm", index.ParentName())

	base := index.Parent()
	require.NotNil(t, base)
	assert.Equal(t, "base.htm", base.Name())
	assert.Nil(t, base.Parent(), "the root has no parent")

	post, err := e.Template("blog", "post.html")
	require.NoError(t, err)
	assert.Equal(t, "homepage", post.Parent().App())
}

func TestTemplateLookupErrors(t *testing.T) {
	e, root := newEngine(t)

	for _, tc := range []struct{ app, name string }{
		{"homepage", "missing.html"},
		{"nope", "index.html"},
		{"homepage", "../templates/index.html"},
		{"homepage", "index.txt"},
	} {
		_, err := e.Template(tc.app, tc.name)
		assert.True(t, errors.HasErrorCode(err, errors.ErrCodeTemplateNotFound), "%s/%s", tc.app, tc.name)
	}

	writeFile(t, filepath.Join(root, "homepage/templates/orphan.html"), `{{ template "gone.htm" . }}`)
	_, err := e.Template("homepage", "orphan.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `extends "gone.htm"`)

	writeFile(t, filepath.Join(root, "homepage/templates/broken.html"), `{{ if }}`)
	_, err = e.Template("homepage", "broken.html")
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeRenderFailed))
}

func TestInheritanceCycle(t *testing.T) {
	e, root := newEngine(t)
	writeFile(t, filepath.Join(root, "homepage/templates/a.htm"), `{{ template "b.htm" . }}`)
	writeFile(t, filepath.Join(root, "homepage/templates/b.htm"), `{{ template "a.htm" . }}`)

	err := e.Render(context.Background(), &bytes.Buffer{}, nil, "homepage", "a.htm", nil)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeInheritanceCycle))

	_, err = provider.TemplateProviders(context.Background(), nil, "homepage", "a.htm", nil, "", "")
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeInheritanceCycle))
}

func TestTemplateProvidersThroughEngine(t *testing.T) {
	newEngine(t)

	out, err := provider.TemplateProviders(context.Background(), nil, "blog", "post.html", nil, "scripts", "v2")
	require.NoError(t, err)
	assert.Equal(t, `<script src="/static/blog/scripts/post.js?v=v2"></script>`, string(out))
}

func TestTemplateReloadsChangedFile(t *testing.T) {
	e, root := newEngine(t)
	path := filepath.Join(root, "homepage/templates/index.html")

	var buf bytes.Buffer
	data := map[string]any{"name": "x"}
	require.NoError(t, e.Render(context.Background(), &buf, nil, "homepage", "index.html#content", data))
	assert.Equal(t, "hello x", buf.String())

	writeFile(t, path, `{{ define "content" }}changed{{ end }}{{ template "base.htm" . }}`)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	buf.Reset()
	require.NoError(t, e.Render(context.Background(), &buf, nil, "homepage", "index.html#content", data))
	assert.Equal(t, "changed", buf.String())
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, app, name, block string
	}{
		{"index.html", "", "index.html", ""},
		{"homepage/index.html", "homepage", "index.html", ""},
		{"homepage/index.html#content", "homepage", "index.html", "content"},
		{"index.html#content", "", "index.html", "content"},
	}
	for _, tt := range tests {
		app, name, block := SplitName(tt.in)
		assert.Equal(t, tt.app, app, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.block, block, tt.in)
	}
}

func TestTemplates(t *testing.T) {
	e, _ := newEngine(t)
	assert.Equal(t, []string{"base.htm", "index.html"}, e.Templates("homepage"))
	assert.Nil(t, e.Templates("nope"))
}

func TestPrecompile(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "homepage/templates/base.htm"), baseTemplate)
	writeFile(t, filepath.Join(root, "homepage/templates/index.html"), `{{ template "base.htm" . }}`)
	writeFile(t, filepath.Join(root, "homepage/styles/base.scss"), "body{}")

	cfg := config.Default()
	cfg.Static.Root = root
	cfg.Apps = []config.AppConfig{{Name: "homepage", Path: filepath.Join(root, "homepage")}}
	cfg.Build.AllowedCommands = []string{"cp"}
	cfg.Providers = []config.ProviderConfig{
		{
			Type:    config.ProviderCompile,
			Source:  "{appdir}/styles/{template}.scss",
			Output:  "{appdir}/styles/{template}.css",
			Command: []string{"cp", "{source}", "{output}"},
			Mode:    "none",
		},
		{Type: config.ProviderLinkCSS, CacheBust: "none"},
	}
	require.NoError(t, config.Validate(cfg))

	reg, err := registry.FromConfig(cfg)
	require.NoError(t, err)
	e, err := New(cfg, reg, Options{})
	require.NoError(t, err)
	t.Cleanup(provider.Reset)

	collector := errors.NewErrorCollector()
	results, err := e.Precompile(context.Background(), collector)
	require.NoError(t, err)
	assert.False(t, collector.HasErrors())
	require.Len(t, results, 1)
	assert.True(t, results[0].Compiled)
	assert.FileExists(t, filepath.Join(root, "homepage/styles/base.css"))

	var buf bytes.Buffer
	require.NoError(t, e.Render(context.Background(), &buf, nil, "homepage", "index.html", nil))
	assert.Contains(t, buf.String(), `href="/static/homepage/styles/base.css"`)
}
