package provider

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/assetry/internal/errors"
)

func loaderFor(handles ...*fakeHandle) Loader {
	return LoaderFunc(func(app, name string) (Handle, error) {
		for _, h := range handles {
			if h.app == app && h.name == name {
				return h, nil
			}
		}
		return nil, errors.ErrTemplateNotFound(app, name)
	})
}

func TestTemplateProviders(t *testing.T) {
	s := newSite(t)
	s.write(t, "styles/base.css", "body{}", fixedMtime)
	s.write(t, "scripts/index.js", "main()", fixedMtime)

	css, err := NewCSSLinkProvider(LinkOptions{CacheBust: CacheBustNone}, s.deps)
	require.NoError(t, err)
	js, err := NewJSLinkProvider(LinkOptions{CacheBust: CacheBustNone}, s.deps)
	require.NoError(t, err)

	index := s.handle("base.htm", "index.html")
	install(t, Settings{Default: []Provider{css, js}, Loader: loaderFor(index)})

	req := httptest.NewRequest("GET", "/", nil)
	out, err := TemplateProviders(context.Background(), req, "homepage", "index.html", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t,
		`<link rel="stylesheet" type="text/css" href="/static/homepage/styles/base.css" />`+"\n"+
			`<script src="/static/homepage/scripts/index.js"></script>`,
		string(out))

	_, err = TemplateProviders(context.Background(), req, "homepage", "missing.html", nil, "", "")
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeTemplateNotFound))
}

func TestTemplateProvidersUsesGivenRequestAndData(t *testing.T) {
	var gotPath string
	var gotData map[string]any
	probe := providerFunc(func(run *Run, _ *TemplateInfo) string {
		gotPath = run.Request.URL.Path
		gotData = run.Data
		return ""
	})

	install(t, Settings{
		Default: []Provider{probe},
		Loader:  loaderFor(chainOf("homepage", "/apps/homepage", "index.html")),
	})

	req := httptest.NewRequest("GET", "/about", nil)
	_, err := TemplateProviders(context.Background(), req, "homepage", "index.html", map[string]any{"k": "v"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "/about", gotPath)
	assert.Equal(t, map[string]any{"k": "v"}, gotData)
}

func TestTemplateProvidersErrors(t *testing.T) {
	Reset()
	_, err := TemplateProviders(context.Background(), nil, "homepage", "index.html", nil, "", "")
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeNotInitialized))

	_, err = Providers(context.Background(), chainOf("homepage", "/apps/homepage", "index.html"), "", "")
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeNotInitialized))

	install(t, Settings{})
	_, err = TemplateProviders(context.Background(), nil, "homepage", "index.html", nil, "", "")
	assert.True(t, errors.IsConfigError(err), "no loader installed")
}

func TestDeprecatedWrappers(t *testing.T) {
	index := chainOf("homepage", "/apps/homepage", "base.htm", "index.html")
	install(t, Settings{
		Default: []Provider{
			&stubProvider{group: "styles", name: "css"},
			&stubProvider{group: "scripts", name: "js"},
		},
		Loader: loaderFor(index),
	})
	ctx := context.Background()

	styles, err := Providers(ctx, index, "styles", "")
	require.NoError(t, err)
	scripts, err := Providers(ctx, index, "scripts", "")
	require.NoError(t, err)

	got, err := LinkCSS(ctx, index, "")
	require.NoError(t, err)
	assert.Equal(t, styles, got)

	got, err = LinkJS(ctx, index, "")
	require.NoError(t, err)
	assert.Equal(t, scripts, got)

	got, err = LinkTemplateCSS(ctx, nil, "homepage", "index.html", nil, "")
	require.NoError(t, err)
	assert.Equal(t, styles, got)

	got, err = LinkTemplateJS(ctx, nil, "homepage", "index.html", nil, "")
	require.NoError(t, err)
	assert.Equal(t, scripts, got)
}

func TestComponent(t *testing.T) {
	index := chainOf("homepage", "/apps/homepage", "base.htm", "index.html")
	install(t, Settings{
		Default: []Provider{&stubProvider{group: "styles", name: "css"}},
		Loader:  loaderFor(index),
	})

	var buf bytes.Buffer
	require.NoError(t, Component(index, "styles", "").Render(context.Background(), &buf))
	assert.Equal(t, "css:base.htm\ncss:index.html", buf.String())

	buf.Reset()
	require.NoError(t, TemplateComponent(nil, "homepage", "index.html", nil, "styles", "").Render(context.Background(), &buf))
	assert.Equal(t, "css:base.htm\ncss:index.html", buf.String())

	buf.Reset()
	err := TemplateComponent(nil, "homepage", "gone.html", nil, "", "").Render(context.Background(), &buf)
	assert.Error(t, err)
}

func TestFragmentsParseAsHTML(t *testing.T) {
	s := newSite(t)
	s.write(t, "styles/base.css", "body{}", fixedMtime)
	s.write(t, "styles/index.css", "main{}", fixedMtime)
	s.write(t, "scripts/index.js", "main()", fixedMtime)
	s.write(t, "styles/index.cssm", "p { margin: {{ .margin }}px; }", fixedMtime)

	css, err := NewCSSLinkProvider(LinkOptions{}, s.deps)
	require.NoError(t, err)
	js, err := NewJSLinkProvider(LinkOptions{ModuleEntry: true}, s.deps)
	require.NoError(t, err)
	install(t, Settings{Default: []Provider{css, js, NewTemplateCSSProvider(InlineOptions{})}})

	h := s.handle("base.htm", "index.html")
	h.data = map[string]any{"margin": 4}

	out, err := Providers(context.Background(), h, "", "")
	require.NoError(t, err)

	nodes, err := html.ParseFragment(strings.NewReader(string(out)), &html.Node{
		Type:     html.ElementNode,
		Data:     "head",
		DataAtom: atom.Head,
	})
	require.NoError(t, err)

	var links, scripts, styles int
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.Link:
			links++
			assert.Equal(t, "stylesheet", attr(n, "rel"))
			assert.True(t, strings.HasPrefix(attr(n, "href"), "/static/homepage/styles/"))
		case atom.Script:
			scripts++
			assert.Equal(t, "module", attr(n, "type"))
		case atom.Style:
			styles++
			require.NotNil(t, n.FirstChild)
			assert.Contains(t, n.FirstChild.Data, "margin: 4px")
		}
	}
	assert.Equal(t, 2, links)
	assert.Equal(t, 1, scripts)
	assert.Equal(t, 1, styles)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
