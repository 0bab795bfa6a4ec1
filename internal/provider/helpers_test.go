package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/static"
)

// fakeHandle is a template known only by its place in an inheritance chain.
type fakeHandle struct {
	app    string
	dir    string
	name   string
	parent *fakeHandle
	req    *http.Request
	data   map[string]any
}

func (h *fakeHandle) App() string              { return h.app }
func (h *fakeHandle) AppDir() string           { return h.dir }
func (h *fakeHandle) Name() string             { return h.name }
func (h *fakeHandle) Request() *http.Request   { return h.req }
func (h *fakeHandle) Data() map[string]any     { return h.data }
func (h *fakeHandle) Parent() Handle {
	if h.parent == nil {
		return nil
	}
	return h.parent
}

// chainOf links handles so each one inherits from the one before it and
// returns the last.
func chainOf(app, dir string, names ...string) *fakeHandle {
	var h *fakeHandle
	for _, name := range names {
		h = &fakeHandle{app: app, dir: dir, name: name, parent: h}
	}
	return h
}

// stubProvider emits "<name>:<template>" or fails with err.
type stubProvider struct {
	group string
	name  string
	err   error
}

func (p *stubProvider) Group() string  { return p.group }
func (p *stubProvider) String() string { return p.name }

func (p *stubProvider) Content(_ context.Context, _ *Run, ti *TemplateInfo) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("%s:%s", p.name, ti.Template), nil
}

// site is a temporary static root holding one application directory.
type site struct {
	root   string
	appDir string
	deps   Deps
}

func newSite(t *testing.T) *site {
	t.Helper()
	root := t.TempDir()
	appDir := filepath.Join(root, "homepage")
	require.NoError(t, os.MkdirAll(filepath.Join(appDir, "templates"), 0o755))

	resolver, err := static.NewFileResolver(root, "/static/")
	require.NoError(t, err)

	return &site{
		root:   root,
		appDir: appDir,
		deps: Deps{
			Builder:  build.NewBuilder(10 * time.Second),
			Resolver: resolver,
			Hasher:   build.NewHashProvider(nil),
		},
	}
}

func (s *site) write(t *testing.T, rel, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(s.appDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	return path
}

func (s *site) handle(names ...string) *fakeHandle {
	return chainOf("homepage", s.appDir, names...)
}

// install initializes the package with providers for every application and
// resets it when the test ends.
func install(t *testing.T, settings Settings) {
	t.Helper()
	require.NoError(t, Init(settings))
	t.Cleanup(Reset)
}
