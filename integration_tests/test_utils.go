//go:build integration
// +build integration

package integration_tests

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetry/internal/config"
	"github.com/conneroisu/assetry/internal/metrics"
	"github.com/conneroisu/assetry/internal/provider"
	"github.com/conneroisu/assetry/internal/registry"
	"github.com/conneroisu/assetry/internal/renderer"
)

// testSite is a static root with a homepage and a blog application whose
// templates share homepage/base.htm.
type testSite struct {
	Root     string
	Config   *config.Config
	Engine   *renderer.Engine
	Gatherer *prometheus.Registry
}

const baseTemplate = `<html><head>{{ providers .Self "styles" }}</head>` +
	`<body>{{ block "content" . }}{{ end }}{{ providers .Self "scripts" }}</body></html>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newTestSite writes the applications and starts an engine with a copying
// "compiler" for .scss sources, so no stylesheet toolchain is needed.
func newTestSite(t *testing.T) *testSite {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "homepage/templates/base.htm"), baseTemplate)
	writeFile(t, filepath.Join(root, "homepage/templates/index.html"),
		`{{ define "content" }}<h1>{{ .Data.title }}</h1>{{ end }}{{ template "base.htm" . }}`)
	writeFile(t, filepath.Join(root, "homepage/styles/base.scss"), "body{}")
	writeFile(t, filepath.Join(root, "homepage/scripts/index.js"), "main()")
	writeFile(t, filepath.Join(root, "blog/templates/post.html"),
		`{{ define "content" }}post{{ end }}{{ template "homepage/base.htm" . }}`)
	writeFile(t, filepath.Join(root, "blog/styles/post.scss"), "article{}")

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Static.Root = root
	cfg.Build.AllowedCommands = []string{"cp"}
	cfg.Apps = []config.AppConfig{
		{Name: "homepage", Path: filepath.Join(root, "homepage")},
		{Name: "blog", Path: filepath.Join(root, "blog")},
	}
	cfg.Providers = []config.ProviderConfig{
		{
			Type:    config.ProviderCompile,
			Source:  "{appdir}/styles/{template}.scss",
			Output:  "{appdir}/styles/{template}.css",
			Command: []string{"cp", "{source}", "{output}"},
			Mode:    "none",
		},
		{Type: config.ProviderLinkCSS, CacheBust: "hash"},
		{Type: config.ProviderLinkJS, CacheBust: "none", ModuleEntry: true},
	}
	require.NoError(t, config.Validate(cfg))

	reg, err := registry.FromConfig(cfg)
	require.NoError(t, err)

	gatherer := prometheus.NewRegistry()
	engine, err := renderer.New(cfg, reg, renderer.Options{Metrics: metrics.New(gatherer)})
	require.NoError(t, err)
	t.Cleanup(provider.Reset)

	return &testSite{Root: root, Config: cfg, Engine: engine, Gatherer: gatherer}
}

// Path returns the absolute path of a file below the static root.
func (s *testSite) Path(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

// counterTotal sums every series of the named counter.
func (s *testSite) counterTotal(t *testing.T, name string) float64 {
	t.Helper()
	families, err := s.Gatherer.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
