package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetry/internal/config"
	"github.com/conneroisu/assetry/internal/provider"
	"github.com/conneroisu/assetry/internal/version"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newTestEnv lays out a homepage app with a base and an index template and
// sets up every collaborator for it.
func newTestEnv(t *testing.T, providers ...config.ProviderConfig) (*environment, string) {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "homepage/templates/base.htm"),
		`<head>{{ providers .Self "styles" }}</head><main>{{ block "content" . }}{{ end }}</main>`)
	writeFile(t, filepath.Join(root, "homepage/templates/index.html"),
		`{{ define "content" }}hi {{ .Data.name }}{{ end }}{{ template "base.htm" . }}`)
	writeFile(t, filepath.Join(root, "homepage/styles/base.css"), "body{}")
	writeFile(t, filepath.Join(root, "homepage/styles/index.css"), "main{}")
	writeFile(t, filepath.Join(root, "homepage/scripts/index.js"), "main()")

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Static.Root = root
	cfg.Build.AllowedCommands = []string{"cp", "false"}
	cfg.Apps = []config.AppConfig{{Name: "homepage", Path: filepath.Join(root, "homepage")}}
	cfg.Providers = []config.ProviderConfig{
		{Type: config.ProviderLinkCSS, CacheBust: "none"},
		{Type: config.ProviderLinkJS, CacheBust: "none"},
	}
	if len(providers) > 0 {
		cfg.Providers = providers
	}
	require.NoError(t, config.Validate(cfg))

	env, err := setupWith(cfg)
	require.NoError(t, err)
	t.Cleanup(provider.Reset)

	return env, root
}

func TestStandardFlagsParseData(t *testing.T) {
	t.Run("inline JSON", func(t *testing.T) {
		flags := &StandardFlags{Data: `{"name":"ann"}`}
		data, err := flags.ParseData()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "ann"}, data)
	})

	t.Run("file reference", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		writeFile(t, path, `{"count":2}`)

		for _, flags := range []*StandardFlags{{Data: "@" + path}, {DataFile: path}} {
			data, err := flags.ParseData()
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"count": float64(2)}, data)
		}
	})

	t.Run("empty", func(t *testing.T) {
		data, err := (&StandardFlags{}).ParseData()
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := (&StandardFlags{Data: "{"}).ParseData()
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&StandardFlags{DataFile: filepath.Join(t.TempDir(), "none.json")}).ParseData()
		assert.Error(t, err)
	})
}

func TestStandardFlagsValidate(t *testing.T) {
	tests := []struct {
		name    string
		flags   StandardFlags
		wantErr bool
	}{
		{"defaults", StandardFlags{OutputFormat: "table"}, false},
		{"json", StandardFlags{OutputFormat: "json"}, false},
		{"unknown format", StandardFlags{OutputFormat: "csv"}, true},
		{"data and data file", StandardFlags{Data: "{}", DataFile: "x.json"}, true},
		{"quiet and verbose", StandardFlags{Quiet: true, Verbose: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.ValidateFlags()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRenderTarget(t *testing.T) {
	defer func() { renderApp, renderTemplate = "", "" }()

	app, name, block, err := renderTarget([]string{"homepage/index.html#content"})
	require.NoError(t, err)
	assert.Equal(t, []string{"homepage", "index.html", "content"}, []string{app, name, block})

	renderApp, renderTemplate = "homepage", "base.htm"
	app, name, _, err = renderTarget(nil)
	require.NoError(t, err)
	assert.Equal(t, "homepage", app)
	assert.Equal(t, "base.htm", name)

	_, _, _, err = renderTarget([]string{"homepage/index.html"})
	assert.Error(t, err, "argument and flags together")

	renderApp, renderTemplate = "", ""
	_, _, _, err = renderTarget([]string{"index.html"})
	assert.Error(t, err, "missing app")
}

func TestRenderProviders(t *testing.T) {
	env, _ := newTestEnv(t)

	var buf bytes.Buffer
	err := render(context.Background(), &buf, env.engine, renderRequest{
		app: "homepage", name: "index.html", group: "styles",
	})
	require.NoError(t, err)

	assert.Equal(t,
		`<link rel="stylesheet" type="text/css" href="/static/homepage/styles/base.css" />`+"\n"+
			`<link rel="stylesheet" type="text/css" href="/static/homepage/styles/index.css" />`+"\n",
		buf.String())

	buf.Reset()
	err = render(context.Background(), &buf, env.engine, renderRequest{
		app: "homepage", name: "index.html", group: "scripts", versionID: "v9",
	})
	require.NoError(t, err)
	assert.Equal(t, `<script src="/static/homepage/scripts/index.js?v=v9"></script>`+"\n", buf.String())
}

func TestRenderPage(t *testing.T) {
	env, _ := newTestEnv(t)

	var buf bytes.Buffer
	err := render(context.Background(), &buf, env.engine, renderRequest{
		app: "homepage", name: "index.html", block: "content", page: true,
		data: map[string]any{"name": "ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi ann", buf.String())

	err = render(context.Background(), &buf, env.engine, renderRequest{
		app: "homepage", name: "index.html", block: "content",
	})
	assert.Error(t, err, "blocks need --page")

	err = render(context.Background(), &buf, env.engine, renderRequest{app: "homepage", name: "missing.html"})
	assert.Error(t, err)
}

func TestListing(t *testing.T) {
	env, root := newTestEnv(t)
	writeFile(t, filepath.Join(root, "homepage/templates/broken.html"), `{{ template "gone.htm" . }}`)
	_, err := env.engine.Registry().Rescan("homepage")
	require.NoError(t, err)

	listing := collectListing(env.engine, "")
	require.Len(t, listing, 1)
	assert.Equal(t, "homepage", listing[0].Name)

	byName := make(map[string]TemplateListing)
	for _, tl := range listing[0].Templates {
		byName[tl.Name] = tl
	}
	assert.Equal(t, []string{"homepage/base.htm"}, byName["base.htm"].Chain)
	assert.Equal(t, []string{"homepage/base.htm", "homepage/index.html"}, byName["index.html"].Chain)
	assert.NotEmpty(t, byName["broken.html"].Error)

	assert.Empty(t, collectListing(env.engine, "blog"))

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeListing(&buf, listing, "json"))
		var decoded []AppListing
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, listing, decoded)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeListing(&buf, listing, "yaml"))
		var decoded []AppListing
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, listing, decoded)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeListing(&buf, listing, "table"))
		out := buf.String()
		assert.Contains(t, out, "homepage/base.htm > homepage/index.html")
		assert.Contains(t, out, "1 applications, 3 templates")
	})
}

func TestPrecompileCommand(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}

	env, root := newTestEnv(t,
		config.ProviderConfig{
			Type:    config.ProviderCompile,
			Source:  "{appdir}/styles/{template}.scss",
			Output:  "{appdir}/styles/{template}.out.css",
			Command: []string{"cp", "{source}", "{output}"},
			Mode:    "none",
		},
		config.ProviderConfig{Type: config.ProviderLinkCSS, CacheBust: "none"},
	)
	writeFile(t, filepath.Join(root, "homepage/styles/base.scss"), "body{}")
	env.cfg.Build.MetricsFile = filepath.Join(t.TempDir(), "assetry.prom")

	var buf bytes.Buffer
	require.NoError(t, precompile(context.Background(), &buf, env, true))

	compiled, err := os.ReadFile(filepath.Join(root, "homepage/styles/base.out.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(compiled))
	assert.Contains(t, buf.String(), "1 assets, 1 compiled, 0 failed")

	textfile, err := os.ReadFile(env.cfg.Build.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(textfile), "assetry_")

	// the second build finds the output fresh
	buf.Reset()
	require.NoError(t, precompile(context.Background(), &buf, env, true))
	assert.Contains(t, buf.String(), "1 assets, 0 compiled, 0 failed")
	assert.Contains(t, buf.String(), "fresh")
}

func TestPrecompileReportsFailures(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	env, root := newTestEnv(t,
		config.ProviderConfig{
			Type:    config.ProviderCompile,
			Source:  "{appdir}/styles/{template}.scss",
			Output:  "{appdir}/styles/{template}.out.css",
			Command: []string{"false"},
			Mode:    "none",
		},
	)
	writeFile(t, filepath.Join(root, "homepage/styles/base.scss"), "body{}")

	var buf bytes.Buffer
	err := precompile(context.Background(), &buf, env, false)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "failed   homepage/")
}

func TestWriteConfig(t *testing.T) {
	cfg := config.Default()

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg, "yaml"))
	assert.Contains(t, buf.String(), "failure_policy: abort")

	var decoded config.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, cfg.Providers, decoded.Providers)

	buf.Reset()
	require.NoError(t, writeConfig(&buf, cfg, "json"))
	assert.True(t, json.Valid(buf.Bytes()))

	assert.Error(t, writeConfig(&buf, cfg, "toml"))
}

func TestWriteVersion(t *testing.T) {
	info := version.BuildInfo{Version: "v1.2.3", GitCommit: "0123456789abcdef", GoVersion: "go1.24", Platform: "linux/amd64"}

	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, info, "text", true))
	assert.Equal(t, "v1.2.3 (0123456)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeVersion(&buf, info, "text", false))
	assert.True(t, strings.HasPrefix(buf.String(), "Version: v1.2.3\n"))

	buf.Reset()
	require.NoError(t, writeVersion(&buf, info, "json", false))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "v1.2.3", decoded["version"])

	assert.Error(t, writeVersion(&buf, info, "xml", false))
}
