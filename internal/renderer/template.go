package renderer

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/template/parse"
	"time"

	"github.com/conneroisu/assetry/internal/provider"
	"github.com/conneroisu/assetry/internal/registry"
)

// Template is one template file of an application. It implements
// provider.Handle; the request and data are only set on the handle passed to
// a render as .Self.
type Template struct {
	engine *Engine
	app    *registry.AppInfo
	name   string
	src    *source
	req    *http.Request
	data   map[string]any
}

// source is a parsed template file.
type source struct {
	path    string
	modTime time.Time
	text    string
	// parent is the template named by a top-level {{template}} action, as
	// written in the file.
	parent string
}

// App returns the owning application's name.
func (t *Template) App() string { return t.app.Name }

// AppDir returns the owning application's directory.
func (t *Template) AppDir() string { return t.app.Dir }

// Name returns the template's file name.
func (t *Template) Name() string { return t.name }

// Path returns the template's file path.
func (t *Template) Path() string { return t.src.path }

// Request returns the request of the render, if any.
func (t *Template) Request() *http.Request { return t.req }

// Data returns the data of the render, if any.
func (t *Template) Data() map[string]any { return t.data }

// ParentName returns the reference to the inherited template, empty at the
// root.
func (t *Template) ParentName() string { return t.src.parent }

// Parent returns the template this one inherits from. A missing parent ends
// the chain; Engine.Template reports it before a handle is handed out.
func (t *Template) Parent() provider.Handle {
	parent, err := t.parent()
	if err != nil || parent == nil {
		return nil
	}
	return parent
}

func (t *Template) parent() (*Template, error) {
	if t.src.parent == "" {
		return nil, nil
	}
	app, name := t.app.Name, t.src.parent
	if i := strings.Index(name, "/"); i >= 0 {
		app, name = name[:i], name[i+1:]
	}
	parent, err := t.engine.lookup(app, name)
	if err != nil {
		return nil, err
	}
	parent.req, parent.data = t.req, t.data
	return parent, nil
}

func (t *Template) String() string {
	return t.app.Name + "/" + t.name
}

// parseSource reads a template file and finds the template it extends.
func parseSource(path string) (*source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(filepath.Base(path)).Funcs(stubFuncs).Parse(string(text))
	if err != nil {
		return nil, err
	}

	return &source{
		path:    path,
		modTime: info.ModTime(),
		text:    string(text),
		parent:  parentRef(tmpl.Tree),
	}, nil
}

// parentRef returns the first template invoked at the top level of tree that
// names a template file.
func parentRef(tree *parse.Tree) string {
	if tree == nil || tree.Root == nil {
		return ""
	}
	for _, node := range tree.Root.Nodes {
		tn, ok := node.(*parse.TemplateNode)
		if !ok {
			continue
		}
		if registry.IsTemplate(tn.Name) {
			return tn.Name
		}
	}
	return ""
}

// stubFuncs lets files parse before a render binds the real functions.
var stubFuncs = template.FuncMap{
	"providers": func(provider.Handle, ...string) (template.HTML, error) { return "", nil },
}
