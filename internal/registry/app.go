// Package registry keeps track of the applications assetry serves and the
// templates each one owns. Other packages subscribe to registry events to
// react when templates appear, change, or disappear.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/assetry/internal/config"
)

// TemplateExtensions are the file extensions treated as templates.
var TemplateExtensions = []string{".htm", ".html"}

// AppRegistry manages all configured applications
type AppRegistry struct {
	apps     map[string]*AppInfo
	mutex    sync.RWMutex
	watchers []chan AppEvent
}

// AppInfo holds metadata about one application directory
type AppInfo struct {
	Name string
	// Dir is the absolute application directory; templates live in
	// Dir/templates, stylesheets in Dir/styles, scripts in Dir/scripts.
	Dir       string
	Templates []string
	LastMod   time.Time
}

// TemplateDir returns the directory holding the app's templates.
func (a *AppInfo) TemplateDir() string {
	return filepath.Join(a.Dir, "templates")
}

// HasTemplate reports whether the app owns a template with the given name.
func (a *AppInfo) HasTemplate(name string) bool {
	i := sort.SearchStrings(a.Templates, name)
	return i < len(a.Templates) && a.Templates[i] == name
}

// AppEvent represents a change in the app registry
type AppEvent struct {
	Type      EventType
	App       *AppInfo
	Timestamp time.Time
}

// EventType represents the type of app event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// NewAppRegistry creates a new app registry
func NewAppRegistry() *AppRegistry {
	return &AppRegistry{
		apps:     make(map[string]*AppInfo),
		watchers: make([]chan AppEvent, 0),
	}
}

// FromConfig creates a registry and scans every configured app.
func FromConfig(cfg *config.Config) (*AppRegistry, error) {
	r := NewAppRegistry()
	for _, app := range cfg.Apps {
		if _, err := r.Scan(app.Name, app.Path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Scan reads the templates of the app at dir and registers it.
func (r *AppRegistry) Scan(name, dir string) (*AppInfo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving app %q: %w", name, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("app %q: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("app %q: %s is not a directory", name, abs)
	}

	app := &AppInfo{Name: name, Dir: abs, LastMod: info.ModTime()}

	entries, err := os.ReadDir(app.TemplateDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("app %q: reading templates: %w", name, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsTemplate(entry.Name()) {
			continue
		}
		app.Templates = append(app.Templates, entry.Name())
		if fi, err := entry.Info(); err == nil && fi.ModTime().After(app.LastMod) {
			app.LastMod = fi.ModTime()
		}
	}
	sort.Strings(app.Templates)

	r.Register(app)
	return app, nil
}

// Rescan re-reads an already registered app.
func (r *AppRegistry) Rescan(name string) (*AppInfo, error) {
	app, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("app %q is not registered", name)
	}
	return r.Scan(name, app.Dir)
}

// IsTemplate reports whether name has a template extension.
func IsTemplate(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range TemplateExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Register adds or updates an app in the registry
func (r *AppRegistry) Register(app *AppInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.apps[app.Name]; exists {
		eventType = EventTypeUpdated
	}

	r.apps[app.Name] = app
	r.notify(AppEvent{Type: eventType, App: app, Timestamp: time.Now()})
}

// Get retrieves an app by name
func (r *AppRegistry) Get(name string) (*AppInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	app, exists := r.apps[name]
	return app, exists
}

// GetAll returns all registered apps sorted by name
func (r *AppRegistry) GetAll() []*AppInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*AppInfo, 0, len(r.apps))
	for _, app := range r.apps {
		result = append(result, app)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// FindByPath returns the app whose directory contains path.
func (r *AppRegistry) FindByPath(path string) (*AppInfo, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var best *AppInfo
	for _, app := range r.apps {
		rel, err := filepath.Rel(app.Dir, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		// nested apps: the deepest directory wins
		if best == nil || len(app.Dir) > len(best.Dir) {
			best = app
		}
	}
	return best, best != nil
}

// Remove removes an app from the registry
func (r *AppRegistry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	app, exists := r.apps[name]
	if !exists {
		return
	}

	delete(r.apps, name)
	r.notify(AppEvent{Type: EventTypeRemoved, App: app, Timestamp: time.Now()})
}

// notify must be called with the mutex held.
func (r *AppRegistry) notify(event AppEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Watch returns a channel that receives app events
func (r *AppRegistry) Watch() <-chan AppEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan AppEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *AppRegistry) UnWatch(ch <-chan AppEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered apps
func (r *AppRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.apps)
}
