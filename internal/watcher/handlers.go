package watcher

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/assetry/internal/registry"
)

// SourceHandler calls rebuild once per batch that changes a file accepted by
// filter, such as a .scss source.
func SourceHandler(filter FileFilter, rebuild func(ctx context.Context) error) ChangeHandler {
	return func(ctx context.Context, events []ChangeEvent) error {
		for _, event := range events {
			if filter(event.Path) {
				return rebuild(ctx)
			}
		}
		return nil
	}
}

// TemplateHandler rescans every application that owns a changed template and
// then calls reload, when set.
func TemplateHandler(reg *registry.AppRegistry, reload func()) ChangeHandler {
	return func(_ context.Context, events []ChangeEvent) error {
		apps := make(map[string]bool)
		for _, event := range events {
			if !registry.IsTemplate(event.Path) {
				continue
			}
			if filepath.Base(filepath.Dir(event.Path)) != "templates" {
				continue
			}
			if app, ok := reg.FindByPath(event.Path); ok {
				apps[app.Name] = true
			}
		}
		if len(apps) == 0 {
			return nil
		}

		for name := range apps {
			if _, err := reg.Rescan(name); err != nil {
				return err
			}
		}
		if reload != nil {
			reload()
		}
		return nil
	}
}
