package provider

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// Component returns a templ component that writes the provider output of h.
//
//	@provider.Component(self, "styles", "")
func Component(h Handle, group, versionID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html, err := Providers(ctx, h, group, versionID)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, string(html))
		return err
	})
}

// TemplateComponent is Component for a template identified by app and name.
func TemplateComponent(req *http.Request, app, name string, data map[string]any, group, versionID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html, err := TemplateProviders(ctx, req, app, name, data, group, versionID)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, string(html))
		return err
	})
}
