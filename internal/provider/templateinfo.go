package provider

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetry/internal/errors"
)

// TemplateInfo is one level of a template's inheritance chain together with
// the providers configured for its application. It is built once per run and
// never modified.
type TemplateInfo struct {
	App       string
	AppDir    string
	Template  string
	Providers []Provider
	Handle    Handle
	// VersionID overrides the cache-busting token of every fragment when set.
	VersionID string
	// Parent is the next level toward the root, nil for the root itself.
	Parent *TemplateInfo
}

// TemplateName returns the template name without its extension.
func (ti *TemplateInfo) TemplateName() string {
	return strings.TrimSuffix(ti.Template, filepath.Ext(ti.Template))
}

// String returns "app/template".
func (ti *TemplateInfo) String() string {
	return ti.App + "/" + ti.Template
}

// BuildChain walks the inheritance of h and returns one TemplateInfo per
// level, ordered from the root ancestor to h itself. It fails with a
// configuration error when Init has not run or when the inheritance loops.
func BuildChain(h Handle, versionID string) ([]*TemplateInfo, error) {
	settings := current()
	if settings == nil {
		return nil, errors.ErrNotInitialized()
	}
	if h == nil {
		return nil, nil
	}

	var levels []Handle
	seen := make(map[string]bool)
	for cur := h; cur != nil; cur = cur.Parent() {
		key := cur.App() + "/" + cur.Name()
		if seen[key] {
			return nil, errors.NewConfigError(
				errors.ErrCodeInheritanceCycle,
				fmt.Sprintf("template inheritance cycle at %s", key),
			).WithTemplate(h.App() + "/" + h.Name())
		}
		seen[key] = true
		levels = append(levels, cur)
	}

	chain := make([]*TemplateInfo, 0, len(levels))
	var parent *TemplateInfo
	for i := len(levels) - 1; i >= 0; i-- {
		level := levels[i]
		ti := &TemplateInfo{
			App:       level.App(),
			AppDir:    level.AppDir(),
			Template:  level.Name(),
			Providers: settings.providersFor(level.App()),
			Handle:    level,
			VersionID: versionID,
			Parent:    parent,
		}
		chain = append(chain, ti)
		parent = ti
	}

	return chain, nil
}
