package build

import (
	"context"
	"encoding/base32"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/assetry/internal/errors"
)

var (
	templateAction = regexp.MustCompile(`(?s)\{\{.*?\}\}`)
	actionMarker   = regexp.MustCompile(`AssetryExpr_([A-Z2-79]+)_ExprAssetry`)
)

// MarkerCompiler lets a stylesheet compiler process sources that contain
// template actions, such as .scssm files. Each {{ ... }} action is replaced
// with an identifier the inner compiler passes through untouched, and the
// identifiers in its output are turned back into the original actions.
type MarkerCompiler struct {
	Inner Compiler
}

// Compile encodes the actions of source into a temporary copy next to it,
// compiles that copy with Inner, and decodes the actions in output.
func (m MarkerCompiler) Compile(ctx context.Context, source, output string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}

	// next to the original so relative imports still resolve
	tmp, err := os.CreateTemp(filepath.Dir(source), "."+filepath.Base(source)+".*.tmp")
	if err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "create marked source", err).
			WithLocation(source, 0, 0)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	_, err = tmp.WriteString(EncodeActions(string(data)))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "write marked source", err).
			WithLocation(source, 0, 0)
	}

	if err := m.Inner.Compile(ctx, tmpPath, output); err != nil {
		return err
	}

	compiled, err := os.ReadFile(output)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "read compiled output", err).
			WithLocation(source, 0, 0)
	}
	if err := os.WriteFile(output, []byte(DecodeActions(string(compiled))), 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "write compiled output", err).
			WithLocation(source, 0, 0)
	}
	return nil
}

// EncodeActions replaces every template action in s with a marker made of
// letters, digits, and underscores.
func EncodeActions(s string) string {
	return templateAction.ReplaceAllStringFunc(s, func(action string) string {
		enc := base32.StdEncoding.EncodeToString([]byte(action))
		return "AssetryExpr_" + strings.ReplaceAll(enc, "=", "9") + "_ExprAssetry"
	})
}

// DecodeActions reverses EncodeActions. Markers that do not decode are left
// as they are.
func DecodeActions(s string) string {
	return actionMarker.ReplaceAllStringFunc(s, func(marker string) string {
		enc := actionMarker.FindStringSubmatch(marker)[1]
		action, err := base32.StdEncoding.DecodeString(strings.ReplaceAll(enc, "9", "="))
		if err != nil {
			return marker
		}
		return string(action)
	})
}
