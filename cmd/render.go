package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assetry/internal/provider"
	"github.com/conneroisu/assetry/internal/renderer"
)

var renderCmd = &cobra.Command{
	Use:   "render [app/template.html]",
	Short: "Print the asset tags of a template",
	Long: `Print the fragments every provider of a template's inheritance chain emits,
root template first. With --page the whole template is rendered instead.

Examples:
  assetry render homepage/index.html                 # Every provider
  assetry render homepage/index.html -g styles       # Stylesheets only
  assetry render --app homepage --template index.html --version-id v42
  assetry render homepage/index.html --page --data '{"title":"Home"}'
  assetry render homepage/index.html#content --page  # One block of the page`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderFlags    *StandardFlags
	renderApp      string
	renderTemplate string
	renderPage     bool
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags = AddStandardFlags(renderCmd, "render")

	renderCmd.Flags().StringVar(&renderApp, "app", "", "Application owning the template")
	renderCmd.Flags().StringVarP(&renderTemplate, "template", "t", "", "Template name, such as index.html")
	renderCmd.Flags().BoolVar(&renderPage, "page", false, "Render the whole template instead of its asset tags")
}

func runRender(cmd *cobra.Command, args []string) error {
	if err := renderFlags.ValidateFlags(); err != nil {
		return err
	}

	app, name, block, err := renderTarget(args)
	if err != nil {
		return err
	}

	data, err := renderFlags.ParseData()
	if err != nil {
		return err
	}

	env, err := setup()
	if err != nil {
		return err
	}

	return render(cmd.Context(), cmd.OutOrStdout(), env.engine, renderRequest{
		app:       app,
		name:      name,
		block:     block,
		data:      data,
		group:     renderFlags.Group,
		versionID: renderFlags.VersionID,
		page:      renderPage,
	})
}

type renderRequest struct {
	app, name, block string
	data             map[string]any
	group, versionID string
	page             bool
}

func render(ctx context.Context, w io.Writer, engine *renderer.Engine, r renderRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if r.page {
		name := r.name
		if r.block != "" {
			name += "#" + r.block
		}
		return engine.Render(ctx, w, nil, r.app, name, r.data)
	}

	if r.block != "" {
		return fmt.Errorf("a block can only be selected with --page")
	}

	html, err := provider.TemplateProviders(ctx, nil, r.app, r.name, r.data, r.group, r.versionID)
	if err != nil {
		return err
	}
	if html == "" {
		return nil
	}
	_, err = fmt.Fprintln(w, html)
	return err
}

// renderTarget resolves the template from the positional argument or the
// --app and --template flags.
func renderTarget(args []string) (app, name, block string, err error) {
	switch {
	case len(args) == 1 && (renderApp != "" || renderTemplate != ""):
		return "", "", "", fmt.Errorf("specify the template either as an argument or with --app and --template")
	case len(args) == 1:
		app, name, block = renderer.SplitName(args[0])
	default:
		app, name, block = renderer.SplitName(renderTemplate)
		if renderApp != "" {
			app = renderApp
		}
	}

	if app == "" || name == "" {
		return "", "", "", fmt.Errorf("both an application and a template are required")
	}
	return app, name, block, nil
}
