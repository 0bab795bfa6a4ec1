package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetry/internal/provider"
	"github.com/conneroisu/assetry/internal/renderer"
)

var listCmd = &cobra.Command{
	Use:     "list [app]",
	Aliases: []string{"l"},
	Short:   "List applications, templates and their inheritance chains",
	Long: `List every application with its templates. Each template is shown with its
inheritance chain, root template first, which is the order its asset tags are
emitted in.

Examples:
  assetry list                 # Table of every template
  assetry list homepage        # Templates of one application
  assetry list -o json         # Output as JSON
  assetry list -o yaml         # Output as YAML`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")
}

// AppListing describes one application.
type AppListing struct {
	Name      string            `json:"name" yaml:"name"`
	Dir       string            `json:"dir" yaml:"dir"`
	Templates []TemplateListing `json:"templates" yaml:"templates"`
}

// TemplateListing describes one template and its inheritance chain.
type TemplateListing struct {
	Name  string   `json:"name" yaml:"name"`
	Chain []string `json:"chain,omitempty" yaml:"chain,omitempty"`
	Error string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return err
	}

	env, err := setup()
	if err != nil {
		return err
	}

	var only string
	if len(args) == 1 {
		only = args[0]
		if _, ok := env.engine.Registry().Get(only); !ok {
			return fmt.Errorf("unknown application %q", only)
		}
	}

	listing := collectListing(env.engine, only)
	return writeListing(cmd.OutOrStdout(), listing, listFlags.OutputFormat)
}

func collectListing(engine *renderer.Engine, only string) []AppListing {
	var listing []AppListing
	for _, app := range engine.Registry().GetAll() {
		if only != "" && app.Name != only {
			continue
		}

		entry := AppListing{Name: app.Name, Dir: app.Dir, Templates: []TemplateListing{}}
		for _, name := range engine.Templates(app.Name) {
			entry.Templates = append(entry.Templates, describeTemplate(engine, app.Name, name))
		}
		listing = append(listing, entry)
	}
	return listing
}

func describeTemplate(engine *renderer.Engine, app, name string) TemplateListing {
	listing := TemplateListing{Name: name}

	t, err := engine.Template(app, name)
	if err != nil {
		listing.Error = err.Error()
		return listing
	}

	chain, err := provider.BuildChain(t, "")
	if err != nil {
		listing.Error = err.Error()
		return listing
	}
	for _, ti := range chain {
		listing.Chain = append(listing.Chain, ti.String())
	}
	return listing
}

func writeListing(w io.Writer, listing []AppListing, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listing)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(listing)
	default:
		return writeListingTable(w, listing)
	}
}

func writeListingTable(w io.Writer, listing []AppListing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "APP\tTEMPLATE\tCHAIN")

	count := 0
	for _, app := range listing {
		for _, t := range app.Templates {
			chain := strings.Join(t.Chain, " > ")
			if t.Error != "" {
				chain = "error: " + t.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", app.Name, t.Name, chain)
			count++
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d applications, %d templates\n", len(listing), count)
	return err
}
