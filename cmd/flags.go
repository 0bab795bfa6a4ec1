package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Render flags
	Group     string `flag:"group,g" desc:"Provider group (empty runs every provider)" default:""`
	VersionID string `flag:"version-id" desc:"Cache-busting token for every tag" default:""`
	Data      string `flag:"data" desc:"Template data (JSON or @file.json)" default:""`
	DataFile  string `flag:"data-file,f" desc:"Template data file (JSON)" default:""`

	// Output flags
	OutputFormat string `flag:"output,o" desc:"Output format (table|json|yaml)" default:"table"`
	Verbose      bool   `flag:"verbose,v" desc:"Enable verbose output" default:"false"`
	Quiet        bool   `flag:"quiet,q" desc:"Suppress output" default:"false"`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "render":
			addRenderFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addRenderFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Group, "group", "g", "", "Provider group (empty runs every provider)")
	cmd.Flags().StringVar(&flags.VersionID, "version-id", "", "Cache-busting token for every tag")
	cmd.Flags().StringVar(&flags.Data, "data", "", "Template data (JSON or @file.json)")
	cmd.Flags().StringVarP(&flags.DataFile, "data-file", "f", "", "Template data file (JSON)")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
}

// ParseData parses template data with support for file references
func (f *StandardFlags) ParseData() (map[string]any, error) {
	var data map[string]any

	filename := f.DataFile
	if filename == "" && strings.HasPrefix(f.Data, "@") {
		filename = strings.TrimPrefix(f.Data, "@")
	}

	if filename != "" {
		raw, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file %s: %w", filename, err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("invalid JSON in data file %s: %w", filename, err)
		}
		return data, nil
	}

	if f.Data != "" {
		if err := json.Unmarshal([]byte(f.Data), &data); err != nil {
			return nil, fmt.Errorf("invalid JSON in data: %w", err)
		}
		return data, nil
	}

	return make(map[string]any), nil
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Data != "" && f.DataFile != "" {
		return fmt.Errorf("cannot specify both --data and --data-file")
	}

	validFormats := []string{"table", "json", "yaml"}
	if f.OutputFormat != "" {
		valid := false
		for _, format := range validFormats {
			if f.OutputFormat == format {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid output format %s, must be one of: %s",
				f.OutputFormat, strings.Join(validFormats, ", "))
		}
	}

	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}

	return nil
}

// BindFlags binds flags to viper configuration keys so a flag that is set
// overrides the file and environment.
func BindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	flags.VisitAll(func(flag *pflag.Flag) {
		if key, ok := bindings[flag.Name]; ok {
			_ = viper.BindPFlag(key, flag)
		}
	})
}
