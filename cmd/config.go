package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetry/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect assetry configuration",
	Long: `Inspect assetry configuration files and settings.

Examples:
  assetry config show                          # Show the effective configuration
  assetry config show --format json            # Show it as JSON
  assetry config validate                      # Validate .assetry.yml
  assetry config validate --file assetry.yml   # Validate a specific file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after the file, ASSETRY_ environment variables,
command-line flags and defaults have all been applied.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file. Besides field constraints this checks that
every application directory exists, that compile commands are allowed and
that every provider can be built.`,
	RunE: runConfigValidate,
}

var (
	configShowFormat   string
	configValidateFile string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVarP(&configShowFormat, "format", "f", "yaml", "Output format (yaml, json)")
	configValidateCmd.Flags().StringVar(&configValidateFile, "file", "", "Configuration file to validate (default is the active one)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), cfg, configShowFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if configValidateFile != "" {
		v = viper.New()
		v.SetConfigFile(configValidateFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", configValidateFile, err)
		}
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}

	env, err := setupWith(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %d applications, %d providers\n",
		env.engine.Registry().Count(), len(cfg.Providers))
	return nil
}
