// Package config provides configuration management for assetry using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration describes the applications whose templates assetry
// serves, how static URLs are built, the ordered provider list that runs for
// every template, and the build and logging behavior. Values are read from
// .assetry.yml, overridden by ASSETRY_ prefixed environment variables, and
// validated with go-playground/validator before use.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/conneroisu/assetry/internal/validation"
)

// Provider types understood by the provider factory.
const (
	ProviderCompile     = "compile"
	ProviderScss        = "scss"
	ProviderLess        = "less"
	ProviderScssm       = "scssm"
	ProviderLinkCSS     = "link_css"
	ProviderLinkJS      = "link_js"
	ProviderTemplateCSS = "template_css"
	ProviderTemplateJS  = "template_js"
)

// Failure policies for a provider run.
const (
	FailureAbort   = "abort"
	FailureCollect = "collect"
	FailureLog     = "log"
)

type Config struct {
	Apps         []AppConfig                 `yaml:"apps" mapstructure:"apps" validate:"dive"`
	Static       StaticConfig                `yaml:"static" mapstructure:"static"`
	Providers    []ProviderConfig            `yaml:"providers" mapstructure:"providers" validate:"dive"`
	AppProviders map[string][]ProviderConfig `yaml:"app_providers,omitempty" mapstructure:"app_providers" validate:"dive,dive"`
	Build        BuildConfig                 `yaml:"build" mapstructure:"build"`
	Log          LogConfig                   `yaml:"log" mapstructure:"log"`
}

type AppConfig struct {
	Name string `yaml:"name" mapstructure:"name" validate:"required,excludesall=/#"`
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

type StaticConfig struct {
	URL  string `yaml:"url" mapstructure:"url" validate:"required"`
	Root string `yaml:"root" mapstructure:"root" validate:"required"`
}

// ProviderConfig configures one provider instance. Path options may use the
// {appdir} and {template} placeholders; compile commands may also use
// {source} and {output}.
type ProviderConfig struct {
	Type        string   `yaml:"type" mapstructure:"type" validate:"required,oneof=compile scss scssm less link_css link_js template_css template_js"`
	Group       string   `yaml:"group,omitempty" mapstructure:"group"`
	Source      string   `yaml:"source,omitempty" mapstructure:"source"`
	Output      string   `yaml:"output,omitempty" mapstructure:"output"`
	Filepath    string   `yaml:"filepath,omitempty" mapstructure:"filepath"`
	Command     []string `yaml:"command,omitempty" mapstructure:"command"`
	Mode        string   `yaml:"mode,omitempty" mapstructure:"mode" validate:"omitempty,oneof=link inline none"`
	CacheBust   string   `yaml:"cache_bust,omitempty" mapstructure:"cache_bust" validate:"omitempty,oneof=mtime hash none"`
	CheckOnce   bool     `yaml:"check_once,omitempty" mapstructure:"check_once"`
	ModuleEntry bool     `yaml:"module_entry,omitempty" mapstructure:"module_entry"`
}

type BuildConfig struct {
	FailurePolicy   string        `yaml:"failure_policy" mapstructure:"failure_policy" validate:"oneof=abort collect log"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	AllowedCommands []string      `yaml:"allowed_commands,omitempty" mapstructure:"allowed_commands"`
	MetricsFile     string        `yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json pretty"`
}

var validate = validator.New()

// DefaultProviders is the provider list used when none is configured: an scss
// compile step that only keeps the css fresh, followed by css and js links.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Type: ProviderScss, Mode: "none"},
		{Type: ProviderLinkCSS},
		{Type: ProviderLinkJS},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults, and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// viper does not split comma separated env values into slices
	if v.IsSet("build.allowed_commands") && len(config.Build.AllowedCommands) == 0 {
		config.Build.AllowedCommands = v.GetStringSlice("build.allowed_commands")
	}

	applyDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Static.URL == "" {
		config.Static.URL = "/static/"
	}
	if !strings.HasSuffix(config.Static.URL, "/") {
		config.Static.URL += "/"
	}
	if config.Static.Root == "" {
		config.Static.Root = "."
	}
	if len(config.Providers) == 0 {
		config.Providers = DefaultProviders()
	}
	if config.Build.FailurePolicy == "" {
		config.Build.FailurePolicy = FailureAbort
	}
	if config.Build.Timeout == 0 {
		config.Build.Timeout = 2 * time.Minute
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// AllowedCommands returns the command allowlist for compile providers.
func (c *Config) AllowedCommands() map[string]bool {
	allowed := make(map[string]bool, len(validation.DefaultAllowedCommands)+len(c.Build.AllowedCommands))
	for cmd := range validation.DefaultAllowedCommands {
		allowed[cmd] = true
	}
	for _, cmd := range c.Build.AllowedCommands {
		allowed[cmd] = true
	}
	return allowed
}

// ProvidersFor returns the provider list configured for app.
func (c *Config) ProvidersFor(app string) []ProviderConfig {
	if list, ok := c.AppProviders[app]; ok {
		return list
	}
	return c.Providers
}

// Validate checks struct constraints and the security of paths and commands.
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	seen := make(map[string]bool, len(config.Apps))
	for _, app := range config.Apps {
		if seen[app.Name] {
			return fmt.Errorf("apps: duplicate app name %q", app.Name)
		}
		seen[app.Name] = true
		if err := validation.ValidatePath(app.Path); err != nil {
			return fmt.Errorf("apps: invalid path for %q: %w", app.Name, err)
		}
	}

	if err := validation.ValidatePath(config.Static.Root); err != nil {
		return fmt.Errorf("static: invalid root: %w", err)
	}

	allowed := config.AllowedCommands()
	if err := validateProviders("providers", config.Providers, allowed); err != nil {
		return err
	}
	for app, list := range config.AppProviders {
		if !seen[app] {
			return fmt.Errorf("app_providers: unknown app %q", app)
		}
		if err := validateProviders("app_providers."+app, list, allowed); err != nil {
			return err
		}
	}

	return nil
}

func validateProviders(field string, list []ProviderConfig, allowed map[string]bool) error {
	for i, p := range list {
		if len(p.Command) > 0 {
			if err := validation.ValidateCommandLine(p.Command, allowed); err != nil {
				return fmt.Errorf("%s[%d]: %w", field, i, err)
			}
		}
		if p.Type == ProviderCompile && len(p.Command) == 0 {
			return fmt.Errorf("%s[%d]: compile provider requires a command", field, i)
		}
		if p.Type == ProviderCompile && (p.Source == "" || p.Output == "") {
			return fmt.Errorf("%s[%d]: compile provider requires source and output", field, i)
		}
	}
	return nil
}
