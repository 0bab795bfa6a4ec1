package provider

import (
	"fmt"
	"sync/atomic"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/config"
	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/logging"
	"github.com/conneroisu/assetry/internal/metrics"
	"github.com/conneroisu/assetry/internal/static"
)

// FailurePolicy decides what a run does when a provider fails.
type FailurePolicy string

const (
	// FailAbort stops the run at the first failure and returns it.
	FailAbort FailurePolicy = config.FailureAbort
	// FailCollect finishes the run and returns every failure joined together.
	FailCollect FailurePolicy = config.FailureCollect
	// FailLog logs each failure and returns the output of the other providers.
	FailLog FailurePolicy = config.FailureLog
)

// ParseFailurePolicy converts a configured policy name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case FailAbort, FailCollect, FailLog:
		return p, nil
	case "":
		return FailAbort, nil
	default:
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown failure policy %q", s))
	}
}

// Settings is the process-wide provider configuration installed by Init.
type Settings struct {
	// Apps maps application names to their provider lists.
	Apps map[string][]Provider
	// Default is used for applications missing from Apps.
	Default []Provider
	// Loader resolves templates for TemplateProviders.
	Loader        Loader
	FailurePolicy FailurePolicy
	Logger        logging.Logger
	Metrics       *metrics.Collector
}

func (s *Settings) providersFor(app string) []Provider {
	if list, ok := s.Apps[app]; ok {
		return list
	}
	return s.Default
}

var state atomic.Pointer[Settings]

// Init installs the process-wide settings. It is called once while the
// rendering engine starts; runs read the settings without locking.
func Init(s Settings) error {
	if s.FailurePolicy == "" {
		s.FailurePolicy = FailAbort
	}
	if _, err := ParseFailurePolicy(string(s.FailurePolicy)); err != nil {
		return err
	}
	if s.Logger == nil {
		s.Logger = logging.Nop()
	}
	state.Store(&s)
	return nil
}

// Reset removes the installed settings.
func Reset() {
	state.Store(nil)
}

// Initialized reports whether Init has run.
func Initialized() bool {
	return state.Load() != nil
}

func current() *Settings {
	return state.Load()
}

// Deps are the collaborators shared by the providers built from configuration.
type Deps struct {
	Builder  *build.Builder
	Resolver static.Resolver
	Hasher   *build.HashProvider
	// Allowed is the compiler command allowlist.
	Allowed map[string]bool
}

func (d Deps) withDefaults() Deps {
	if d.Builder == nil {
		d.Builder = build.NewBuilder(0)
	}
	if d.Hasher == nil {
		d.Hasher = build.NewHashProvider(nil)
	}
	return d
}

// FromConfig builds the provider lists described by cfg. The returned
// settings still need a Loader before they are passed to Init.
func FromConfig(cfg *config.Config, deps Deps) (Settings, error) {
	policy, err := ParseFailurePolicy(cfg.Build.FailurePolicy)
	if err != nil {
		return Settings{}, err
	}
	if deps.Allowed == nil {
		deps.Allowed = cfg.AllowedCommands()
	}

	def, err := NewList(cfg.Providers, deps)
	if err != nil {
		return Settings{}, err
	}

	apps := make(map[string][]Provider, len(cfg.AppProviders))
	for app, list := range cfg.AppProviders {
		providers, err := NewList(list, deps)
		if err != nil {
			return Settings{}, fmt.Errorf("app %s: %w", app, err)
		}
		apps[app] = providers
	}

	return Settings{
		Apps:          apps,
		Default:       def,
		FailurePolicy: policy,
	}, nil
}

// NewList builds providers from their configuration, keeping the order.
func NewList(list []config.ProviderConfig, deps Deps) ([]Provider, error) {
	deps = deps.withDefaults()
	providers := make([]Provider, 0, len(list))
	for i, pc := range list {
		p, err := New(pc, deps)
		if err != nil {
			return nil, fmt.Errorf("provider %d (%s): %w", i, pc.Type, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// New builds one provider from its configuration.
func New(pc config.ProviderConfig, deps Deps) (Provider, error) {
	deps = deps.withDefaults()

	var (
		p   Provider
		err error
	)
	switch pc.Type {
	case config.ProviderCompile, config.ProviderScss, config.ProviderScssm, config.ProviderLess:
		opts := CompileOptions{
			Group:     pc.Group,
			Source:    pc.Source,
			Output:    pc.Output,
			Command:   pc.Command,
			Mode:      CompileMode(pc.Mode),
			CacheBust: CacheBust(pc.CacheBust),
			CheckOnce: pc.CheckOnce,
		}
		var cp *CompileProvider
		switch pc.Type {
		case config.ProviderScss:
			cp, err = NewScssProvider(opts, deps)
		case config.ProviderScssm:
			cp, err = NewScssmProvider(opts, deps)
		case config.ProviderLess:
			cp, err = NewLessProvider(opts, deps)
		default:
			cp, err = NewCompileProvider(opts, deps)
		}
		p = cp
	case config.ProviderLinkCSS, config.ProviderLinkJS:
		opts := LinkOptions{
			Group:       pc.Group,
			Filepath:    pc.Filepath,
			CacheBust:   CacheBust(pc.CacheBust),
			ModuleEntry: pc.ModuleEntry,
		}
		var lp *LinkProvider
		if pc.Type == config.ProviderLinkCSS {
			lp, err = NewCSSLinkProvider(opts, deps)
		} else {
			lp, err = NewJSLinkProvider(opts, deps)
		}
		p = lp
	case config.ProviderTemplateCSS:
		p = NewTemplateCSSProvider(InlineOptions{Group: pc.Group, Filepath: pc.Filepath})
	case config.ProviderTemplateJS:
		p = NewTemplateJSProvider(InlineOptions{Group: pc.Group, Filepath: pc.Filepath})
	default:
		err = errors.NewConfigError(errors.ErrCodeUnknownProvider,
			fmt.Sprintf("unknown provider type %q", pc.Type))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
