// Package loader provides multi-source configuration loading
package loader

import (
	"sort"

	"submux/internal/config/schema"
	"submux/internal/config/source"
	"submux/internal/config/validator"
	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
)

// DefaultEnvPrefix is the environment variable prefix
const DefaultEnvPrefix = "SUBMUX"

// Loader loads configuration from multiple sources in priority order
type Loader struct {
	sources      []source.Source
	skipValidate bool
}

// NewLoader creates a new Loader
func NewLoader() *Loader {
	return &Loader{
		sources: make([]source.Source, 0),
	}
}

// AddSource adds a configuration source
func (l *Loader) AddSource(s source.Source) {
	l.sources = append(l.sources, s)
}

// SetSkipValidate disables the validation phase
func (l *Loader) SetSkipValidate(skip bool) {
	l.skipValidate = skip
}

// Load loads configuration from all sources in priority order
// Lower priority sources are loaded first, then higher priority sources override
func (l *Loader) Load() (*schema.Root, error) {
	if len(l.sources) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "no configuration sources registered")
	}

	sorted := make([]source.Source, len(l.sources))
	copy(sorted, l.sources)
	sort.Stable(source.ByPriority(sorted))

	cfg := &schema.Root{}
	for _, s := range sorted {
		corelog.Debugf("Loading configuration from source: %s (priority %d)", s.Name(), s.Priority())
		if err := s.LoadInto(cfg); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError,
				"failed to load configuration from source %s", s.Name())
		}
	}

	if !l.skipValidate {
		if result := validator.ValidateConfig(cfg); !result.IsValid() {
			return nil, coreerrors.New(coreerrors.CodeConfigError, result.Error())
		}
	}

	return cfg, nil
}

// LoaderBuilder helps build a Loader with common configurations
type LoaderBuilder struct {
	loader       *Loader
	prefix       string
	configFile   string
	overrides    []func(cfg *schema.Root) error
	skipValidate bool
}

// NewLoaderBuilder creates a new LoaderBuilder
func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{
		loader: NewLoader(),
		prefix: DefaultEnvPrefix,
	}
}

// WithPrefix sets the environment variable prefix
func (b *LoaderBuilder) WithPrefix(prefix string) *LoaderBuilder {
	b.prefix = prefix
	return b
}

// WithConfigFile sets the configuration file path
func (b *LoaderBuilder) WithConfigFile(path string) *LoaderBuilder {
	b.configFile = path
	return b
}

// WithOverride adds a CLI-level override applied after all other sources
func (b *LoaderBuilder) WithOverride(fn func(cfg *schema.Root) error) *LoaderBuilder {
	b.overrides = append(b.overrides, fn)
	return b
}

// WithSkipValidate enables or disables the validation phase
func (b *LoaderBuilder) WithSkipValidate(skip bool) *LoaderBuilder {
	b.skipValidate = skip
	return b
}

// Build creates the configured Loader
func (b *LoaderBuilder) Build() *Loader {
	// 1. Defaults (lowest priority)
	b.loader.AddSource(source.NewDefaultSource())

	// 2. YAML file
	configFile := source.FindConfigFile(b.configFile)
	if configFile != "" {
		b.loader.AddSource(source.NewYAMLSource(configFile))
		corelog.Debugf("Using config file: %s", configFile)
	}

	// 3. Environment variables
	b.loader.AddSource(source.NewEnvSource(b.prefix))

	// 4. CLI overrides (highest priority)
	for _, fn := range b.overrides {
		b.loader.AddSource(source.NewFuncSource("cli", source.PriorityCLI, fn))
	}

	b.loader.SetSkipValidate(b.skipValidate)
	return b.loader
}

// Load is a convenience function that creates a loader and loads configuration
func Load(configFile string) (*schema.Root, error) {
	return NewLoaderBuilder().
		WithConfigFile(configFile).
		Build().
		Load()
}
