package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/syntrixbase/pager/internal/server"
	storage "github.com/syntrixbase/pager/internal/storage/config"
)

// Config holds the application configuration
type Config struct {
	Storage    storage.Config   `yaml:"storage"`
	Pager      PagerConfig      `yaml:"pager"`
	Namespaces NamespacesConfig `yaml:"namespaces"`
	Index      IndexConfig      `yaml:"index"`
	Server     server.Config    `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns the sections' defaults. Namespaces stay empty so a file
// that declares its own does not inherit the built-in one.
func Default() *Config {
	return &Config{
		Storage: storage.DefaultConfig(),
		Pager:   DefaultPagerConfig(),
		Server:  server.DefaultConfig(),
		Logging: DefaultLoggingConfig(),
	}
}

// Load reads configuration from dir.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults ->
// ApplyEnvOverrides -> ResolvePaths -> Validate. Missing files are skipped.
func Load(dir string) (*Config, error) {
	cfg := Default()

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(dir, name), cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyServiceConfigs(dir,
		&cfg.Storage,
		&cfg.Pager,
		&cfg.Namespaces,
		&cfg.Index,
		&cfg.Server,
		&cfg.Logging,
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// Validate checks constraints that span sections.
func (c *Config) Validate() error {
	for ns := range c.Index.Definitions {
		if _, ok := c.Namespaces[ns]; !ok {
			return fmt.Errorf("index.definitions.%s: unknown namespace", ns)
		}
	}
	return nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}
