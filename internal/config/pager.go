package config

import (
	"fmt"
	"os"
	"time"

	"github.com/syntrixbase/pager/internal/index"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/pager"
	"github.com/syntrixbase/pager/pkg/model"
)

// PagerConfig selects how pages are computed.
type PagerConfig struct {
	// Strategy is the default strategy: auto, remote, index or bulk.
	Strategy string `yaml:"strategy"`
	// Mode is decoded (type-aware) or raw (text) comparison.
	Mode string `yaml:"mode"`
	// DefaultPageSize is used when a request gives no size.
	DefaultPageSize int `yaml:"default_page_size"`
}

func DefaultPagerConfig() PagerConfig {
	return PagerConfig{
		Strategy:        string(pager.StrategyAuto),
		Mode:            string(model.ModeDecoded),
		DefaultPageSize: 20,
	}
}

func (c *PagerConfig) ApplyDefaults() {
	d := DefaultPagerConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = d.DefaultPageSize
	}
}

func (c *PagerConfig) ApplyEnvOverrides() {
	if val := os.Getenv("PAGER_STRATEGY"); val != "" {
		c.Strategy = val
	}
	if val := os.Getenv("PAGER_COMPARE_MODE"); val != "" {
		c.Mode = val
	}
}

func (c *PagerConfig) ResolvePaths(_ string) { _ = c }

func (c *PagerConfig) Validate() error {
	if _, err := pager.ParseStrategy(c.Strategy); err != nil {
		return fmt.Errorf("pager.strategy: %w", err)
	}
	if !model.CompareMode(c.Mode).IsValid() {
		return fmt.Errorf("pager.mode: unknown compare mode %q", c.Mode)
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > model.MaxPageSize {
		return fmt.Errorf("pager.default_page_size must be in 1..%d", model.MaxPageSize)
	}
	return nil
}

// NamespacesConfig maps a namespace name to its key template,
// e.g. accounts: "account_id:{account_id}:org_id:{org_id}:bigorg".
type NamespacesConfig map[string]string

const DefaultNamespace = "accounts"

func DefaultNamespacesConfig() NamespacesConfig {
	return NamespacesConfig{DefaultNamespace: "account_id:{account_id}:org_id:{org_id}:bigorg"}
}

func (c *NamespacesConfig) ApplyDefaults() {
	if len(*c) == 0 {
		*c = DefaultNamespacesConfig()
	}
}

func (c *NamespacesConfig) ApplyEnvOverrides() { _ = c }

func (c *NamespacesConfig) ResolvePaths(_ string) { _ = c }

func (c *NamespacesConfig) Validate() error {
	_, err := c.Compile()
	return err
}

// Compile parses every template.
func (c NamespacesConfig) Compile() (map[string]*keyspace.Namespace, error) {
	out := make(map[string]*keyspace.Namespace, len(c))
	for name, tmpl := range c {
		if name == "" {
			return nil, fmt.Errorf("namespaces: empty namespace name")
		}
		ns, err := keyspace.ParseTemplate(tmpl)
		if err != nil {
			return nil, fmt.Errorf("namespaces.%s: %w", name, err)
		}
		out[name] = ns
	}
	return out, nil
}

// IndexConfig declares the secondary indexes, keyed by namespace name.
// Each index covers the whole namespace.
type IndexConfig struct {
	Enabled     bool                          `yaml:"enabled"`
	Definitions map[string][]index.Definition `yaml:"definitions"`
	// RefreshInterval is how often every index is rebuilt from the store.
	// Writes made through a store with a change feed are indexed immediately.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

const DefaultIndexRefreshInterval = 30 * time.Second

func (c *IndexConfig) ApplyDefaults() {
	if c.Definitions == nil {
		c.Definitions = map[string][]index.Definition{}
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = DefaultIndexRefreshInterval
	}
}

func (c *IndexConfig) ApplyEnvOverrides() {
	if val := os.Getenv("PAGER_INDEX_REFRESH_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.RefreshInterval = d
		}
	}
}

func (c *IndexConfig) ResolvePaths(_ string) { _ = c }

func (c *IndexConfig) Validate() error {
	if c.RefreshInterval < 0 {
		return fmt.Errorf("index.refresh_interval must not be negative")
	}
	for ns, defs := range c.Definitions {
		seen := make(map[string]bool, len(defs))
		for _, d := range defs {
			if d.Field == "" {
				return fmt.Errorf("index.definitions.%s: field name is required", ns)
			}
			if seen[d.Field] {
				return fmt.Errorf("index.definitions.%s: field %q declared twice", ns, d.Field)
			}
			seen[d.Field] = true
		}
	}
	return nil
}
