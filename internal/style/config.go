// Package style decides which OSM ways are roads.
package style

import (
	"fmt"
	"os"

	"github.com/paulmach/osm"
	"gopkg.in/yaml.v3"
)

// Config is a road style file
type Config struct {
	Roads *FilterConfig `yaml:"roads,omitempty"`
}

// FilterConfig holds tag rules for ways. A rule with no values matches any
// value of its key; "*" does the same inside a value list.
type FilterConfig struct {
	// Include keeps a way if any rule matches. Empty keeps everything.
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude drops a way if any rule matches, after Include
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny drops ways carrying none of these keys
	RequireAny []string `yaml:"require_any,omitempty"`
}

// DefaultConfig keeps drivable highway ways
func DefaultConfig() *Config {
	return &Config{
		Roads: &FilterConfig{
			Include: map[string][]string{"highway": nil},
			Exclude: map[string][]string{
				"highway": {"footway", "path", "steps", "cycleway", "bridleway", "proposed", "construction"},
				"area":    {"yes"},
			},
		},
	}
}

// LoadConfig reads a style file. A file without a roads section gets the
// default rules.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}
	if cfg.Roads == nil {
		cfg.Roads = DefaultConfig().Roads
	}
	return &cfg, nil
}

// Filter applies a FilterConfig to way tags
type Filter struct {
	cfg FilterConfig
}

// NewFilter creates a filter; nil accepts everything
func NewFilter(cfg *FilterConfig) *Filter {
	if cfg == nil {
		return &Filter{}
	}
	return &Filter{cfg: *cfg}
}

// Match reports whether a way with these tags is a road
func (f *Filter) Match(tags osm.Tags) bool {
	if len(f.cfg.RequireAny) > 0 {
		found := false
		for _, key := range f.cfg.RequireAny {
			if tags.HasTag(key) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.cfg.Include) > 0 && !anyRule(f.cfg.Include, tags) {
		return false
	}
	return !anyRule(f.cfg.Exclude, tags)
}

func anyRule(rules map[string][]string, tags osm.Tags) bool {
	for key, values := range rules {
		if !tags.HasTag(key) {
			continue
		}
		if valueListed(values, tags.Find(key)) {
			return true
		}
	}
	return false
}

func valueListed(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if want == v || want == "*" {
			return true
		}
	}
	return false
}

// HasFilter returns true if any rule is set
func (f *Filter) HasFilter() bool {
	return len(f.cfg.Include) > 0 || len(f.cfg.Exclude) > 0 || len(f.cfg.RequireAny) > 0
}
