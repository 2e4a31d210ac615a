package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fragnav/fragnav/internal/fragment"
	"github.com/fragnav/fragnav/internal/route"
)

// Config holds all engine configuration.
type Config struct {
	// Base URL the site's templates are fetched relative to
	BaseURL string `json:"base_url" yaml:"base_url"`

	// CSS selector of the element whose children are swapped on navigation
	Mount string `json:"mount" yaml:"mount"`

	// Route table: route key to page descriptor
	Routes map[string]route.Route `json:"routes" yaml:"routes"`

	// Fragment table: fragment name to template URI
	Fragments map[string]string `json:"fragments" yaml:"fragments"`

	// Request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Maximum fragment nesting depth
	MaxFragmentDepth int `json:"max_fragment_depth" yaml:"max_fragment_depth"`

	// Concurrent sibling fragment fetches
	FragmentConcurrency int `json:"fragment_concurrency" yaml:"fragment_concurrency"`

	// Title used when a page declares none
	DefaultTitle string `json:"default_title" yaml:"default_title"`

	// Title set by the literal not-found page
	NotFoundTitle string `json:"not_found_title" yaml:"not_found_title"`

	// Prefetch rate limiting
	Prefetch PrefetchConfig `json:"prefetch" yaml:"prefetch"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// PrefetchConfig bounds prefetch warm-up traffic.
type PrefetchConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mount:               "#app",
		Timeout:             10 * time.Second,
		MaxFragmentDepth:    fragment.DefaultMaxDepth,
		FragmentConcurrency: fragment.DefaultConcurrency,
		DefaultTitle:        "Untitled page",
		NotFoundTitle:       "Page not found",
		Prefetch: PrefetchConfig{
			RequestsPerSecond: 10,
			Burst:             5,
		},
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}

	for key, r := range c.Routes {
		if r.Template == "" {
			return fmt.Errorf("route %q has no template", key)
		}
	}

	if c.MaxFragmentDepth < 1 {
		return fmt.Errorf("max fragment depth must be at least 1")
	}

	if c.FragmentConcurrency < 1 {
		return fmt.Errorf("fragment concurrency must be at least 1")
	}

	if c.Prefetch.RequestsPerSecond <= 0 {
		return fmt.Errorf("prefetch rate must be positive")
	}

	return nil
}
