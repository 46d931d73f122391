// Package config loads and validates the service configuration. The
// YAML file is checked against an embedded CUE schema before anything is
// constructed from it; the loaded Config is passed explicitly into
// construction, never read from ambient state.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full service configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Engine   EngineConfig   `yaml:"engine"`
	Server   ServerConfig   `yaml:"server"`
}

// ProviderConfig selects and parameterizes the network data source.
type ProviderConfig struct {
	Name     string            `yaml:"name"`
	Path     string            `yaml:"path,omitempty"`
	URL      string            `yaml:"url,omitempty"`
	Username string            `yaml:"username,omitempty"`
	Password string            `yaml:"password,omitempty"`
	FieldMap map[string]string `yaml:"fieldMap,omitempty"`
}

// EngineConfig tunes the tracing engine. Zero values use the engine's
// own defaults.
type EngineConfig struct {
	MaxAttempts int     `yaml:"maxAttempts,omitempty"`
	Delta       float64 `yaml:"delta,omitempty"`
	QueryLimit  int     `yaml:"queryLimit,omitempty"`
}

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	Listen    string `yaml:"listen,omitempty"`
	CacheSize int    `yaml:"cacheSize,omitempty"`
}

// DefaultListen is used when server.listen is absent.
const DefaultListen = ":8080"

// Load reads, schema-checks, and decodes a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse schema-checks and decodes configuration bytes.
func Parse(data []byte) (*Config, error) {
	// Decode twice: once into a generic value for schema validation,
	// once into the typed struct the rest of the program uses.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	return &cfg, nil
}

// validate unifies the raw config with the embedded CUE schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup config schema: %w", err)
	}

	val := ctx.Encode(raw)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Final()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
