// Package config loads YAML configuration for the optimizer and
// preprocessor, expanding shell-style environment variable references
// (${VAR}, $VAR, ${VAR:-default}).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

// Loader configures the input backend the optimizer reads n-grams from.
type Loader struct {
	// Path is either a directory of columnar files or a single file with
	// a ".db" extension, which selects the embedded-DB backend.
	Path string `yaml:"path"`
}

// Optimize mirrors the "optimize" subcommand's tunables, with
// YAML defaults a deployment can check in instead of passing every flag.
type Optimize struct {
	Loader     Loader  `yaml:"loader"`
	OutputDir  string  `yaml:"output_dir"`
	ChunkSize  uint64  `yaml:"chunk_size"`
	ErrorBound float64 `yaml:"error_bound"`
	Verbose    bool    `yaml:"verbose"`
	OutputAll  bool    `yaml:"output_all"`
	Cores      int     `yaml:"cores"`
	PolicyName string  `yaml:"policy"`
}

// Preprocess mirrors the "preprocess" subcommand's tunables.
type Preprocess struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	Gzip      bool   `yaml:"gzip"`
	Continue  bool   `yaml:"continue"`
	DuckDB    bool   `yaml:"duckdb"`
}

// Config is the top-level document; either section may be absent depending
// on which subcommand loads it.
type Config struct {
	Optimize   Optimize   `yaml:"optimize"`
	Preprocess Preprocess `yaml:"preprocess"`
}

// LoadConfig reads and parses the YAML file at path, expanding environment
// variable references in the raw text before unmarshalling.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	expanded := expandEnvVars(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR}, ${VAR:-default}, and $VAR with the
// corresponding environment variable's value. An undefined ${VAR} (no
// default) expands to the empty string; an undefined $VAR is left
// untouched, since it cannot be unambiguously distinguished from literal
// text without the brace delimiters.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		switch {
		case groups[1] != "":
			if v, ok := os.LookupEnv(groups[1]); ok {
				return v
			}
			if groups[2] != "" {
				return groups[3]
			}
			return ""
		case groups[4] != "":
			if v, ok := os.LookupEnv(groups[4]); ok {
				return v
			}
			return match
		default:
			return match
		}
	})
}

// ResolvedCores returns o.Cores if set, otherwise half the available CPUs,
// with a floor of 1.
func (o Optimize) ResolvedCores(availableCPUs int) int {
	if o.Cores > 0 {
		return o.Cores
	}
	c := availableCPUs / 2
	if c < 1 {
		return 1
	}
	return c
}

// IsEmbeddedDB reports whether Loader.Path selects the embedded-DB backend.
func (l Loader) IsEmbeddedDB() bool {
	return strings.HasSuffix(l.Path, ".db")
}
