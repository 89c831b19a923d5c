// Package config loads booksearch configuration.
//
// The file is looked up in this order:
//   - the --config flag
//   - the BOOKSEARCH_CONFIG environment variable
//   - $XDG_CONFIG_HOME/booksearch/config.yaml
//
// The last location is optional; the first two must exist when given. Values
// left out of the file keep their defaults, and command-line flags override
// both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"booksearch/internal/bktree"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "BOOKSEARCH_CONFIG"

const appName = "booksearch"

// Config is the configuration of the booksearch CLI.
type Config struct {
	// DataDir holds the catalog database and the index.
	DataDir string `yaml:"data_dir"`

	// Database is the SQLite catalog path.
	// Default: <data_dir>/catalog.db
	Database string `yaml:"database"`

	Index  IndexConfig  `yaml:"index"`
	Search SearchConfig `yaml:"search"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// IndexConfig configures the persisted fuzzy index.
type IndexConfig struct {
	// Path is the index file.
	// Default: <data_dir>/index.txt, or index.txt.gz when compressed
	Path string `yaml:"path"`

	// Compress gzips the index file.
	Compress bool `yaml:"compress"`

	// FlushEvery saves the index after this many added books; 0 saves only
	// on exit.
	FlushEvery int `yaml:"flush_every"`

	// VerifyOnLoad checks the tree invariant when the index is loaded.
	VerifyOnLoad bool `yaml:"verify_on_load"`

	// QuarantineDir receives corrupt index files.
	// Default: next to the index
	QuarantineDir string `yaml:"quarantine_dir"`
}

// SearchConfig configures queries.
type SearchConfig struct {
	// Tolerance is the tolerance policy: linear, linear:<factor>, sqrt or
	// fixed:<n>.
	Tolerance string `yaml:"tolerance"`

	// Limit caps hits per query; 0 means no cap.
	Limit int `yaml:"limit"`

	// Workers is the number of parallel queries in a batch.
	Workers int `yaml:"workers"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: filepath.Join(xdg.DataHome, appName),
		Index: IndexConfig{
			FlushEvery:   50,
			VerifyOnLoad: true,
		},
		Search: SearchConfig{
			Tolerance: "linear",
			Limit:     10,
			Workers:   8,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// Load loads the configuration from path, falling back to BOOKSEARCH_CONFIG
// and then DefaultPath when path is empty.
func Load(path string) (*Config, error) {
	required := true
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultPath()
		required = false
	}

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	cfg.expandVariables()
	cfg.Resolve()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// loadFile merges a YAML file into c. Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":          os.Getenv("HOME"),
		"XDG_DATA_HOME": xdg.DataHome,
	}

	c.DataDir = expandVars(c.DataDir, vars)
	vars["DATA_DIR"] = c.DataDir // Update for dependent paths.

	c.Database = expandVars(c.Database, vars)
	c.Index.Path = expandVars(c.Index.Path, vars)
	c.Index.QuarantineDir = expandVars(c.Index.QuarantineDir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Resolve fills paths derived from DataDir that are not set yet.
func (c *Config) Resolve() {
	if c.Database == "" {
		c.Database = filepath.Join(c.DataDir, "catalog.db")
	}
	if c.Index.Path == "" {
		name := "index.txt"
		if c.Index.Compress {
			name += ".gz"
		}
		c.Index.Path = filepath.Join(c.DataDir, name)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Index.FlushEvery < 0 {
		errs = append(errs, fmt.Errorf("index.flush_every must not be negative, got %d", c.Index.FlushEvery))
	}
	if c.Search.Limit < 0 {
		errs = append(errs, fmt.Errorf("search.limit must not be negative, got %d", c.Search.Limit))
	}
	if c.Search.Workers < 1 {
		errs = append(errs, fmt.Errorf("search.workers must be at least 1, got %d", c.Search.Workers))
	}
	if _, err := c.TolerancePolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// TolerancePolicy parses Search.Tolerance.
func (c *Config) TolerancePolicy() (bktree.TolerancePolicy, error) {
	policy, err := bktree.ParseTolerancePolicy(c.Search.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("search.tolerance: %w", err)
	}
	return policy, nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
