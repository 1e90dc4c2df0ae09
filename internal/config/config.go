// Package config loads varlens.toml, the per-workspace settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/jward/varlens/internal/diagnostics"
)

// FileName is the name searched for when discovering configuration.
const FileName = "varlens.toml"

// Config is the decoded configuration plus where it came from.
type Config struct {
	// Path of the loaded file, or "" when defaults are in use.
	Path string `toml:"-"`
	// Root is the workspace root: the directory holding the file, or the
	// starting directory when none was found.
	Root string `toml:"-"`

	Index       IndexConfig       `toml:"index"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Rules       RulesConfig       `toml:"rules"`
	Log         LogConfig         `toml:"log"`
}

type IndexConfig struct {
	Include  []string `toml:"include"`
	Exclude  []string `toml:"exclude"`
	Database string   `toml:"database"`
}

type DiagnosticsConfig struct {
	AmbiguousReferences string `toml:"ambiguous_references"`
	Max                 int    `toml:"max"`
}

type RulesConfig struct {
	Dir string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Include:  []string{"**/*.varlink"},
			Database: filepath.Join(".varlens", "index.db"),
		},
		Diagnostics: DiagnosticsConfig{AmbiguousReferences: "silent"},
		Log:         LogConfig{Level: "warn"},
	}
}

// Find walks up from startDir looking for varlens.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("config: resolving %s: %w", startDir, err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("config: stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Discover loads the nearest varlens.toml above startDir, or the defaults
// rooted at startDir when there is none.
func Discover(startDir string) (*Config, error) {
	p, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		cfg := Default()
		root, err := filepath.Abs(startDir)
		if err != nil {
			return nil, fmt.Errorf("config: resolving %s: %w", startDir, err)
		}
		cfg.Root = root
		return cfg, nil
	}
	return Load(p)
}

// Load decodes the file at p over the defaults. Unknown keys are rejected.
func Load(p string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(p, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", p, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: %s: unknown keys %s", p, strings.Join(keys, ", "))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("config: resolving %s: %w", p, err)
	}
	cfg.Path = abs
	cfg.Root = filepath.Dir(abs)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", p, err)
	}
	return cfg, nil
}

// Validate checks values that decode fine but cannot be used.
func (c *Config) Validate() error {
	for _, pat := range append(append([]string{}, c.Index.Include...), c.Index.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid glob %q", pat)
		}
	}
	if _, err := c.AmbiguityPolicy(); err != nil {
		return err
	}
	if c.Diagnostics.Max < 0 {
		return fmt.Errorf("[diagnostics].max must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// AmbiguityPolicy returns the configured handling of ambiguous references.
func (c *Config) AmbiguityPolicy() (diagnostics.AmbiguityPolicy, error) {
	return diagnostics.ParseAmbiguityPolicy(c.Diagnostics.AmbiguousReferences)
}

// DiagnosticOptions converts the [diagnostics] section.
func (c *Config) DiagnosticOptions() diagnostics.Options {
	policy, _ := c.AmbiguityPolicy()
	return diagnostics.Options{Ambiguity: policy, MaxDiagnostics: c.Diagnostics.Max}
}

// LogLevel parses [log].level; empty means warn.
func (c *Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("[log].level: %w", err)
	}
	return lvl, nil
}

// DatabasePath resolves [index].database against the workspace root.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Index.Database)
}

// RulesDir resolves [rules].dir against the workspace root; "" when unset.
func (c *Config) RulesDir() string {
	if c.Rules.Dir == "" {
		return ""
	}
	return c.resolve(c.Rules.Dir)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Matches reports whether rel, a slash-separated path relative to the
// workspace root, is included and not excluded.
func (c *Config) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pat := range c.Index.Exclude {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return false
		}
	}
	for _, pat := range c.Index.Include {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
