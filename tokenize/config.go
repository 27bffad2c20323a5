package tokenize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gnoswap-labs/tmscope/formatter"
	"github.com/gnoswap-labs/tmscope/internal"
	"github.com/gnoswap-labs/tmscope/internal/grammar"
	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

// DefaultConfigFile is the configuration read when no path is given.
const DefaultConfigFile = ".tmscope.yaml"

const defaultMatchTimeout = 50 * time.Millisecond

// Config represents the overall configuration of a tmscope run.
type Config struct {
	Name string `yaml:"name"`
	// Grammars maps a file extension to a grammar file. Relative paths are
	// resolved against the directory of the configuration file.
	Grammars     map[string]string        `yaml:"grammars"`
	MatchTimeout time.Duration            `yaml:"matchTimeout"`
	Theme        formatter.Theme          `yaml:"theme,omitempty"`
	Cache        CacheConfig              `yaml:"cache"`
	Rules        map[string]tt.ConfigRule `yaml:"rules,omitempty"`
	Ignore       []string                 `yaml:"ignore,omitempty"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir,omitempty"`
	MaxAge  time.Duration `yaml:"maxAge,omitempty"`

	// MaxEntries bounds the number of cached files. Zero keeps the default.
	MaxEntries int `yaml:"maxEntries,omitempty"`
}

// DefaultConfig returns the configuration written by `tmscope init`.
func DefaultConfig() Config {
	return Config{
		Name:         "tmscope",
		Grammars:     map[string]string{},
		MatchTimeout: defaultMatchTimeout,
		Theme:        formatter.DefaultTheme(),
		Cache: CacheConfig{
			Dir:    ".tmscope-cache",
			MaxAge: 24 * time.Hour,
		},
		Rules: map[string]tt.ConfigRule{
			"unterminated-region": {Severity: tt.SeverityInfo},
		},
	}
}

// LoadConfig reads the YAML configuration at path. Fields it leaves out
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}
	if config.MatchTimeout < 0 {
		return config, fmt.Errorf("%s: negative matchTimeout", path)
	}
	return config, nil
}

// WriteConfig writes config to path, failing if the file exists.
func WriteConfig(path string, config Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GrammarPaths returns the grammar files of config by extension, resolved
// against baseDir.
func (c Config) GrammarPaths(baseDir string) map[string]string {
	paths := make(map[string]string, len(c.Grammars))
	for ext, path := range c.Grammars {
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		paths[ext] = path
	}
	return paths
}

// LoadGrammars compiles every grammar of config. Extensions sharing a
// grammar file share the compiled grammar.
func LoadGrammars(config Config, baseDir string, logger *zap.Logger) (map[string]*grammar.Grammar, error) {
	opts := []grammar.Option{grammar.WithMatchTimeout(config.MatchTimeout)}
	if logger != nil {
		opts = append(opts, grammar.WithLogger(logger))
	}

	paths := config.GrammarPaths(baseDir)
	byPath := make(map[string]*grammar.Grammar)
	grammars := make(map[string]*grammar.Grammar, len(paths))
	var errs []error
	for _, ext := range sortedKeys(paths) {
		path := paths[ext]
		g, ok := byPath[path]
		if !ok {
			var err error
			g, err = grammar.Load(path, opts...)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			byPath[path] = g
		}
		grammars[ext] = g
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return grammars, nil
}

// CheckGrammars compiles the grammar files and reports each failure as an
// Issue.
func CheckGrammars(paths []string, timeout time.Duration) []tt.Issue {
	var issues []tt.Issue
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		if _, err := grammar.Load(path, grammar.WithMatchTimeout(timeout)); err != nil {
			issues = append(issues, internal.CompileIssue(path, err))
		}
	}
	return issues
}

// New creates an engine from the configuration file at configPath.
func New(configPath string, logger *zap.Logger) (*internal.Engine, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(config, filepath.Dir(configPath), logger)
}

// NewFromConfig creates an engine for config. Grammar and cache paths are
// resolved against baseDir.
func NewFromConfig(config Config, baseDir string, logger *zap.Logger, opts ...internal.EngineOption) (*internal.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.Grammars) == 0 {
		return nil, errors.New("no grammars configured")
	}

	grammars, err := LoadGrammars(config, baseDir, logger)
	if err != nil {
		return nil, err
	}

	engineOpts := []internal.EngineOption{
		internal.WithLogger(logger),
		internal.WithRules(config.Rules),
	}
	if config.Cache.Enabled {
		cache, err := newCache(config, baseDir)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, internal.WithCache(cache))
	}

	engine, err := internal.NewEngine(grammars, append(engineOpts, opts...)...)
	if err != nil {
		return nil, err
	}
	for _, p := range config.Ignore {
		engine.IgnorePath(p)
		if !filepath.IsAbs(p) {
			engine.IgnorePath(filepath.Join(baseDir, p))
		}
	}
	return engine, nil
}

func newCache(config Config, baseDir string) (*internal.Cache, error) {
	dir := config.Cache.Dir
	if dir == "" {
		dir = DefaultConfig().Cache.Dir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}

	cache, err := internal.NewCache(dir)
	if err != nil {
		return nil, fmt.Errorf("error creating cache: %w", err)
	}
	if config.Cache.MaxAge > 0 {
		cache.SetMaxAge(config.Cache.MaxAge)
	}
	if config.Cache.MaxEntries > 0 {
		cache.SetMaxEntries(config.Cache.MaxEntries)
	}

	paths := config.GrammarPaths(baseDir)
	deps := make([]string, 0, len(paths))
	for _, ext := range sortedKeys(paths) {
		deps = append(deps, paths[ext])
	}
	if err := cache.SetDependencies(deps...); err != nil {
		return nil, fmt.Errorf("error hashing grammars: %w", err)
	}
	return cache, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
