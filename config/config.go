package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/termlinks/errors"
	"gopkg.in/yaml.v3"
)

// Handler names accepted in disabled_handlers.
const (
	HandlerURL         = "url"
	HandlerUnixPath    = "unix_path"
	HandlerWindowsPath = "windows_path"
)

const (
	DefaultMaxLineLength = 4096
	DefaultEditorScheme  = "phpstorm"
	DefaultStatTimeout   = 500 * time.Millisecond
)

// Dir is the per-user and per-project configuration directory name.
const Dir = ".termlinks"

type Config struct {
	// MaxLineLength bounds the number of bytes scanned per line.
	MaxLineLength int `yaml:"max_line_length"`
	// EditorScheme is the URI scheme used to open a file at a line in an IDE,
	// e.g. "phpstorm" gives phpstorm://open?file=...&line=...
	EditorScheme string `yaml:"editor_scheme"`
	// OpenCommand replaces the OS default opener. Parsed with shell word rules.
	OpenCommand      string        `yaml:"open_command"`
	StatTimeout      time.Duration `yaml:"stat_timeout"`
	DisabledHandlers []string      `yaml:"disabled_handlers"`
	// IgnorePaths are doublestar globs; links whose target matches are not decorated.
	IgnorePaths []string `yaml:"ignore_paths"`
	// TLDsFile replaces the built-in top-level domain list, one label per line.
	TLDsFile string `yaml:"tlds_file"`
}

// Default returns the configuration used when no file overrides a field.
func Default() *Config {
	return &Config{
		MaxLineLength: DefaultMaxLineLength,
		EditorScheme:  DefaultEditorScheme,
		StatTimeout:   DefaultStatTimeout,
	}
}

// Paths returns the user-level and project-level config file locations, in
// load order. Missing directories are skipped.
func Paths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, Dir, "config.yaml"))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, Dir, "config.yaml"))
	}
	return paths
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	return Load(Paths()...)
}

// Load applies each existing file in order on top of the defaults and
// validates the result. Files that do not exist are ignored.
func Load(paths ...string) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := loadFromFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading config %s", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal only overwrites fields present in the YAML, so later files
	// replace earlier ones key by key.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "%v", err)
	}
	return nil
}

// Validate reports static configuration mistakes.
func (c *Config) Validate() error {
	if c.MaxLineLength <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "max_line_length must be positive, got %d", c.MaxLineLength)
	}
	if c.EditorScheme == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "editor_scheme must not be empty")
	}
	if c.StatTimeout <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "stat_timeout must be positive, got %s", c.StatTimeout)
	}
	for _, name := range c.DisabledHandlers {
		switch name {
		case HandlerURL, HandlerUnixPath, HandlerWindowsPath:
		default:
			return errors.Wrapf(errors.ErrInvalidConfig, "unknown handler %q in disabled_handlers", name)
		}
	}
	for _, pattern := range c.IgnorePaths {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Wrapf(errors.ErrInvalidConfig, "invalid glob pattern %q in ignore_paths", pattern)
		}
	}
	return nil
}

// HandlerEnabled reports whether the named built-in handler should be registered.
func (c *Config) HandlerEnabled(name string) bool {
	for _, disabled := range c.DisabledHandlers {
		if disabled == name {
			return false
		}
	}
	return true
}
