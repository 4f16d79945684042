// Package config holds runtime configuration: defaults, the optional YAML
// settings file, environment overrides, CLI flag parsing, and validation.
// Per-plugin defaults match the plugin settings users already know.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// --- Enum types for validated string fields ---

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stderr is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Command is the harness subcommand.
type Command string

const (
	CmdTest    Command = "test"    // file-test one file
	CmdProcess Command = "process" // worker-process one file into an output path
	CmdScan    Command = "scan"    // file-test a whole directory
	CmdCheck   Command = "check"   // tool and encoder diagnostics
	CmdDetails Command = "details" // bulk catalog fetch
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// then the settings file, then the environment, then [ParseFlags], and is
// passed by pointer to every package that needs it. Nothing mutates it
// after Validate.
type Config struct {
	// Sources of configuration (not read from the file itself).
	ConfigFile string `yaml:"-"`
	EnvFile    string `yaml:"-"`

	// Plugins enabled for this run, in execution order.
	Plugins []string `yaml:"plugins"`

	// External tools.
	FFmpegPath  string `yaml:"ffmpeg"`  // Default: "ffmpeg" from PATH.
	FFprobePath string `yaml:"ffprobe"` // Default: "ffprobe" from PATH.

	// Processing.
	CacheDir    string   `yaml:"cache_dir"`    // Intermediate outputs for chained plugins.
	Excludes    []string `yaml:"excludes"`     // Glob patterns skipped by scan.
	MetricsFile string   `yaml:"metrics_file"` // Optional Prometheus textfile written after scan/process.
	DryRun      bool     `yaml:"-"`

	// Catalog fetch.
	DetailsCommand []string `yaml:"details_command"` // argv prefix; the id is appended.
	Workers        int      `yaml:"workers"`         // Default: 8.

	// Display and logging.
	Verbose   bool      `yaml:"-"`
	LogLevel  string    `yaml:"log_level"` // Default: "info"; "debug" when --verbose.
	ColorMode ColorMode `yaml:"color"`
	LogFile   string    `yaml:"log_file"`

	// Per-plugin settings.
	Settings Settings `yaml:"settings"`

	// Subcommand and its positional args (set by ParseFlags).
	Command Command  `yaml:"-"`
	Args    []string `yaml:"-"`
}

// DefaultConfig returns a Config with every default applied. Used as the
// base before the settings file, environment and flags are layered on.
func DefaultConfig() Config {
	return Config{
		Plugins:     []string{},
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		CacheDir:    filepath.Join(os.TempDir(), "streamplug"),
		Excludes:    []string{"**/extras/**", "**/.*"},
		Workers:     8,
		LogLevel:    "info",
		ColorMode:   ColorAuto,
		Settings:    DefaultSettings(),
	}
}

// LoadFile overlays the YAML settings file at path onto c. Keys missing
// from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvConfig   = "STREAMPLUG_CONFIG"
	EnvPlugins  = "STREAMPLUG_PLUGINS"
	EnvFFmpeg   = "STREAMPLUG_FFMPEG"
	EnvFFprobe  = "STREAMPLUG_FFPROBE"
	EnvCacheDir = "STREAMPLUG_CACHE_DIR"
	EnvLogLevel = "STREAMPLUG_LOG_LEVEL"
	EnvLogFile  = "STREAMPLUG_LOG_FILE"
)

// ApplyEnv overlays STREAMPLUG_* environment variables onto c.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPlugins); v != "" {
		c.Plugins = SplitList(v)
	}
	if v := os.Getenv(EnvFFmpeg); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv(EnvFFprobe); v != "" {
		c.FFprobePath = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
}

// SplitList splits a comma-separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Level returns the hclog level for the configured log level; --verbose
// always means debug.
func (c *Config) Level() hclog.Level {
	if c.Verbose {
		return hclog.Debug
	}
	return hclog.LevelFromString(c.LogLevel)
}

// Validate checks enum fields, the subcommand's positional args and every
// plugin's settings.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("invalid log level %q (use trace, debug, info, warn or error)", c.LogLevel)
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	if err := c.validateCommand(); err != nil {
		return err
	}
	return c.Settings.Validate()
}

func (c *Config) validateCommand() error {
	switch c.Command {
	case CmdTest, CmdScan:
		if len(c.Args) != 1 {
			return fmt.Errorf("%s needs exactly one path", c.Command)
		}
	case CmdProcess:
		if len(c.Args) != 2 {
			return errors.New("process needs an input file and an output file")
		}
	case CmdDetails:
		if len(c.Args) == 0 {
			return errors.New("details needs at least one id")
		}
		if len(c.DetailsCommand) == 0 {
			return errors.New("details needs details_command in the config file")
		}
	case CmdCheck:
		// no args
	case "":
		return errors.New("missing command (test, process, scan, check, details)")
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}
	return nil
}
