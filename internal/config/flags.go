package config

// This file implements CLI flag parsing and help text.
// Global flags come before the subcommand: streamplug [OPTIONS] <command> [args].
// The settings file and env file are located first so that flags always win:
// defaults < settings file < environment < flags.

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// version is shown in --version and help; override at build time with -ldflags "-X main.version=...".
var version = "0.4.0-dev"

// Version returns the build version string.
func Version() string { return version }

// ParseFlags parses args (without the program name) into cfg. On --help or
// --version it prints and exits. On error it returns non-nil (unknown flag,
// unreadable settings file).
func ParseFlags(cfg *Config, args []string) error {
	if err := loadSources(cfg, args); err != nil {
		return err
	}

	fs := flag.NewFlagSet("streamplug", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { printUsage(os.Stderr) }

	// Negated/override flags are captured then applied after Parse so the
	// layered values hold unless the user passes the flag.
	var negated negatedFlags

	defineSourceFlags(fs, cfg)
	definePluginFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &negated)
	defineUtilityFlags(fs, &negated)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printUsage(os.Stderr)
			os.Exit(0)
		}
		return err
	}

	applyNegatedFlags(cfg, &negated)

	if negated.showHelp {
		printUsage(os.Stderr)
		os.Exit(0)
	}
	if negated.showVersion {
		fmt.Fprintln(os.Stdout, "streamplug v"+version)
		os.Exit(0)
	}

	parsePositionalArgs(fs, cfg)
	return nil
}

// loadSources reads the env file and the settings file named by --env-file
// and --config (or STREAMPLUG_CONFIG) before the real parse.
func loadSources(cfg *Config, args []string) error {
	if envFile := lookupFlag(args, "env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %q: %w", envFile, err)
		}
		cfg.EnvFile = envFile
	}

	path := lookupFlag(args, "config")
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return err
		}
	}
	cfg.ApplyEnv()
	return nil
}

// lookupFlag finds the value of a string flag in args without parsing the
// rest. Accepts -name v, --name v, -name=v and --name=v.
func lookupFlag(args []string, name string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		trimmed := strings.TrimLeft(a, "-")
		if trimmed == a {
			continue
		}
		if k, v, ok := strings.Cut(trimmed, "="); ok && k == name {
			return v
		}
		if trimmed == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// negatedFlags holds boolean flags that are applied after Parse.
type negatedFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// defineSourceFlags registers --config, --env-file, tool paths and the cache dir.
func defineSourceFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML settings file")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Load environment variables from file")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "ffmpeg binary")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "ffprobe binary")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for intermediate outputs")
}

// definePluginFlags registers --plugins, --dry-run, --workers, --exclude, --metrics-file.
func definePluginFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var(&listValue{&cfg.Plugins}, "plugins", "Comma-separated plugin ids, in run order")
	fs.Var(&listValue{&cfg.Plugins}, "p", "Same as --plugins")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print commands; do not run ffmpeg")
	fs.BoolVar(&cfg.DryRun, "d", false, "Same as --dry-run")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Catalog fetch workers")
	fs.Var(&appendValue{&cfg.Excludes}, "exclude", "Glob pattern to skip during scan (repeatable)")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to file")
}

// defineDisplayFlags registers --color, --no-color, verbose, --log, --log-level.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --verbose")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "Same as --log")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace | debug | info | warn | error")
}

// defineUtilityFlags registers --version and --help (exit after printing).
func defineUtilityFlags(fs *flag.FlagSet, n *negatedFlags) {
	fs.BoolVar(&n.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&n.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&n.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&n.showHelp, "h", false, "Same as --help")
}

// applyNegatedFlags copies negated and override flag values into cfg.
func applyNegatedFlags(cfg *Config, n *negatedFlags) {
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs sets Command and Args from what follows the flags.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) {
	args := fs.Args()
	if len(args) == 0 {
		return
	}
	cfg.Command = Command(strings.ToLower(args[0]))
	cfg.Args = args[1:]
}

// printUsage writes the help text to w. Column-aligned for readability.
func printUsage(w io.Writer) {
	const col1 = 30 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "streamplug v" + version + " - stream-mapping media plugins"},
		{"", ""},
		{"  streamplug [OPTIONS] <command> [args]", ""},
		{"", ""},
		{"Commands", ""},
		{"  test <file>", "Run the file test of every enabled plugin"},
		{"  process <in> <out>", "Run the enabled plugins' worker stage"},
		{"  scan <dir>", "File-test every media file under dir"},
		{"  check", "Check ffmpeg, ffprobe and required encoders"},
		{"  details <id>...", "Fetch catalog details concurrently"},
		{"", ""},
		{"Plugins", ""},
		{"  -p, --plugins <ids>", "Comma-separated plugin ids, in run order"},
		{"  --config <path>", "YAML settings file (or STREAMPLUG_CONFIG)"},
		{"  --env-file <path>", "Load environment variables from file"},
		{"  --cache-dir <path>", "Directory for intermediate outputs"},
		{"", ""},
		{"Tools", ""},
		{"  --ffmpeg <path>", "ffmpeg binary (default: ffmpeg)"},
		{"  --ffprobe <path>", "ffprobe binary (default: ffprobe)"},
		{"", ""},
		{"Behavior", ""},
		{"  -d, --dry-run", "Print commands; do not run ffmpeg"},
		{"  --exclude <glob>", "Skip matching paths during scan (repeatable)"},
		{"  --workers <n>", "Catalog fetch workers (default: 8)"},
		{"  --metrics-file <path>", "Write Prometheus metrics after the run"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Debug logging"},
		{"  --log-level <level>", "trace | debug | info | warn | error"},
		{"  -l, --log <path>", "Append logs to file"},
		{"", ""},
		{"Utility", ""},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapters for list-valued fields.

// listValue replaces the list with a comma-separated value.
type listValue struct{ p *[]string }

func (l *listValue) String() string {
	if l.p == nil {
		return ""
	}
	return strings.Join(*l.p, ",")
}

func (l *listValue) Set(s string) error {
	items := SplitList(s)
	if len(items) == 0 {
		return fmt.Errorf("empty list %q", s)
	}
	*l.p = items
	return nil
}

// appendValue appends one item per use of the flag.
type appendValue struct{ p *[]string }

func (a *appendValue) String() string {
	if a.p == nil {
		return ""
	}
	return strings.Join(*a.p, ",")
}

func (a *appendValue) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("empty value")
	}
	*a.p = append(*a.p, s)
	return nil
}
