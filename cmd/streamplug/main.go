// Command streamplug runs the media plugins outside a host: it file-tests
// one file or a whole library, processes one file through the enabled
// plugins, checks the installed tools, and fetches catalog details.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/backmassage/streamplug/internal/catalog"
	"github.com/backmassage/streamplug/internal/check"
	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/display"
	"github.com/backmassage/streamplug/internal/history"
	"github.com/backmassage/streamplug/internal/logging"
	"github.com/backmassage/streamplug/internal/metrics"
	"github.com/backmassage/streamplug/internal/pipeline"
	"github.com/backmassage/streamplug/internal/plugin"
)

// commit is injected at build time via -ldflags.
var commit = "unknown"

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "streamplug: %v\n", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "streamplug: %v\n", err)
		return 2
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "streamplug: %v\n", err)
		return 1
	}
	defer log.Close()

	// Phase 2: Logger available. The banner goes to stderr so stdout
	// stays parseable.
	if cfg.Command != config.CmdDetails && display.IsTTY(os.Stderr) {
		display.PrintBanner(os.Stderr, display.NewPalette(cfg.ColorMode, os.Stderr), config.Version())
	}
	log.Debug("starting", "version", config.Version(), "commit", commit, "command", cfg.Command, "plugins", cfg.Plugins)

	// Phase 3: Signal handling. Cancelling the context kills a running
	// ffmpeg and stops scans between files.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Command {
	case config.CmdCheck:
		if err := check.RunCheck(ctx, &cfg, plugin.DefaultDeviceDir, log.Component("check")); err != nil {
			return 1
		}
		return 0
	case config.CmdDetails:
		return runDetails(ctx, &cfg, log)
	}

	// Phase 4: Plugin commands.
	m := metrics.New()
	plugins, err := plugin.New(cfg.Plugins, plugin.Env{
		FFmpeg:   cfg.FFmpegPath,
		FFprobe:  cfg.FFprobePath,
		Settings: cfg.Settings,
		Log:      log,
		Metrics:  m,
	})
	if err != nil {
		log.Error("cannot enable plugins", "error", err, "known", plugin.IDs())
		return 2
	}
	if len(plugins) == 0 {
		log.Warn("no plugins enabled", "known", plugin.IDs())
	}

	runner := &pipeline.Runner{
		Cfg:      &cfg,
		Log:      log,
		Plugins:  plugins,
		Metrics:  m,
		Recorder: history.LogRecorder{Log: log.Component("history")},
		Out:      os.Stdout,
		Palette:  display.NewPalette(cfg.ColorMode, os.Stdout),
		Live:     display.IsTTY(os.Stdout),
	}
	defer writeMetrics(&cfg, m, log)

	switch cfg.Command {
	case config.CmdTest:
		rep, err := runner.Test(ctx, cfg.Args[0])
		if err != nil {
			log.Error("file test failed", "error", err)
			return 1
		}
		runner.PrintReport(rep)
		if rep.Outcome() == pipeline.OutcomeFailed {
			return 1
		}

	case config.CmdScan:
		stats, err := runner.Scan(ctx, cfg.Args[0])
		if err != nil {
			log.Error("scan failed", "error", err)
			return 1
		}
		if stats.Failed > 0 {
			return 1
		}

	case config.CmdProcess:
		in, out := cfg.Args[0], cfg.Args[1]
		if samePath(in, out) {
			log.Error("output would overwrite the source", "file", in)
			return 2
		}
		if cfg.DryRun {
			log.Warn("dry run: commands are printed, nothing is written")
		} else if err := check.CheckDeps(ctx, &cfg, plugin.DefaultDeviceDir); err != nil {
			log.Error("missing dependencies", "error", err)
			return 1
		}
		if _, err := runner.Process(ctx, in, out); err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warn("interrupted")
			} else {
				log.Error("task failed", "error", err)
			}
			return 1
		}
	}
	return 0
}

func runDetails(ctx context.Context, cfg *config.Config, log *logging.Logger) int {
	fetcher := catalog.ExecFetcher{Command: cfg.DetailsCommand}
	details, err := catalog.FetchAll(ctx, fetcher, cfg.Args, cfg.Workers, log.Component("catalog"))
	if err != nil {
		log.Error("details fetch failed", "error", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(details); err != nil {
		log.Error("cannot write details", "error", err)
		return 1
	}
	return 0
}

func writeMetrics(cfg *config.Config, m *metrics.Metrics, log *logging.Logger) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn("cannot write metrics", "file", cfg.MetricsFile, "error", err)
		return
	}
	log.Debug("metrics written", "file", cfg.MetricsFile)
}

// samePath compares two paths after resolving them to absolute form.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
