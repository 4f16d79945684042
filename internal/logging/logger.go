// Package logging builds the process logger from config: an hclog logger
// on stderr with optional color, plus an uncolored file sink when a log
// file is configured. Plugins log through named sub-loggers.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
)

// RootName prefixes every logger name.
const RootName = "streamplug"

// Logger is the root logger. Call Close when done if a log file was set.
type Logger struct {
	hclog.InterceptLogger

	mu   sync.Mutex
	file *os.File
	sink hclog.SinkAdapter
}

// NewLogger creates the root logger writing to stderr.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg *config.Config, out io.Writer) (*Logger, error) {
	l := &Logger{}
	l.InterceptLogger = hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:            RootName,
		Level:           cfg.Level(),
		Output:          out,
		Color:           colorOption(cfg.ColorMode),
		ColorHeaderOnly: true,
	})

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		l.sink = hclog.NewSinkAdapter(&hclog.LoggerOptions{
			Name:   RootName,
			Level:  cfg.Level(),
			Output: f,
			Color:  hclog.ColorOff,
		})
		l.RegisterSink(l.sink)
	}
	return l, nil
}

// colorOption maps the configured mode to hclog's. Auto honors NO_COLOR
// and TERM=dumb before falling back to TTY detection.
func colorOption(mode config.ColorMode) hclog.ColorOption {
	switch mode {
	case config.ColorAlways:
		return hclog.ForceColor
	case config.ColorNever:
		return hclog.ColorOff
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return hclog.ColorOff
	}
	return hclog.AutoColor
}

// Component returns the sub-logger for a plugin id or harness component,
// e.g. "streamplug.dts_to_dd" or "streamplug.catalog".
func (l *Logger) Component(name string) hclog.Logger {
	return l.Named(name)
}

// Close detaches and closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.DeregisterSink(l.sink)
	err := l.file.Close()
	l.file = nil
	return err
}
