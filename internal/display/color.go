package display

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/backmassage/streamplug/internal/config"
)

// IsTTY reports whether f is a terminal.
func IsTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Palette colors report text. The zero value writes plain text.
type Palette struct {
	enabled bool
}

// NewPalette decides whether output to f is colored. Auto mode honors
// NO_COLOR and TERM=dumb, then checks for a terminal.
func NewPalette(mode config.ColorMode, f *os.File) Palette {
	switch mode {
	case config.ColorAlways:
		return Palette{enabled: true}
	case config.ColorNever:
		return Palette{}
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return Palette{}
	}
	return Palette{enabled: IsTTY(f)}
}

// Enabled reports whether the palette emits ANSI sequences.
func (p Palette) Enabled() bool { return p.enabled }

func (p Palette) paint(s string, attrs ...color.Attribute) string {
	if !p.enabled {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

// Title is used for banners and table headers.
func (p Palette) Title(s string) string { return p.paint(s, color.Bold, color.FgHiMagenta) }

// Pending marks files that need a task.
func (p Palette) Pending(s string) string { return p.paint(s, color.FgYellow) }

// OK marks conforming files and successful runs.
func (p Palette) OK(s string) string { return p.paint(s, color.FgGreen) }

// Bad marks failures.
func (p Palette) Bad(s string) string { return p.paint(s, color.FgRed) }

// Dim marks skipped files.
func (p Palette) Dim(s string) string { return p.paint(s, color.Faint) }
