package ffmpeg

import (
	"path/filepath"
	"strings"
)

// DefaultBinary is used when Command.Binary is empty.
const DefaultBinary = "ffmpeg"

// Command is one ffmpeg invocation. Mapping holds the mapper's selection
// block followed by its encoding block.
type Command struct {
	Binary       string
	Global       []string // before -i: log level, hwaccel, threads
	Input        string
	InputOptions []string // after -i: muxing queue size or advanced options
	Mapping      []string
	Overwrite    bool
	Format       string // -f value, e.g. "null"
	Output       string
}

// Args returns the full argument vector, binary first.
func (c Command) Args() []string {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	args := make([]string, 0, 8+len(c.Global)+len(c.InputOptions)+len(c.Mapping))
	args = append(args, bin)
	args = append(args, c.Global...)
	args = append(args, "-i", c.Input)
	args = append(args, c.InputOptions...)
	args = append(args, c.Mapping...)
	if c.Overwrite {
		args = append(args, "-y")
	}
	if c.Format != "" {
		args = append(args, "-f", c.Format)
	}
	return append(args, c.Output)
}

// String renders the command for logs and dry runs.
func (c Command) String() string { return FormatArgs(c.Args()) }

// FormatArgs joins argv for display. Arguments with spaces are
// single-quoted; the result is not meant to be shell-safe.
func FormatArgs(argv []string) string {
	args := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t") {
			a = "'" + a + "'"
		}
		args[i] = a
	}
	return strings.Join(args, " ")
}

// NullOutput returns a copy of c that decodes to the null muxer instead
// of writing a file.
func (c Command) NullOutput() Command {
	c.Format = "null"
	c.Output = "-"
	c.Overwrite = false
	return c
}

// OutputPath returns fileOut with its extension replaced. Transcodes keep
// the input container (fileIn's extension); remuxes pass remuxExt, e.g.
// ".webm".
func OutputPath(fileIn, fileOut, remuxExt string) string {
	ext := filepath.Ext(fileIn)
	if remuxExt != "" {
		ext = "." + strings.TrimPrefix(remuxExt, ".")
	}
	return strings.TrimSuffix(fileOut, filepath.Ext(fileOut)) + ext
}
