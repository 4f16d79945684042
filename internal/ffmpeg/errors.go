package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Known stderr failure patterns, checked in order by Hint.
var (
	reAttachmentIssue = regexp.MustCompile(
		`Attachment stream \d+ has no (filename|mimetype) tag`)

	reSubtitleIssue = regexp.MustCompile(
		`(?i)Subtitle codec .* is not supported|` +
			`Could not find tag for codec .* in stream .*subtitle|` +
			`Error initializing output stream .*subtitle|` +
			`Error while opening encoder for output stream .*subtitle|` +
			`Subtitle encoding currently only possible from text to text or bitmap to bitmap`)

	reEncoderIssue = regexp.MustCompile(
		`Unknown encoder|Codec .* is not supported|` +
			`Cannot load libcuda|No NVENC capable devices found|` +
			`Failed to initialise VAAPI connection`)

	reMuxQueueOverflow = regexp.MustCompile(
		`Too many packets buffered for output stream`)

	reTimestampIssue = regexp.MustCompile(
		`(?i)Non-monotonous DTS|non monotonically increasing dts|` +
			`DTS .*out of order|PTS .*out of order|` +
			`pts has no value|missing PTS|Timestamps are unset`)
)

var hints = []struct {
	re   *regexp.Regexp
	hint string
}{
	{reAttachmentIssue, "attachment stream is missing a filename or mimetype tag"},
	{reSubtitleIssue, "subtitle codec cannot be written to the output container"},
	{reEncoderIssue, "encoder or hardware device is not available"},
	{reMuxQueueOverflow, "mux queue overflow; raise max_muxing_queue_size"},
	{reTimestampIssue, "input has broken timestamps"},
}

// Hint returns a short explanation for the first known failure pattern in
// stderr, or "" when none matches.
func Hint(stderr string) string {
	for _, h := range hints {
		if h.re.MatchString(stderr) {
			return h.hint
		}
	}
	return ""
}

// ToolError is returned when an external tool exits non-zero or cannot be
// started. Stderr holds the tail of its error output.
type ToolError struct {
	Binary   string
	ExitCode int // -1 when the process never ran or was killed
	Stderr   string
	Hint     string
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Binary)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Hint != "" {
		b.WriteString(": " + e.Hint)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Err }

// LastLines returns up to n trailing non-empty lines of Stderr.
func (e *ToolError) LastLines(n int) []string {
	lines := strings.FieldsFunc(e.Stderr, func(r rune) bool { return r == '\n' || r == '\r' })
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
