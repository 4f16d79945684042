package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/backmassage/streamplug/internal/mapper"
)

// FormatBytes returns a human-readable IEC size ("512 B", "1.5 GiB", "700 MiB").
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBytesWithSign prefixes with + or - for delta display (e.g. "- 1.2 GiB").
func FormatBytesWithSign(bytes int64) string {
	sign := ""
	if bytes > 0 {
		sign = "+ "
	} else if bytes < 0 {
		sign = "- "
		bytes = -bytes
	}
	return sign + FormatBytes(bytes)
}

// FormatBitrateLabel returns a short label for bitrate in kbps (e.g. "1200 kbps").
func FormatBitrateLabel(kbps int64) string {
	if kbps <= 0 {
		return "n/a"
	}
	if kbps < 1000 {
		return fmt.Sprintf("%d kbps", kbps)
	}
	return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
}

// FormatCount groups thousands ("12,345").
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatAge describes t relative to now ("3 days ago").
func FormatAge(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatDecisions summarises a mapping as "copy 2, clone 1". Clone outputs
// are counted separately from the originals they were cloned from.
func FormatDecisions(res *mapper.Result) string {
	if res == nil {
		return "no decision"
	}
	order := []mapper.Action{mapper.ActionCopy, mapper.ActionEncode, mapper.ActionClone, mapper.ActionDrop, mapper.ActionSkip}
	var parts []string
	for _, a := range order {
		if n := res.Count(a); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", a, n))
		}
	}
	if len(parts) == 0 {
		return "no streams"
	}
	return strings.Join(parts, ", ")
}

// Truncate shortens s to width runes, ending with an ellipsis.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width < 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
