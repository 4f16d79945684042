package policy

import (
	"fmt"
	"strings"
)

// EBU R128 defaults for the loudnorm filter.
const (
	DefaultIntegrated   = "-24.0"
	DefaultLoudRange    = "7.0"
	DefaultTruePeak     = "-2.0"
	NormaliseMarkerTag  = "unmanic:normalise_aac"
	loudnormFilterStart = "loudnorm="
)

// Loudnorm holds the three loudnorm targets as entered by the user.
type Loudnorm struct {
	Integrated string
	LoudRange  string
	TruePeak   string
}

// Filter renders the filter graph, substituting the default for any empty
// field independently.
func (l Loudnorm) Filter() string {
	return fmt.Sprintf("%sI=%s:LRA=%s:TP=%s", loudnormFilterStart,
		orDefault(l.Integrated, DefaultIntegrated),
		orDefault(l.LoudRange, DefaultLoudRange),
		orDefault(l.TruePeak, DefaultTruePeak),
	)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// CleanMarker strips whitespace and the single quotes older releases
// wrapped around the marker value.
func CleanMarker(v string) string {
	return strings.Trim(strings.TrimSpace(v), "'")
}

// IsLoudnormFilter reports whether v looks like a graph produced by Filter.
func IsLoudnormFilter(v string) bool {
	return strings.HasPrefix(CleanMarker(v), loudnormFilterStart)
}
