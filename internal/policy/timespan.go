package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reTimespan = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([a-z]*)$`)

var timespanUnits = map[string]time.Duration{
	"":        time.Second,
	"s":       time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"second":  time.Second,
	"seconds": time.Second,
	"m":       time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       24 * time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"w":       7 * 24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
	"y":       365 * 24 * time.Hour,
	"year":    365 * 24 * time.Hour,
	"years":   365 * 24 * time.Hour,
}

// ParseTimespan parses a human timespan such as "4 weeks", "12h" or
// "90" (seconds).
func ParseTimespan(s string) (time.Duration, error) {
	m := reTimespan.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid timespan %q (use e.g. '4 weeks' or '12h')", s)
	}
	unit, ok := timespanUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("invalid timespan unit %q in %q", m[2], s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timespan %q: %w", s, err)
	}
	return time.Duration(n * float64(unit)), nil
}
