package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// maxPending bounds the unterminated tail kept between chunks.
const maxPending = 64 << 10

var (
	// Matches both the stats line "time=00:01:02.50" and the -progress
	// key "out_time=00:01:02.500000".
	reClock    = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	reOutTimeU = regexp.MustCompile(`out_time_us=(\d+)`)
	reFrame    = regexp.MustCompile(`frame=\s*(\d+)`)
)

// Progress is one completion estimate.
type Progress struct {
	Fraction float64 // clamped to [0,1]
	Elapsed  time.Duration
}

// Percent returns Fraction as a whole percentage.
func (p Progress) Percent() int { return int(p.Fraction * 100) }

// ProgressParser turns chunks of ffmpeg output into progress estimates.
// Chunks may split lines anywhere; lines end at '\n' or '\r'. A parser is
// used by one command at a time.
type ProgressParser struct {
	duration  float64
	frameRate float64
	log       hclog.Logger

	pending string
	last    Progress
}

// NewProgressParser returns a parser for a file of the given duration in
// seconds. frameRate enables the frame=N fallback when positive.
func NewProgressParser(durationSeconds, frameRate float64, log hclog.Logger) *ProgressParser {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &ProgressParser{duration: durationSeconds, frameRate: frameRate, log: log}
}

// Feed consumes a chunk and returns the newest estimate found in the
// complete lines it finished. It returns false when none of them carried a
// usable marker.
func (p *ProgressParser) Feed(chunk string) (Progress, bool) {
	data := p.pending + chunk
	cut := strings.LastIndexAny(data, "\r\n")
	if cut < 0 {
		p.pending = keepTail(data)
		return Progress{}, false
	}
	p.pending = keepTail(data[cut+1:])

	var (
		latest Progress
		found  bool
	)
	for _, line := range strings.FieldsFunc(data[:cut], func(r rune) bool { return r == '\r' || r == '\n' }) {
		if pr, ok := p.parseLine(line); ok {
			latest, found = pr, true
		}
	}
	if !found {
		p.log.Trace("no progress marker in chunk", "bytes", len(chunk))
		return Progress{}, false
	}
	p.last = latest
	return latest, true
}

// Last returns the most recent estimate.
func (p *ProgressParser) Last() Progress { return p.last }

func keepTail(s string) string {
	if len(s) > maxPending {
		return s[len(s)-maxPending:]
	}
	return s
}

func (p *ProgressParser) parseLine(line string) (Progress, bool) {
	if p.duration <= 0 {
		return Progress{}, false
	}
	elapsed, ok := elapsedSeconds(line)
	if !ok && p.frameRate > 0 {
		if m := reFrame.FindStringSubmatch(line); m != nil {
			frames, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				elapsed, ok = frames/p.frameRate, true
			}
		}
	}
	if !ok {
		return Progress{}, false
	}
	return Progress{
		Fraction: clamp01(elapsed / p.duration),
		Elapsed:  time.Duration(elapsed * float64(time.Second)),
	}, true
}

func elapsedSeconds(line string) (float64, bool) {
	if m := reOutTimeU.FindStringSubmatch(line); m != nil {
		us, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return float64(us) / 1e6, true
		}
	}
	m := reClock.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(h*3600+mins*60) + sec, true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
