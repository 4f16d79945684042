package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Prober runs ffprobe against files whose MIME category is allowed. A zero
// Categories list allows audio, video and image files.
type Prober struct {
	Binary     string
	Categories []string
	Log        hclog.Logger
}

// DefaultCategories are the MIME top-level types that are worth probing.
var DefaultCategories = []string{"audio", "video", "image"}

// NewProber returns a Prober for the ffprobe binary restricted to the given
// MIME categories.
func NewProber(binary string, log hclog.Logger, categories ...string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Prober{Binary: binary, Categories: categories, Log: log}
}

// Probe runs a single ffprobe JSON call against path and returns the parsed
// result. Every failure wraps ErrProbeFailure so callers can tell "could not
// decide" apart from "nothing to do".
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}

	category, err := MIMECategory(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}
	if !p.allows(category) {
		p.Log.Debug("skipping file with unsupported mime category", "path", path, "category", category)
		return nil, fmt.Errorf("%w: %q is %s", ErrUnsupportedMIME, path, category)
	}

	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		p.Log.Debug("ffprobe failed", "path", path, "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("%w: ffprobe %q: %w", ErrProbeFailure, path, err)
	}

	pr, err := ParseJSON(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrProbeFailure, path, err)
	}
	return pr, nil
}

func (p *Prober) allows(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	if raw.Format.Filename == "" && len(raw.Streams) == 0 {
		return nil, errors.New("ffprobe JSON has neither format nor streams")
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename       string            `json:"filename"`
	NbStreams      int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	CodecType     string            `json:"codec_type"`
	Profile       string            `json:"profile"`
	PixFmt        string            `json:"pix_fmt"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	CodedWidth    int               `json:"coded_width"`
	CodedHeight   int               `json:"coded_height"`
	BitRate       string            `json:"bit_rate"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	SampleRate    string            `json:"sample_rate"`
	Disposition   map[string]int    `json:"disposition"`
	Tags          map[string]string `json:"tags"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format:  convertFormat(&raw.Format),
		Streams: make([]Stream, 0, len(raw.Streams)),
	}
	for i := range raw.Streams {
		pr.Streams = append(pr.Streams, convertStream(&raw.Streams[i]))
	}
	return pr
}

func convertFormat(f *ffprobeFormat) FormatInfo {
	return FormatInfo{
		Filename:       f.Filename,
		NbStreams:      f.NbStreams,
		FormatName:     f.FormatName,
		FormatLongName: f.FormatLongName,
		Duration:       parseFloat(f.Duration),
		Size:           parseInt64(f.Size),
		BitRate:        parseInt64(f.BitRate),
		Tags:           f.Tags,
	}
}

func convertStream(s *ffprobeStream) Stream {
	return Stream{
		Index:         s.Index,
		CodecType:     CodecType(strings.ToLower(strings.TrimSpace(s.CodecType))),
		CodecName:     strings.ToLower(strings.TrimSpace(s.CodecName)),
		CodecLongName: s.CodecLongName,
		Profile:       s.Profile,
		Channels:      s.Channels,
		ChannelLayout: s.ChannelLayout,
		SampleRate:    parseInt(s.SampleRate),
		Width:         s.Width,
		Height:        s.Height,
		CodedWidth:    s.CodedWidth,
		CodedHeight:   s.CodedHeight,
		PixFmt:        s.PixFmt,
		AvgFrameRate:  s.AvgFrameRate,
		BitRate:       streamBitRate(s),
		AttachedPic:   s.Disposition["attached_pic"] == 1,
		IsDefault:     s.Disposition["default"] == 1,
		Tags:          s.Tags,
	}
}

// streamBitRate prefers the bit_rate field and falls back to the Matroska
// statistics tag BPS. Returns nil when neither is present.
func streamBitRate(s *ffprobeStream) *int64 {
	if n, ok := parseOptionalInt64(s.BitRate); ok {
		return &n
	}
	for k, v := range s.Tags {
		if strings.EqualFold(k, "BPS") {
			if n, ok := parseOptionalInt64(v); ok {
				return &n
			}
		}
	}
	return nil
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseOptionalInt64(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseInt64(s string) int64 {
	n, _ := parseOptionalInt64(s)
	return n
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	n, _ := strconv.Atoi(s)
	return n
}
