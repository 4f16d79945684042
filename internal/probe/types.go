package probe

import (
	"strconv"
	"strings"
)

// CodecType is the lowercased ffprobe codec_type of a stream.
type CodecType string

const (
	TypeVideo      CodecType = "video"
	TypeAudio      CodecType = "audio"
	TypeSubtitle   CodecType = "subtitle"
	TypeData       CodecType = "data"
	TypeAttachment CodecType = "attachment"
)

// Types lists every addressable stream type in the order ffmpeg flag groups
// are emitted: video, audio, subtitle, then data and attachment.
var Types = []CodecType{TypeVideo, TypeAudio, TypeSubtitle, TypeData, TypeAttachment}

// Ident returns the ffmpeg stream specifier letter for t ("v", "a", "s",
// "d", "t"), or "" when the type cannot be addressed.
func (t CodecType) Ident() string {
	switch t {
	case TypeVideo:
		return "v"
	case TypeAudio:
		return "a"
	case TypeSubtitle:
		return "s"
	case TypeData:
		return "d"
	case TypeAttachment:
		return "t"
	}
	return ""
}

// FormatInfo holds container-level metadata from ffprobe's format section.
// BitRate is zero when ffprobe could not report one.
type FormatInfo struct {
	Filename       string
	NbStreams      int
	FormatName     string
	FormatLongName string
	Duration       float64
	Size           int64
	BitRate        int64
	Tags           map[string]string
}

// Stream is one elementary stream in container order. Optional numeric
// fields use zero for "unknown" except BitRate, which is nil when absent so
// callers can tell a missing value from a zero one.
type Stream struct {
	Index         int
	CodecType     CodecType
	CodecName     string
	CodecLongName string
	Profile       string
	Channels      int
	ChannelLayout string
	SampleRate    int
	Width         int
	Height        int
	CodedWidth    int
	CodedHeight   int
	PixFmt        string
	AvgFrameRate  string
	BitRate       *int64
	AttachedPic   bool
	IsDefault     bool
	Tags          map[string]string
}

// Tag looks up a stream tag by key, ignoring case. Matroska tags arrive
// upper-cased from some muxers ("TITLE") and lower-cased from others.
func (s *Stream) Tag(key string) (string, bool) {
	if s == nil || s.Tags == nil {
		return "", false
	}
	if v, ok := s.Tags[key]; ok {
		return v, true
	}
	for k, v := range s.Tags {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Title returns the stream's title tag or "".
func (s *Stream) Title() string {
	v, _ := s.Tag("title")
	return v
}

// Language returns the stream's language tag or "".
func (s *Stream) Language() string {
	v, _ := s.Tag("language")
	return v
}

// Dimensions returns the display size, falling back to the coded size when
// the container did not report one.
func (s *Stream) Dimensions() (int, int) {
	w, h := s.Width, s.Height
	if w <= 0 || h <= 0 {
		w, h = s.CodedWidth, s.CodedHeight
	}
	return w, h
}

// FrameRate parses AvgFrameRate ("24000/1001" or "25") into frames per
// second. Returns 0 when unknown.
func (s *Stream) FrameRate() float64 {
	num, den, ok := strings.Cut(s.AvgFrameRate, "/")
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil || n <= 0 {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || d <= 0 {
		return 0
	}
	return n / d
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// Streams keep container order.
type ProbeResult struct {
	Format  FormatInfo
	Streams []Stream
}

// StreamsOfType returns the streams of type t in container order.
func (p *ProbeResult) StreamsOfType(t CodecType) []*Stream {
	var out []*Stream
	for i := range p.Streams {
		if p.Streams[i].CodecType == t {
			out = append(out, &p.Streams[i])
		}
	}
	return out
}

// PrimaryVideo returns the first video stream that is not cover art, or nil.
func (p *ProbeResult) PrimaryVideo() *Stream {
	for i := range p.Streams {
		s := &p.Streams[i]
		if s.CodecType == TypeVideo && !s.AttachedPic {
			return s
		}
	}
	return nil
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	v := p.PrimaryVideo()
	if v == nil {
		return "unknown"
	}
	w, h := v.Dimensions()
	if w <= 0 || h <= 0 {
		return "unknown"
	}
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}

// Summary counts streams per type, e.g. "1v 2a 1s".
func (p *ProbeResult) Summary() string {
	parts := make([]string, 0, len(Types))
	for _, t := range Types {
		if n := len(p.StreamsOfType(t)); n > 0 {
			parts = append(parts, strconv.Itoa(n)+t.Ident())
		}
	}
	return strings.Join(parts, " ")
}
