package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Matroska file with:
//   - 1 attached pic (cover art)
//   - 1 HEVC video stream (1920x1080)
//   - 1 DTS 5.1 audio stream with BPS tag only
//   - 1 AAC stereo audio stream
//   - 1 PGS subtitle stream
//   - 1 font attachment
const sampleMKV = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 600,
      "height": 900,
      "disposition": { "default": 0, "attached_pic": 1 },
      "tags": { "comment": "Cover (front)" }
    },
    {
      "index": 1,
      "codec_name": "hevc",
      "codec_type": "video",
      "profile": "Main 10",
      "pix_fmt": "yuv420p10le",
      "width": 1920,
      "height": 1080,
      "bit_rate": "5000000",
      "avg_frame_rate": "24000/1001",
      "disposition": { "default": 1, "attached_pic": 0 },
      "tags": {}
    },
    {
      "index": 2,
      "codec_name": "DTS",
      "codec_type": "Audio",
      "profile": "DTS",
      "channels": 6,
      "channel_layout": "5.1(side)",
      "sample_rate": "48000",
      "disposition": { "default": 1 },
      "tags": { "LANGUAGE": "eng", "TITLE": "Surround 5.1", "BPS": "1509000" }
    },
    {
      "index": 3,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 2,
      "sample_rate": "48000",
      "bit_rate": "192000",
      "disposition": { "default": 0 },
      "tags": { "language": "jpn" }
    },
    {
      "index": 4,
      "codec_name": "hdmv_pgs_subtitle",
      "codec_type": "subtitle",
      "disposition": { "default": 0 },
      "tags": { "language": "eng" }
    },
    {
      "index": 5,
      "codec_type": "attachment",
      "tags": { "filename": "font.ttf", "mimetype": "font/ttf" }
    }
  ],
  "format": {
    "filename": "/media/test/Movie.mkv",
    "nb_streams": 6,
    "format_name": "matroska,webm",
    "format_long_name": "Matroska / WebM",
    "duration": "5400.500000",
    "size": "4000000000",
    "bit_rate": "5925000",
    "tags": { "title": "Movie" }
  }
}`

// Minimal MP4 with no bitrates anywhere.
const sampleMinimal = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "coded_width": 1280,
      "coded_height": 720,
      "disposition": { "default": 1 }
    }
  ],
  "format": {
    "filename": "clip.mp4",
    "nb_streams": 1,
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "12.000000"
  }
}`

func TestParseJSON_MKV(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleMKV))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if pr.Format.Filename != "/media/test/Movie.mkv" {
		t.Errorf("filename: got %q", pr.Format.Filename)
	}
	if pr.Format.Duration != 5400.5 {
		t.Errorf("duration: got %f, want 5400.5", pr.Format.Duration)
	}
	if pr.Format.BitRate != 5925000 {
		t.Errorf("format bitrate: got %d", pr.Format.BitRate)
	}
	if len(pr.Streams) != 6 {
		t.Fatalf("streams: got %d, want 6", len(pr.Streams))
	}

	// Container order is preserved.
	for i, s := range pr.Streams {
		if s.Index != i {
			t.Errorf("stream %d: index %d", i, s.Index)
		}
	}

	// codec_type and codec_name are lowercased at the boundary.
	dts := pr.Streams[2]
	if dts.CodecType != TypeAudio || dts.CodecName != "dts" {
		t.Errorf("dts stream: type=%q codec=%q", dts.CodecType, dts.CodecName)
	}
	if dts.Title() != "Surround 5.1" || dts.Language() != "eng" {
		t.Errorf("dts tags: title=%q lang=%q", dts.Title(), dts.Language())
	}
	if dts.BitRate == nil || *dts.BitRate != 1509000 {
		t.Errorf("dts bitrate should come from BPS tag, got %v", dts.BitRate)
	}

	if !pr.Streams[0].AttachedPic {
		t.Error("stream 0 should be attached_pic")
	}
	if pr.Streams[5].CodecName != "" {
		t.Errorf("attachment codec: got %q, want empty", pr.Streams[5].CodecName)
	}
}

func TestParseJSON_Minimal(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleMinimal))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	v := pr.Streams[0]
	if v.BitRate != nil {
		t.Errorf("bitrate should be nil, got %d", *v.BitRate)
	}
	if pr.Format.BitRate != 0 {
		t.Errorf("format bitrate should be 0, got %d", pr.Format.BitRate)
	}
	if got := pr.Resolution(); got != "1280x720" {
		t.Errorf("resolution from coded size: got %q", got)
	}
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	if _, err := ParseJSON([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseJSON([]byte(`{}`)); err == nil {
		t.Error("expected error for empty probe")
	}
}

func TestPrimaryVideo(t *testing.T) {
	pr, _ := ParseJSON([]byte(sampleMKV))
	v := pr.PrimaryVideo()
	if v == nil {
		t.Fatal("PrimaryVideo is nil")
	}
	if v.Index != 1 {
		t.Errorf("primary video should skip cover art: got index %d", v.Index)
	}
	if got := pr.Resolution(); got != "1920x1080" {
		t.Errorf("resolution: got %q", got)
	}
}

func TestStreamsOfType(t *testing.T) {
	pr, _ := ParseJSON([]byte(sampleMKV))
	tests := []struct {
		typ  CodecType
		want int
	}{
		{TypeVideo, 2},
		{TypeAudio, 2},
		{TypeSubtitle, 1},
		{TypeData, 0},
		{TypeAttachment, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := len(pr.StreamsOfType(tt.typ)); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
	if got := pr.Summary(); got != "2v 2a 1s 1t" {
		t.Errorf("summary: got %q", got)
	}
}

func TestStreamBitRateOptional(t *testing.T) {
	pr, _ := ParseJSON([]byte(sampleMKV))
	if b := pr.Streams[3].BitRate; b == nil || *b != 192000 {
		t.Errorf("with stream bitrate: got %v", b)
	}
	if b := pr.Streams[4].BitRate; b != nil {
		t.Errorf("absent bitrate: got %d, want nil", *b)
	}
	if pr.Format.BitRate != 5925000 {
		t.Errorf("format bitrate: got %d", pr.Format.BitRate)
	}
}

func TestCodecTypeIdent(t *testing.T) {
	tests := map[CodecType]string{
		TypeVideo:      "v",
		TypeAudio:      "a",
		TypeSubtitle:   "s",
		TypeData:       "d",
		TypeAttachment: "t",
		"":             "",
		"unknown":      "",
	}
	for typ, want := range tests {
		if got := typ.Ident(); got != want {
			t.Errorf("%q.Ident(): got %q, want %q", typ, got, want)
		}
	}
}

func TestFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30", 30},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		s := Stream{AvgFrameRate: tt.in}
		if got := s.FrameRate(); got != tt.want {
			t.Errorf("FrameRate(%q): got %f, want %f", tt.in, got, tt.want)
		}
	}
	s := Stream{AvgFrameRate: "24000/1001"}
	if got := s.FrameRate(); got < 23.97 || got > 23.98 {
		t.Errorf("FrameRate(24000/1001): got %f", got)
	}
}

func TestTagCaseInsensitive(t *testing.T) {
	s := &Stream{Tags: map[string]string{"TITLE": "English"}}
	if got := s.Title(); got != "English" {
		t.Errorf("title: got %q", got)
	}
	var nilStream *Stream
	if _, ok := nilStream.Tag("title"); ok {
		t.Error("nil stream should have no tags")
	}
}

func TestProbe_MissingFile(t *testing.T) {
	p := NewProber("ffprobe", nil)
	_, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"))
	if !errors.Is(err, ErrProbeFailure) {
		t.Errorf("expected ErrProbeFailure, got %v", err)
	}
}

func TestProbe_RejectsTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.mkv")
	if err := os.WriteFile(path, []byte("plain text, not a media file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewProber("ffprobe", nil)
	_, err := p.Probe(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedMIME) {
		t.Errorf("expected ErrUnsupportedMIME, got %v", err)
	}
	if !errors.Is(err, ErrProbeFailure) {
		t.Errorf("ErrUnsupportedMIME should also match ErrProbeFailure")
	}
}
