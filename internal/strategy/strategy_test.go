package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/policy"
	"github.com/backmassage/streamplug/internal/probe"
)

func ptr(n int64) *int64 { return &n }

func video(idx int, codec string) probe.Stream {
	return probe.Stream{Index: idx, CodecType: probe.TypeVideo, CodecName: codec, Width: 1920, Height: 1080}
}

func audio(idx int, codec string, channels int, title string) probe.Stream {
	s := probe.Stream{Index: idx, CodecType: probe.TypeAudio, CodecName: codec, Channels: channels}
	if title != "" {
		s.Tags = map[string]string{"title": title}
	}
	return s
}

func subtitle(idx int, codec string) probe.Stream {
	return probe.Stream{Index: idx, CodecType: probe.TypeSubtitle, CodecName: codec}
}

func file(streams ...probe.Stream) *probe.ProbeResult {
	return &probe.ProbeResult{
		Format:  probe.FormatInfo{FormatName: "matroska,webm", BitRate: 10000000, Duration: 60},
		Streams: streams,
	}
}

func joined(args []string) string { return strings.Join(args, " ") }

func TestStereoTag(t *testing.T) {
	tests := []struct {
		title      string
		want       string
		wantLegacy string
	}{
		{"English 5.1", "English [Stereo]", "English Stereo"},
		{"DTS-HD MA 7.1", "DTS-HD MA [Stereo]", "DTS-HD MA Stereo"},
		{"5.1 Surround", "Surround [Stereo]", ". SurroundStereo"},
		{"Track 2.", "Track [Stereo]", "Track Stereo"},
		{"", "[Stereo]", "Stereo"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			s := audio(1, "ac3", 6, tt.title)
			assert.Equal(t, tt.want, StereoTag(&s))
			assert.Equal(t, tt.wantLegacy, LegacyStereoTag(&s))
		})
	}
}

func TestLegacyStereoTag_NoTitleKey(t *testing.T) {
	s := probe.Stream{CodecType: probe.TypeAudio, Tags: map[string]string{"language": "eng"}}
	assert.Equal(t, "Stereo", LegacyStereoTag(&s))
}

func TestDownmix_ClonesMultichannel(t *testing.T) {
	pr := file(video(0, "h264"), audio(1, "ac3", 6, "English"))
	res := mapper.Map(pr, NewDownmix(config.DefaultSettings().Downmix, nil), nil)

	require.True(t, res.NeedsProcessing)
	assert.Equal(t,
		"-map 0:v:0 -map 0:a:0 -map 0:a:0 "+
			"-c:v:0 copy -c:a:0 copy "+
			"-c:a:1 aac -ac:a:1 2 -metadata:s:a:1 title=English [Stereo]",
		joined(res.Args()))
}

func TestDownmix_CarriesLanguageAndCustomOptions(t *testing.T) {
	s := audio(1, "eac3", 8, "Commentary 7.1")
	s.Tags["language"] = "ger"
	set := config.DefaultSettings().Downmix
	set.Advanced = true
	set.CustomOptions = "-b:a 192k"

	d := NewDownmix(set, nil)
	got := d.Encoding(file(s), &s, mapper.Slot{Type: probe.TypeAudio, Output: 3})
	assert.Equal(t,
		"-c:a:3 aac -b:a 192k -ac:a:3 2 -metadata:s:a:3 title=Commentary [Stereo] -metadata:s:a:3 language=ger",
		joined(got))
}

func TestDownmix_SkipsExistingClone(t *testing.T) {
	tests := []struct {
		name     string
		existing string
	}{
		{"canonical", "English [Stereo]"},
		{"quoted canonical", "'English [Stereo]'"},
		{"legacy", "English Stereo"},
		{"quoted legacy", "'English Stereo'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := file(audio(0, "aac", 2, tt.existing), audio(1, "dts", 6, "English 5.1"))
			res := mapper.Map(pr, NewDownmix(config.DefaultSettings().Downmix, nil), nil)
			assert.False(t, res.NeedsProcessing)
			assert.Empty(t, res.Clones)
		})
	}
}

func TestDownmix_ChannelBoundary(t *testing.T) {
	d := NewDownmix(config.DefaultSettings().Downmix, nil)
	for _, ch := range []int{0, 1, 2} {
		s := audio(0, "aac", ch, "English")
		assert.Equal(t, mapper.ActionCopy, d.Classify(file(s), &s), "channels=%d", ch)
	}
	s := audio(0, "aac", 3, "English")
	assert.Equal(t, mapper.ActionClone, d.Classify(file(s), &s))
}

func TestDownmix_Args(t *testing.T) {
	d := NewDownmix(config.DefaultSettings().Downmix, nil)
	assert.Equal(t, "-hide_banner -loglevel info", joined(d.GlobalArgs()))
	assert.Equal(t, "-max_muxing_queue_size 2048", joined(d.InputOptions()))

	d.Settings.Advanced = true
	d.Settings.MainOptions = "-nostdin"
	d.Settings.AdvancedOptions = "-map_metadata 0"
	assert.Equal(t, "-hide_banner -loglevel info -nostdin", joined(d.GlobalArgs()))
	assert.Equal(t, "-map_metadata 0", joined(d.InputOptions()))
}

func TestDTS_Classify(t *testing.T) {
	tests := []struct {
		name    string
		codec   string
		profile string
		hdma    bool
		want    mapper.Action
	}{
		{"core DTS", "dts", "DTS", false, mapper.ActionEncode},
		{"missing profile", "dts", "", false, mapper.ActionEncode},
		{"HD MA toggle off", "dts", "DTS-HD MA", false, mapper.ActionCopy},
		{"HD MA toggle on", "dts", "DTS-HD MA", true, mapper.ActionEncode},
		{"DTS-ES", "dts", "DTS-ES", true, mapper.ActionCopy},
		{"not DTS", "ac3", "", false, mapper.ActionCopy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := audio(1, tt.codec, 6, "")
			s.Profile = tt.profile
			d := NewDTS(config.DTSSettings{DownmixDTSHDMA: tt.hdma}, nil)
			assert.Equal(t, tt.want, d.Classify(file(s), &s))
		})
	}
}

func TestDTS_BitRateTier(t *testing.T) {
	s := audio(1, "dts", 6, "")
	s.Profile = "DTS"
	s.BitRate = ptr(1200000)
	pr := file(video(0, "h264"), s)

	res := mapper.Map(pr, NewDTS(config.DTSSettings{}, nil), nil)
	require.True(t, res.NeedsProcessing)
	assert.Equal(t, "-c:v:0 copy -c:a:0 ac3 -b:a:0 640k", joined(res.EncodingArgs()))

	s.BitRate = ptr(768000)
	res = mapper.Map(file(s), NewDTS(config.DTSSettings{}, nil), nil)
	assert.Equal(t, "-c:a:0 ac3 -b:a:0 448k", joined(res.EncodingArgs()))

	// No bit rate and no profile: maximum tier.
	bare := audio(0, "dts", 6, "")
	res = mapper.Map(file(bare), NewDTS(config.DTSSettings{}, nil), nil)
	assert.Equal(t, "-c:a:0 ac3 -b:a:0 640k", joined(res.EncodingArgs()))
}

const defaultFilter = "loudnorm=I=-24.0:LRA=7.0:TP=-2.0"

func TestNormalise_Classify(t *testing.T) {
	tests := []struct {
		name     string
		codec    string
		marker   string
		recorded string
		ignore   bool
		want     mapper.Action
	}{
		{"unmarked aac", "aac", "", "", true, mapper.ActionEncode},
		{"not aac", "ac3", "", "", false, mapper.ActionCopy},
		{"marker matches", "aac", defaultFilter, "", false, mapper.ActionCopy},
		{"legacy quoted marker matches", "aac", "'" + defaultFilter + "'", "", false, mapper.ActionCopy},
		{"marker differs", "aac", "loudnorm=I=-16:LRA=11:TP=-1.5", "", false, mapper.ActionEncode},
		{"marker differs but ignored", "aac", "loudnorm=I=-16:LRA=11:TP=-1.5", "", true, mapper.ActionCopy},
		{"directory record matches", "aac", "", defaultFilter, false, mapper.ActionCopy},
		{"directory record differs", "aac", "", "loudnorm=I=-16:LRA=11:TP=-1.5", false, mapper.ActionEncode},
		{"foreign directory record ignored", "aac", "", "1700000000", true, mapper.ActionEncode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := audio(1, tt.codec, 2, "")
			if tt.marker != "" {
				s.Tags = map[string]string{"UNMANIC:NORMALISE_AAC": tt.marker}
			}
			set := config.DefaultSettings().Normalise
			set.IgnorePreviouslyProcessed = tt.ignore
			n := NewNormalise(set, tt.recorded, nil)
			assert.Equal(t, tt.want, n.Classify(file(s), &s))
		})
	}
}

func TestNormalise_RoundTrip(t *testing.T) {
	set := config.DefaultSettings().Normalise
	set.IgnorePreviouslyProcessed = false
	set.Integrated = "-16.0"
	n := NewNormalise(set, "", nil)

	pr := file(video(0, "h264"), audio(1, "aac", 2, "English"), audio(2, "aac", 6, "English 5.1"))
	res := mapper.Map(pr, n, nil)
	require.True(t, res.NeedsProcessing)
	assert.Equal(t,
		"-c:v:0 copy "+
			"-c:a:0 aac -filter:a:0 loudnorm=I=-16.0:LRA=7.0:TP=-2.0 -metadata:s:a:0 unmanic:normalise_aac=loudnorm=I=-16.0:LRA=7.0:TP=-2.0 "+
			"-c:a:1 aac -filter:a:1 loudnorm=I=-16.0:LRA=7.0:TP=-2.0 -metadata:s:a:1 unmanic:normalise_aac=loudnorm=I=-16.0:LRA=7.0:TP=-2.0",
		joined(res.EncodingArgs()))

	// Re-probe: the marker written above now sits on every audio stream.
	for i := range pr.Streams {
		if pr.Streams[i].CodecType == probe.TypeAudio {
			pr.Streams[i].Tags[policy.NormaliseMarkerTag] = n.Filter()
		}
	}
	again := mapper.Map(pr, n, nil)
	assert.False(t, again.NeedsProcessing)
}

func TestNVENC_Encoding(t *testing.T) {
	pr := file(video(0, "hevc"), audio(1, "aac", 2, ""))
	n := NewNVENC(config.DefaultSettings().NVENC, nil)
	res := mapper.Map(pr, n, nil)

	require.True(t, res.NeedsProcessing)
	assert.Equal(t,
		"-c:v:0 h264_nvenc -profile:v:0 main -preset medium -rc:v vbr_hq -qmin 0 -rc-lookahead 32 "+
			"-spatial_aq:v 1 -aq-strength:v 8 -a53cc 0 -c:a:0 copy",
		joined(res.EncodingArgs()))

	n.Settings.ManualPixelFormat = true
	n.Settings.PixelFormat = "p010le"
	n.Settings.ManualBitrate = true
	n.Settings.Bitrate = 5
	got := n.Encoding(pr, &pr.Streams[0], mapper.Slot{Type: probe.TypeVideo})
	assert.Equal(t, []string{"-pix_fmt", "p010le", "-b:v:0", "5M"}, got[len(got)-4:])

	n.Settings.Advanced = true
	n.Settings.CustomOptions = "-preset slow\n-b:v:0 4M"
	got = n.Encoding(pr, &pr.Streams[0], mapper.Slot{Type: probe.TypeVideo})
	assert.Equal(t, "-c:v:0 h264_nvenc -preset slow -b:v:0 4M", joined(got))
}

func TestNVENC_Classify(t *testing.T) {
	cover := video(2, "mjpeg")
	cover.AttachedPic = true
	pr := file(video(0, "h264"), video(1, "mpeg4"), cover)
	n := NewNVENC(config.DefaultSettings().NVENC, nil)

	assert.Equal(t, mapper.ActionCopy, n.Classify(pr, &pr.Streams[0]))
	assert.Equal(t, mapper.ActionEncode, n.Classify(pr, &pr.Streams[1]))
	assert.Equal(t, mapper.ActionCopy, n.Classify(pr, &pr.Streams[2]))
}

func TestNVENC_GlobalArgs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *config.NVENCSettings)
		want   string
	}{
		{"defaults", func(*config.NVENCSettings) {}, "-hide_banner -loglevel info -strict -2 -threads 4"},
		{"slow preset with hw decoding", func(s *config.NVENCSettings) {
			s.Preset = "slow"
			s.HWDecoding = true
		}, "-hide_banner -loglevel info -strict -2 -hwaccel cuda -hwaccel_output_format cuda -threads 1"},
		{"advanced", func(s *config.NVENCSettings) {
			s.Advanced = true
			s.HWDecoding = true
			s.MainOptions = "-hwaccel cuvid"
		}, "-hide_banner -loglevel info -strict -2 -hwaccel cuvid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := config.DefaultSettings().NVENC
			tt.mutate(&set)
			assert.Equal(t, tt.want, joined(NewNVENC(set, nil).GlobalArgs()))
		})
	}
}

func newTestWebM(mutate func(s *config.WebMSettings)) *WebM {
	set := config.DefaultSettings().WebM
	if mutate != nil {
		mutate(&set)
	}
	w := NewWebM(set, nil)
	w.Threads = 4
	return w
}

func TestWebM_Remux(t *testing.T) {
	font := probe.Stream{Index: 5, CodecType: probe.TypeAttachment, CodecName: "ttf"}
	pr := file(
		video(0, "hevc"),
		audio(1, "aac", 6, "English"),
		subtitle(2, "hdmv_pgs_subtitle"),
		subtitle(3, "subrip"),
		subtitle(4, "webvtt"),
		font,
	)
	res := mapper.Map(pr, newTestWebM(nil), nil)

	require.True(t, res.NeedsProcessing)
	assert.Equal(t, "-map 0:v:0 -map 0:a:0 -map 0:s:1 -map 0:s:2", joined(res.SelectionArgs()))
	assert.Equal(t,
		"-c:v:0 libvpx-vp9 -minrate 4000000 -maxrate 11200000 -bufsize 7466666 -b:v:0 8000000 "+
			"-threads 4 -row-mt 1 -deadline good -cpu-used 0 "+
			"-c:a:0 libopus -b:a:0 240k -ac:a:0 6 "+
			"-c:s:0 webvtt -c:s:1 copy",
		joined(res.EncodingArgs()))
	assert.Equal(t, 3, res.Count(mapper.ActionDrop)+res.Count(mapper.ActionCopy))
}

func TestWebM_AlreadyConforming(t *testing.T) {
	font := probe.Stream{Index: 3, CodecType: probe.TypeAttachment, CodecName: "ttf"}
	pr := file(video(0, "vp9"), audio(1, "opus", 2, ""), subtitle(2, "webvtt"), font)
	res := mapper.Map(pr, newTestWebM(nil), nil)

	// Fallback drops do not force processing on their own.
	assert.False(t, res.NeedsProcessing)
	assert.Equal(t, 1, res.Count(mapper.ActionDrop))
}

func TestWebM_CoverArtDropped(t *testing.T) {
	cover := video(2, "mjpeg")
	cover.AttachedPic = true
	pr := file(video(0, "vp9"), audio(1, "opus", 2, ""), cover)
	res := mapper.Map(pr, newTestWebM(nil), nil)

	assert.True(t, res.NeedsProcessing)
	assert.Equal(t, "-map 0:v:0 -map 0:a:0", joined(res.SelectionArgs()))
}

func TestWebM_VP9Modes(t *testing.T) {
	tail := " -threads 4 -row-mt 1 -deadline good -cpu-used 0"
	tests := []struct {
		mode string
		want string
	}{
		{config.ModeAverageBitrate, "-c:v:0 libvpx-vp9 -b:v:0 2000K" + tail},
		{config.ModeConstantQuality, "-c:v:0 libvpx-vp9 -crf 31 -b:v:0 0" + tail},
		{config.ModeConstrainedQuality, "-c:v:0 libvpx-vp9 -crf 31 -b:v:0 2000K" + tail},
		{config.ModeConstantBitrate, "-c:v:0 libvpx-vp9 -minrate 2000K -maxrate 2000K -b:v:0 2000K" + tail},
		{config.ModeLossless, "-c:v:0 libvpx-vp9 -lossless 1" + tail},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			w := newTestWebM(func(s *config.WebMSettings) {
				s.AutoEncoderSettings = false
				s.VideoEncoderMode = tt.mode
			})
			s := video(0, "h264")
			got := w.Encoding(file(s), &s, mapper.Slot{Type: probe.TypeVideo})
			assert.Equal(t, tt.want, joined(got))
		})
	}
}

func TestWebM_VP8AlwaysAuto(t *testing.T) {
	w := newTestWebM(func(s *config.WebMSettings) {
		s.VideoCodec = "vp8"
		s.AutoEncoderSettings = false
	})
	s := video(0, "h264")
	pr := file(s)
	assert.Equal(t, mapper.ActionEncode, w.Classify(pr, &s))
	got := w.Encoding(pr, &s, mapper.Slot{Type: probe.TypeVideo})
	assert.Equal(t,
		"-c:v:0 libvpx -minrate 3000000 -maxrate 8400000 -bufsize 5600000 -b:v:0 6000000"+
			" -threads 4 -row-mt 1 -deadline good -cpu-used 0",
		joined(got))

	vp9 := video(0, "vp9")
	assert.Equal(t, mapper.ActionEncode, w.Classify(file(vp9), &vp9))
}

func TestStrategiesAreIdempotent(t *testing.T) {
	dts := audio(2, "dts", 6, "English 5.1")
	dts.Profile = "DTS"
	pr := file(video(0, "hevc"), audio(1, "aac", 2, "English"), dts, subtitle(3, "subrip"))

	set := config.DefaultSettings()
	strategies := []mapper.Strategy{
		NewDownmix(set.Downmix, nil),
		NewDTS(set.DTS, nil),
		NewNormalise(set.Normalise, "", nil),
		NewNVENC(set.NVENC, nil),
		newTestWebM(nil),
	}
	for _, st := range strategies {
		t.Run(st.Name(), func(t *testing.T) {
			first := mapper.Map(pr, st, nil)
			second := mapper.Map(pr, st, nil)
			assert.Equal(t, first.NeedsProcessing, second.NeedsProcessing)
			assert.Equal(t, first.Args(), second.Args())
		})
	}
}
