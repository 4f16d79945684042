package strategy

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/policy"
	"github.com/backmassage/streamplug/internal/probe"
)

// WebMExtension is the container extension WebM output is written with.
const WebMExtension = ".webm"

// imageSubtitleCodecs cannot be converted to WebVTT and are dropped.
var imageSubtitleCodecs = map[string]bool{
	"dvbsub":            true,
	"dvb_subtitle":      true,
	"dvdsub":            true,
	"dvd_subtitle":      true,
	"pgssub":            true,
	"hdmv_pgs_subtitle": true,
	"xsub":              true,
}

// WebM remuxes into WebM: video must be the configured VP8/VP9 codec,
// audio Opus and subtitles WebVTT. Anything WebM cannot carry is dropped.
type WebM struct {
	Settings config.WebMSettings
	// Threads is passed to libvpx; defaults to the logical CPU count.
	Threads int
	Log     hclog.Logger
}

// NewWebM returns the WebM remux strategy.
func NewWebM(s config.WebMSettings, log hclog.Logger) *WebM {
	return &WebM{Settings: s, Threads: cpuThreads(), Log: orNull(log)}
}

func cpuThreads() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func (w *WebM) Name() string { return "video_remuxer_aio_webm" }

func (w *WebM) Handles(t probe.CodecType) bool {
	return t == probe.TypeVideo || t == probe.TypeAudio || t == probe.TypeSubtitle
}

// Fallback drops data and attachment streams; WebM has no place for them.
func (w *WebM) Fallback(probe.CodecType) mapper.Action { return mapper.ActionDrop }

func (w *WebM) Classify(_ *probe.ProbeResult, s *probe.Stream) mapper.Action {
	switch s.CodecType {
	case probe.TypeVideo:
		if s.AttachedPic {
			return mapper.ActionDrop
		}
		if s.CodecName != w.Settings.VideoCodec {
			return mapper.ActionEncode
		}
	case probe.TypeAudio:
		if s.CodecName != w.Settings.AudioCodec {
			return mapper.ActionEncode
		}
	case probe.TypeSubtitle:
		if imageSubtitleCodecs[s.CodecName] {
			return mapper.ActionDrop
		}
		if s.CodecName != w.Settings.SubtitleCodec {
			return mapper.ActionEncode
		}
	}
	return mapper.ActionCopy
}

func (w *WebM) Encoding(pr *probe.ProbeResult, s *probe.Stream, slot mapper.Slot) []string {
	switch s.CodecType {
	case probe.TypeVideo:
		if w.Settings.VideoCodec == "vp8" {
			return w.autoVideo(pr, s, slot, "libvpx")
		}
		return w.vp9(pr, s, slot)
	case probe.TypeAudio:
		rate, channels := policy.OpusBitRate(s.Channels)
		w.Log.Debug("selected Opus bit rate", "index", s.Index, "channels", channels, "rate", rate)
		return []string{
			fmt.Sprintf("-c:a:%d", slot.Output), "libopus",
			fmt.Sprintf("-b:a:%d", slot.Output), rate,
			fmt.Sprintf("-ac:a:%d", slot.Output), strconv.Itoa(channels),
		}
	case probe.TypeSubtitle:
		return []string{fmt.Sprintf("-c:s:%d", slot.Output), "webvtt"}
	}
	return nil
}

func (w *WebM) vp9(pr *probe.ProbeResult, s *probe.Stream, slot mapper.Slot) []string {
	const encoder = "libvpx-vp9"
	if w.Settings.AutoEncoderSettings {
		return w.autoVideo(pr, s, slot, encoder)
	}
	i := slot.Output
	kbps := fmt.Sprintf("%dK", w.Settings.Bitrate)
	crf := strconv.Itoa(w.Settings.CRF)
	args := []string{fmt.Sprintf("-c:v:%d", i), encoder}
	switch w.Settings.VideoEncoderMode {
	case config.ModeConstantQuality:
		args = append(args, "-crf", crf, fmt.Sprintf("-b:v:%d", i), "0")
	case config.ModeConstrainedQuality:
		args = append(args, "-crf", crf, fmt.Sprintf("-b:v:%d", i), kbps)
	case config.ModeConstantBitrate:
		args = append(args, "-minrate", kbps, "-maxrate", kbps, fmt.Sprintf("-b:v:%d", i), kbps)
	case config.ModeLossless:
		args = append(args, "-lossless", "1")
	default:
		args = append(args, fmt.Sprintf("-b:v:%d", i), kbps)
	}
	return append(args, w.encoderTail()...)
}

func (w *WebM) autoVideo(pr *probe.ProbeResult, s *probe.Stream, slot mapper.Slot, encoder string) []string {
	r := policy.AutoVideoRates(pr.Format.BitRate, s.CodecName)
	args := []string{
		fmt.Sprintf("-c:v:%d", slot.Output), encoder,
		"-minrate", strconv.FormatInt(r.MinRate, 10),
		"-maxrate", strconv.FormatInt(r.MaxRate, 10),
		"-bufsize", strconv.FormatInt(r.BufSize, 10),
		fmt.Sprintf("-b:v:%d", slot.Output), strconv.FormatInt(r.Target, 10),
	}
	return append(args, w.encoderTail()...)
}

func (w *WebM) encoderTail() []string {
	return []string{
		"-threads", strconv.Itoa(w.Threads),
		"-row-mt", "1",
		"-deadline", w.Settings.Deadline,
		"-cpu-used", strconv.Itoa(w.Settings.CPUUsed),
	}
}

// GlobalArgs returns the flags placed before the input.
func (w *WebM) GlobalArgs() []string {
	return []string{"-hide_banner", "-loglevel", "info"}
}

// InputOptions returns the flags placed after the input.
func (w *WebM) InputOptions() []string { return nil }
