package strategy

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/policy"
	"github.com/backmassage/streamplug/internal/probe"
)

// NVENCEncoder is the ffmpeg encoder used for video.
const NVENCEncoder = "h264_nvenc"

// NVENC re-encodes every non-H.264 video stream with the NVIDIA encoder.
// Cover art is copied.
type NVENC struct {
	Settings config.NVENCSettings
	Log      hclog.Logger
}

// NewNVENC returns the h264_nvenc strategy.
func NewNVENC(s config.NVENCSettings, log hclog.Logger) *NVENC {
	return &NVENC{Settings: s, Log: orNull(log)}
}

func (n *NVENC) Name() string { return "encoder_video_h264_nvenc" }

func (n *NVENC) Handles(t probe.CodecType) bool { return t == probe.TypeVideo }

func (n *NVENC) Fallback(probe.CodecType) mapper.Action { return mapper.ActionCopy }

func (n *NVENC) Classify(_ *probe.ProbeResult, s *probe.Stream) mapper.Action {
	if s.AttachedPic {
		return mapper.ActionCopy
	}
	if s.CodecName == "h264" {
		return mapper.ActionCopy
	}
	return mapper.ActionEncode
}

func (n *NVENC) Encoding(_ *probe.ProbeResult, _ *probe.Stream, slot mapper.Slot) []string {
	i := slot.Output
	args := []string{fmt.Sprintf("-c:v:%d", i), NVENCEncoder}
	if n.Settings.Advanced {
		return append(args, policy.SplitOptions(n.Settings.CustomOptions)...)
	}
	args = append(args,
		fmt.Sprintf("-profile:v:%d", i), n.Settings.Profile,
		"-preset", n.Settings.Preset,
		"-rc:v", "vbr_hq",
		"-qmin", "0",
		"-rc-lookahead", "32",
		"-spatial_aq:v", "1",
		"-aq-strength:v", "8",
		"-a53cc", "0",
	)
	if n.Settings.ManualPixelFormat {
		args = append(args, "-pix_fmt", n.Settings.PixelFormat)
	}
	if n.Settings.ManualBitrate {
		args = append(args, fmt.Sprintf("-b:v:%d", i), fmt.Sprintf("%dM", n.Settings.Bitrate))
	}
	return args
}

// GlobalArgs returns the flags placed before the input. Slow presets run
// single-threaded.
func (n *NVENC) GlobalArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "info", "-strict", "-2"}
	if n.Settings.Advanced {
		return append(args, policy.SplitOptions(n.Settings.MainOptions)...)
	}
	if n.Settings.HWDecoding {
		args = append(args, "-hwaccel", "cuda", "-hwaccel_output_format", "cuda")
	}
	threads := "1"
	if n.Settings.Preset == "fast" || n.Settings.Preset == "medium" {
		threads = "4"
	}
	return append(args, "-threads", threads)
}

// InputOptions returns the flags placed after the input.
func (n *NVENC) InputOptions() []string {
	if n.Settings.Advanced {
		return policy.SplitOptions(n.Settings.AdvancedOptions)
	}
	return muxingQueue(n.Settings.MaxMuxingQueueSize)
}
