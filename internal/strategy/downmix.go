package strategy

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/policy"
	"github.com/backmassage/streamplug/internal/probe"
)

// Downmix clones every multichannel audio stream into a two-channel
// stream titled "<title> [Stereo]". Originals are always copied.
type Downmix struct {
	Settings config.DownmixSettings
	Log      hclog.Logger
}

// NewDownmix returns the stereo clone strategy.
func NewDownmix(s config.DownmixSettings, log hclog.Logger) *Downmix {
	return &Downmix{Settings: s, Log: orNull(log)}
}

func (d *Downmix) Name() string { return "create_stereo_audio_clone" }

func (d *Downmix) Handles(t probe.CodecType) bool { return t == probe.TypeAudio }

func (d *Downmix) Fallback(probe.CodecType) mapper.Action { return mapper.ActionCopy }

func (d *Downmix) Classify(pr *probe.ProbeResult, s *probe.Stream) mapper.Action {
	if s.Channels <= 0 {
		d.Log.Debug("unable to determine number of channels in stream", "index", s.Index)
		return mapper.ActionCopy
	}
	if s.Channels <= 2 {
		return mapper.ActionCopy
	}
	if tag, ok := ExistingStereoTag(pr, s); ok {
		d.Log.Debug("stream already has a stereo clone", "index", s.Index, "tag", tag)
		return mapper.ActionCopy
	}
	return mapper.ActionClone
}

// Encoding builds the flags of the synthetic stereo stream.
func (d *Downmix) Encoding(_ *probe.ProbeResult, s *probe.Stream, slot mapper.Slot) []string {
	n := slot.Output
	args := []string{fmt.Sprintf("-c:a:%d", n), d.Settings.Encoder}
	if d.Settings.Advanced {
		args = append(args, policy.SplitOptions(d.Settings.CustomOptions)...)
	}
	args = append(args,
		fmt.Sprintf("-ac:a:%d", n), "2",
		fmt.Sprintf("-metadata:s:a:%d", n), "title="+StereoTag(s),
	)
	if lang := s.Language(); lang != "" {
		args = append(args, fmt.Sprintf("-metadata:s:a:%d", n), "language="+lang)
	}
	return args
}

// GlobalArgs returns the flags placed before the input.
func (d *Downmix) GlobalArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "info"}
	if d.Settings.Advanced {
		args = append(args, policy.SplitOptions(d.Settings.MainOptions)...)
	}
	return args
}

// InputOptions returns the flags placed after the input.
func (d *Downmix) InputOptions() []string {
	if d.Settings.Advanced {
		return policy.SplitOptions(d.Settings.AdvancedOptions)
	}
	return muxingQueue(d.Settings.MaxMuxingQueueSize)
}
