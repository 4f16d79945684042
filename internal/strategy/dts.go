package strategy

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/policy"
	"github.com/backmassage/streamplug/internal/probe"
)

// DTS profiles reported by ffprobe.
const (
	ProfileDTS     = "DTS"
	ProfileDTSHDMA = "DTS-HD MA"
)

// DTS converts core DTS audio to Dolby Digital. DTS-HD Master Audio is
// converted only when DownmixDTSHDMA is set.
type DTS struct {
	Settings config.DTSSettings
	Log      hclog.Logger
}

// NewDTS returns the DTS to AC3 strategy.
func NewDTS(s config.DTSSettings, log hclog.Logger) *DTS {
	return &DTS{Settings: s, Log: orNull(log)}
}

func (d *DTS) Name() string { return "dts_to_dd" }

func (d *DTS) Handles(t probe.CodecType) bool { return t == probe.TypeAudio }

func (d *DTS) Fallback(probe.CodecType) mapper.Action { return mapper.ActionCopy }

func (d *DTS) Classify(_ *probe.ProbeResult, s *probe.Stream) mapper.Action {
	if s.CodecName != "dts" {
		return mapper.ActionCopy
	}
	switch {
	case s.Profile == "" || strings.EqualFold(s.Profile, ProfileDTS):
		return mapper.ActionEncode
	case strings.EqualFold(s.Profile, ProfileDTSHDMA) && d.Settings.DownmixDTSHDMA:
		return mapper.ActionEncode
	}
	d.Log.Debug("leaving DTS stream as is", "index", s.Index, "profile", s.Profile)
	return mapper.ActionCopy
}

func (d *DTS) Encoding(_ *probe.ProbeResult, s *probe.Stream, slot mapper.Slot) []string {
	rate, reason := policy.AC3BitRate(s.Profile, s.BitRate)
	d.Log.Debug("selected Dolby Digital bit rate", "index", s.Index, "rate", rate, "reason", reason)
	return []string{
		fmt.Sprintf("-c:a:%d", slot.Output), "ac3",
		fmt.Sprintf("-b:a:%d", slot.Output), rate,
	}
}

func (d *DTS) GlobalArgs() []string { return []string{"-hide_banner", "-loglevel", "info"} }

func (d *DTS) InputOptions() []string { return nil }
