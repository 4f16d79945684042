package strategy

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/policy"
	"github.com/backmassage/streamplug/internal/probe"
)

// Normalise re-encodes AAC audio through the loudnorm filter and marks the
// output stream so the next scan can recognise it.
type Normalise struct {
	Settings config.NormaliseSettings
	// Recorded is the filter graph stored for this file in the directory
	// metadata, used when the container dropped the marker tag.
	Recorded string
	Log      hclog.Logger

	filter string
}

// NewNormalise returns the loudness normalisation strategy.
func NewNormalise(s config.NormaliseSettings, recorded string, log hclog.Logger) *Normalise {
	log = orNull(log)
	if recorded != "" && !policy.IsLoudnormFilter(recorded) {
		log.Debug("ignoring directory record that is not a loudnorm graph", "value", recorded)
		recorded = ""
	}
	return &Normalise{
		Settings: s,
		Recorded: recorded,
		Log:      log,
		filter:   s.Loudnorm().Filter(),
	}
}

// Filter returns the configured filter graph.
func (n *Normalise) Filter() string { return n.filter }

func (n *Normalise) Name() string { return "normalise_aac" }

func (n *Normalise) Handles(t probe.CodecType) bool { return t == probe.TypeAudio }

func (n *Normalise) Fallback(probe.CodecType) mapper.Action { return mapper.ActionCopy }

func (n *Normalise) Classify(_ *probe.ProbeResult, s *probe.Stream) mapper.Action {
	if s.CodecName != "aac" {
		return mapper.ActionCopy
	}
	if marker, ok := s.Tag(policy.NormaliseMarkerTag); ok {
		if n.alreadyNormalised(marker) {
			return mapper.ActionCopy
		}
		n.Log.Debug("stream was previously normalised with other settings", "index", s.Index, "filter", policy.CleanMarker(marker))
		return mapper.ActionEncode
	}
	if n.Recorded != "" && n.alreadyNormalised(n.Recorded) {
		n.Log.Debug("directory record shows file already normalised", "index", s.Index)
		return mapper.ActionCopy
	}
	return mapper.ActionEncode
}

func (n *Normalise) alreadyNormalised(previous string) bool {
	if n.Settings.IgnorePreviouslyProcessed {
		return true
	}
	return policy.CleanMarker(previous) == n.filter
}

func (n *Normalise) Encoding(_ *probe.ProbeResult, _ *probe.Stream, slot mapper.Slot) []string {
	i := slot.Output
	return []string{
		fmt.Sprintf("-c:a:%d", i), "aac",
		fmt.Sprintf("-filter:a:%d", i), n.filter,
		fmt.Sprintf("-metadata:s:a:%d", i), policy.NormaliseMarkerTag + "=" + n.filter,
	}
}

func (n *Normalise) GlobalArgs() []string { return []string{"-hide_banner", "-loglevel", "info"} }

func (n *Normalise) InputOptions() []string { return nil }
