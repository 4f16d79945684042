package plugin

import (
	"context"
	"slices"

	"github.com/backmassage/streamplug/internal/strategy"
)

// Plugin ids.
const (
	IDStereoClone = "create_stereo_audio_clone"
	IDDTS         = "dts_to_dd"
	IDNormalise   = "normalise_aac"
)

func newStereoClone(env Env) Plugin {
	b := newBase(IDStereoClone, env, "video")
	return &streamPlugin{
		base:     b,
		strategy: fixed(strategy.NewDownmix(env.Settings.Downmix, b.log)),
	}
}

func newDTS(env Env) Plugin {
	b := newBase(IDDTS, env)
	return &streamPlugin{
		base:     b,
		strategy: fixed(strategy.NewDTS(env.Settings.DTS, b.log)),
	}
}

// normalise re-encodes AAC through loudnorm. When its command ran, it also
// records the filter graph against every destination so a later scan can
// tell the file was done even if the marker tag was lost.
type normalise struct {
	streamPlugin
	filter string
}

func newNormalise(env Env) Plugin {
	n := &normalise{
		streamPlugin: streamPlugin{base: newBase(IDNormalise, env)},
		filter:       env.Settings.Normalise.Loudnorm().Filter(),
	}
	n.strategy = n.strategyFor
	return n
}

func (n *normalise) strategyFor(recordPath string) (commandStrategy, error) {
	recorded, _ := lookupRecord(n.log, IDNormalise, recordPath)
	return strategy.NewNormalise(n.env.Settings.Normalise, recorded, n.log), nil
}

func (n *normalise) OnTaskResults(_ context.Context, data *TaskResultData) error {
	if !data.TaskProcessingSuccess || !slices.Contains(data.CommandPlugins, n.id) {
		return nil
	}
	err := writeRecords(IDNormalise, data.DestinationFiles, func(string) string { return n.filter })
	if err == nil {
		n.log.Debug("normalisation recorded", "files", len(data.DestinationFiles))
	}
	return err
}
