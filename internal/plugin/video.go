package plugin

import (
	"github.com/backmassage/streamplug/internal/strategy"
)

// Plugin ids.
const (
	IDNVENC = "encoder_video_h264_nvenc"
	IDWebM  = "video_remuxer_aio_webm"
)

func newNVENC(env Env) Plugin {
	b := newBase(IDNVENC, env)
	return &streamPlugin{
		base:     b,
		strategy: fixed(strategy.NewNVENC(env.Settings.NVENC, b.log)),
	}
}

// newWebM remuxes into WebM. A file with conforming streams still needs a
// task when its container is not already WebM.
func newWebM(env Env) Plugin {
	b := newBase(IDWebM, env, "video")
	return &streamPlugin{
		base:      b,
		strategy:  fixed(strategy.NewWebM(env.Settings.WebM, b.log)),
		container: strategy.WebMExtension,
	}
}
