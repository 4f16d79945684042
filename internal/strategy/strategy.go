// Package strategy implements one mapper.Strategy per plugin: which streams
// each plugin touches, and the encoder flags it emits for them.
//
// Strategies are built once per file from the plugin's settings and are
// not safe to share across goroutines that change those settings.
package strategy

import (
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/mapper"
)

var (
	_ mapper.Strategy = (*Downmix)(nil)
	_ mapper.Strategy = (*DTS)(nil)
	_ mapper.Strategy = (*Normalise)(nil)
	_ mapper.Strategy = (*NVENC)(nil)
	_ mapper.Strategy = (*WebM)(nil)
)

func orNull(log hclog.Logger) hclog.Logger {
	if log == nil {
		return hclog.NewNullLogger()
	}
	return log
}

func muxingQueue(size int) []string {
	if size <= 0 {
		return nil
	}
	return []string{"-max_muxing_queue_size", strconv.Itoa(size)}
}
