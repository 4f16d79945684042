// Package policy holds the pure encoding-parameter rules shared by the
// plugins: bitrate tiers, automatic video rates, Opus sizing, loudness
// filter graphs and free-form option splitting. Nothing here reads global
// state or mutates its inputs.
package policy

import (
	"fmt"
	"strings"
)

// Dolby Digital tiers used when converting DTS.
const (
	AC3MaxBitRate = "640k"
	AC3MidBitRate = "448k"

	dtsMidCeiling  = 768000
	dtsHighCeiling = 1536000
)

// AC3BitRate picks the Dolby Digital bitrate for a DTS source. The second
// return value explains the choice for logging.
func AC3BitRate(profile string, bitRate *int64) (string, string) {
	if bitRate == nil {
		return AC3MaxBitRate, "stream did not contain bit_rate, using max Dolby Digital bit rate"
	}
	if strings.EqualFold(profile, "DTS-HD MA") {
		return AC3MaxBitRate, "stream contains DTS-HD Master Audio, using max Dolby Digital bit rate"
	}
	switch {
	case *bitRate <= dtsMidCeiling:
		return AC3MidBitRate, "stream bit_rate is <= 768kb/s"
	case *bitRate <= dtsHighCeiling:
		return AC3MaxBitRate, "stream bit_rate is <= 1.5mb/s, using max Dolby Digital bit rate"
	}
	return AC3MaxBitRate, fmt.Sprintf("stream bit_rate %d could not be matched directly, using max Dolby Digital bit rate", *bitRate)
}

// DefaultSourceBitRate is assumed when the container reports no bitrate.
const DefaultSourceBitRate int64 = 1000000

// VideoRates are the libvpx rate-control values in bits/sec.
type VideoRates struct {
	Target  int64
	MinRate int64
	MaxRate int64
	BufSize int64
}

// AutoVideoRates derives target, min, max and buffer sizes from the
// container bitrate and the source codec. Newer source codecs are already
// efficient, so less of their bitrate is shaved off.
func AutoVideoRates(formatBitRate int64, sourceCodec string) VideoRates {
	if formatBitRate <= 0 {
		formatBitRate = DefaultSourceBitRate
	}
	target := int64(codecFactor(sourceCodec) * float64(formatBitRate))
	maxRate := int64(float64(target) * 1.4)
	return VideoRates{
		Target:  target,
		MinRate: int64(float64(target) * 0.5),
		MaxRate: maxRate,
		BufSize: int64(float64(maxRate) / 1.5),
	}
}

func codecFactor(codec string) float64 {
	switch strings.ToLower(codec) {
	case "h264":
		return 0.6
	case "h265", "hevc":
		return 0.8
	}
	return 0.5
}

// Opus sizing.
const (
	OpusPerChannelKbps = 40
	OpusMaxChannels    = 8
	OpusMaxBitRate     = "450k"
)

// OpusBitRate returns the Opus bitrate and channel count for a source with
// the given channel count. Unknown counts are treated as stereo.
func OpusBitRate(channels int) (string, int) {
	if channels <= 0 {
		channels = 2
	}
	if channels <= OpusMaxChannels {
		return fmt.Sprintf("%dk", channels*OpusPerChannelKbps), channels
	}
	return OpusMaxBitRate, channels
}
