package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/backmassage/streamplug/internal/policy"
)

// Settings groups the per-plugin settings, keyed in YAML by plugin id.
type Settings struct {
	Downmix    DownmixSettings    `yaml:"create_stereo_audio_clone"`
	DTS        DTSSettings        `yaml:"dts_to_dd"`
	Normalise  NormaliseSettings  `yaml:"normalise_aac"`
	NVENC      NVENCSettings      `yaml:"encoder_video_h264_nvenc"`
	WebM       WebMSettings       `yaml:"video_remuxer_aio_webm"`
	ErrorCheck ErrorCheckSettings `yaml:"ffmpeg_file_error_checker"`
	FileStats  FileStatSettings   `yaml:"replicate_source_file_stats"`
}

// DownmixSettings configures the stereo clone plugin.
type DownmixSettings struct {
	Encoder            string `yaml:"encoder" validate:"oneof=aac ac3"`
	Advanced           bool   `yaml:"advanced"`
	MaxMuxingQueueSize int    `yaml:"max_muxing_queue_size" validate:"min=1024,max=10240"`
	MainOptions        string `yaml:"main_options"`
	AdvancedOptions    string `yaml:"advanced_options"`
	CustomOptions      string `yaml:"custom_options"`
}

// DTSSettings configures the DTS to Dolby Digital plugin.
type DTSSettings struct {
	DownmixDTSHDMA bool `yaml:"downmix_dts_hd_ma"`
}

// NormaliseSettings configures the AAC loudness plugin. The loudness
// values are kept as typed so the filter graph matches what users entered.
type NormaliseSettings struct {
	Integrated                string `yaml:"I" validate:"omitempty,numeric"`
	LoudRange                 string `yaml:"LRA" validate:"omitempty,numeric"`
	TruePeak                  string `yaml:"TP" validate:"omitempty,numeric"`
	IgnorePreviouslyProcessed bool   `yaml:"ignore_previously_processed"`
}

// Loudnorm returns the loudnorm targets.
func (n NormaliseSettings) Loudnorm() policy.Loudnorm {
	return policy.Loudnorm{Integrated: n.Integrated, LoudRange: n.LoudRange, TruePeak: n.TruePeak}
}

// NVENCSettings configures the h264_nvenc encoder plugin.
type NVENCSettings struct {
	Advanced           bool   `yaml:"advanced"`
	HWDecoding         bool   `yaml:"hw_decoding"`
	MaxMuxingQueueSize int    `yaml:"max_muxing_queue_size" validate:"min=1024,max=10240"`
	Preset             string `yaml:"preset" validate:"oneof=fast medium slow lossless"`
	Profile            string `yaml:"profile" validate:"oneof=baseline main high high444p"`
	ManualPixelFormat  bool   `yaml:"manual_pixel_format"`
	PixelFormat        string `yaml:"pixel_format" validate:"required"`
	ManualBitrate      bool   `yaml:"manual_bitrate"`
	Bitrate            int    `yaml:"bitrate" validate:"min=1,max=8"`
	MainOptions        string `yaml:"main_options"`
	AdvancedOptions    string `yaml:"advanced_options"`
	CustomOptions      string `yaml:"custom_options"`
}

// VP9 encoder modes.
const (
	ModeAverageBitrate     = "average_bitrate"
	ModeConstantQuality    = "constant_quality"
	ModeConstrainedQuality = "constrained_quality"
	ModeConstantBitrate    = "constant_bitrate"
	ModeLossless           = "lossless"
)

// WebMSettings configures the WebM remux plugin.
type WebMSettings struct {
	VideoCodec          string `yaml:"video_codec" validate:"oneof=vp9 vp8"`
	AutoEncoderSettings bool   `yaml:"auto_video_encoder_settings"`
	VideoEncoderMode    string `yaml:"video_encoder_mode" validate:"oneof=average_bitrate constant_quality constrained_quality constant_bitrate lossless"`
	CRF                 int    `yaml:"crf" validate:"min=0,max=63"`
	Bitrate             int    `yaml:"bitrate" validate:"min=1000,max=10000"`
	Deadline            string `yaml:"deadline" validate:"oneof=good best realtime"`
	CPUUsed             int    `yaml:"cpu_used" validate:"min=0,max=5"`
	AudioCodec          string `yaml:"audio_codec" validate:"oneof=opus"`
	SubtitleCodec       string `yaml:"subtitle_codec" validate:"oneof=webvtt"`
}

// ErrorCheckSettings configures the decode-test plugin.
type ErrorCheckSettings struct {
	DecodingType       string `yaml:"decoding_type" validate:"oneof=software vaapi nvdec"`
	MaxMuxingQueueSize int    `yaml:"max_muxing_queue_size" validate:"min=1024,max=10240"`
	RetestFiles        bool   `yaml:"retest_files"`
	TestFrequency      string `yaml:"test_frequency" validate:"timespan"`
	AlwaysRun          bool   `yaml:"always_run"`
}

// FileStatSettings configures source stat replication.
type FileStatSettings struct {
	UpdateMode   bool `yaml:"update_mode"`
	UpdateAccess bool `yaml:"update_access"`
	UpdateModify bool `yaml:"update_modify"`
}

// DefaultNVENCCustomOptions is the starting point for NVENC advanced mode.
const DefaultNVENCCustomOptions = "-preset medium\n" +
	"-profile:v main\n" +
	"-pix_fmt p010le\n" +
	"-rc:v vbr_hq\n" +
	"-qmin 0\n" +
	"-rc-lookahead 32\n" +
	"-spatial_aq:v 1\n" +
	"-aq-strength:v 8\n" +
	"-a53cc 0\n" +
	"-b:v:0 4M\n"

// DefaultSettings returns every plugin's defaults.
func DefaultSettings() Settings {
	return Settings{
		Downmix: DownmixSettings{
			Encoder:            "aac",
			MaxMuxingQueueSize: 2048,
		},
		Normalise: NormaliseSettings{
			Integrated:                policy.DefaultIntegrated,
			LoudRange:                 policy.DefaultLoudRange,
			TruePeak:                  policy.DefaultTruePeak,
			IgnorePreviouslyProcessed: true,
		},
		NVENC: NVENCSettings{
			MaxMuxingQueueSize: 2048,
			Preset:             "medium",
			Profile:            "main",
			PixelFormat:        "yuv420p",
			Bitrate:            2,
			CustomOptions:      DefaultNVENCCustomOptions,
		},
		WebM: WebMSettings{
			VideoCodec:          "vp9",
			AutoEncoderSettings: true,
			VideoEncoderMode:    ModeAverageBitrate,
			CRF:                 31,
			Bitrate:             2000,
			Deadline:            "good",
			CPUUsed:             0,
			AudioCodec:          "opus",
			SubtitleCodec:       "webvtt",
		},
		ErrorCheck: ErrorCheckSettings{
			DecodingType:       "software",
			MaxMuxingQueueSize: 2048,
			TestFrequency:      "4 weeks",
			AlwaysRun:          true,
		},
		FileStats: FileStatSettings{
			UpdateMode:   true,
			UpdateAccess: true,
			UpdateModify: true,
		},
	}
}

var settingsValidator = newSettingsValidator()

func newSettingsValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("timespan", func(fl validator.FieldLevel) bool {
		_, err := policy.ParseTimespan(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks every plugin's settings and reports the first failures in
// a readable form.
func (s *Settings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate settings: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: %v does not satisfy %s", fe.Namespace(), fe.Value(), rule))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}
