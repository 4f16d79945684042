// Package check provides system diagnostics (the check command) and the
// pre-task dependency validation (CheckDeps) for ffmpeg, ffprobe, and the
// encoders and decoders the enabled plugins emit commands for.
package check

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/plugin"
	"github.com/backmassage/streamplug/internal/strategy"
)

// Sentinel errors returned when a required tool or codec is missing.
var (
	ErrFFmpegNotFound  = errors.New("ffmpeg not found")
	ErrFFprobeNotFound = errors.New("ffprobe not found")
	ErrMissingEncoder  = errors.New("encoder not available")
	ErrMissingHWAccel  = errors.New("hardware decoder not available")
)

// Requirement is one ffmpeg capability an enabled plugin depends on.
type Requirement struct {
	Plugin  string
	Encoder string // an ffmpeg encoder name, or empty
	HWAccel string // an ffmpeg hwaccel name, or empty
}

// Requirements lists what the enabled plugins need from ffmpeg, in plugin
// order.
func Requirements(cfg *config.Config) []Requirement {
	s := cfg.Settings
	var reqs []Requirement
	enc := func(id string, names ...string) {
		for _, n := range names {
			reqs = append(reqs, Requirement{Plugin: id, Encoder: n})
		}
	}
	for _, id := range cfg.Plugins {
		switch id {
		case plugin.IDStereoClone:
			enc(id, s.Downmix.Encoder)
		case plugin.IDDTS:
			enc(id, "ac3")
		case plugin.IDNormalise:
			enc(id, "aac")
		case plugin.IDNVENC:
			enc(id, strategy.NVENCEncoder)
			if s.NVENC.HWDecoding {
				reqs = append(reqs, Requirement{Plugin: id, HWAccel: "cuda"})
			}
		case plugin.IDWebM:
			video := "libvpx-vp9"
			if s.WebM.VideoCodec == "vp8" {
				video = "libvpx"
			}
			enc(id, video, "libopus", "webvtt")
		case plugin.IDErrorCheck:
			switch s.ErrorCheck.DecodingType {
			case "nvdec":
				reqs = append(reqs, Requirement{Plugin: id, HWAccel: "cuda"})
			case "vaapi":
				reqs = append(reqs, Requirement{Plugin: id, HWAccel: "vaapi"})
			}
		}
	}
	return reqs
}

// Capabilities is what the installed ffmpeg reports.
type Capabilities struct {
	Version  string
	Encoders map[string]bool
	HWAccels map[string]bool
}

// Probe queries ffmpeg for its version, encoders and hwaccels.
func Probe(ctx context.Context, ffmpegPath string) (*Capabilities, error) {
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFFmpegNotFound, ffmpegPath)
	}
	version, err := output(ctx, ffmpegPath, "-hide_banner", "-version")
	if err != nil {
		return nil, fmt.Errorf("%s -version: %w", ffmpegPath, err)
	}
	encoders, err := output(ctx, ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		return nil, fmt.Errorf("%s -encoders: %w", ffmpegPath, err)
	}
	hwaccels, err := output(ctx, ffmpegPath, "-hide_banner", "-hwaccels")
	if err != nil {
		return nil, fmt.Errorf("%s -hwaccels: %w", ffmpegPath, err)
	}
	return &Capabilities{
		Version:  firstLine(version),
		Encoders: parseEncoders(encoders),
		HWAccels: parseHWAccels(hwaccels),
	}, nil
}

// Missing returns the requirements caps does not satisfy.
func (c *Capabilities) Missing(reqs []Requirement) []error {
	var errs []error
	for _, r := range reqs {
		switch {
		case r.Encoder != "" && !c.Encoders[r.Encoder]:
			errs = append(errs, fmt.Errorf("%s: %w: %s", r.Plugin, ErrMissingEncoder, r.Encoder))
		case r.HWAccel != "" && !c.HWAccels[r.HWAccel]:
			errs = append(errs, fmt.Errorf("%s: %w: %s", r.Plugin, ErrMissingHWAccel, r.HWAccel))
		}
	}
	return errs
}

// RunCheck runs the interactive check flow: logs the ffmpeg version, each
// requirement of the enabled plugins, and the VAAPI render device when one
// is needed. Every problem is logged; the returned error joins them.
func RunCheck(ctx context.Context, cfg *config.Config, deviceDir string, log hclog.Logger) error {
	log.Info("system check", "plugins", cfg.Plugins)

	var problems []error
	if err := lookFFprobe(cfg); err != nil {
		log.Error("ffprobe missing", "path", cfg.FFprobePath)
		problems = append(problems, err)
	} else {
		log.Info("ffprobe found", "path", cfg.FFprobePath)
	}

	caps, err := Probe(ctx, cfg.FFmpegPath)
	if err != nil {
		log.Error("ffmpeg unusable", "error", err)
		return errors.Join(append(problems, err)...)
	}
	log.Info("ffmpeg found", "version", caps.Version)

	reqs := Requirements(cfg)
	missing := caps.Missing(reqs)
	for _, r := range reqs {
		name, kind := r.Encoder, "encoder"
		if name == "" {
			name, kind = r.HWAccel, "hwaccel"
		}
		if r.Encoder != "" && caps.Encoders[name] || r.HWAccel != "" && caps.HWAccels[name] {
			log.Info("available", "plugin", r.Plugin, kind, name)
		} else {
			log.Error("missing", "plugin", r.Plugin, kind, name)
		}
	}
	problems = append(problems, missing...)

	if needsRenderDevice(cfg) {
		dev, err := plugin.RenderDevice(deviceDir)
		if err != nil {
			log.Error("VAAPI render device missing", "dir", deviceDir)
			problems = append(problems, err)
		} else {
			log.Info("VAAPI render device", "device", dev)
		}
	}

	if len(problems) == 0 {
		log.Info("all checks passed")
	}
	return errors.Join(problems...)
}

// CheckDeps is the pre-task validation: both tools must exist, and ffmpeg
// must provide every encoder and hwaccel the enabled plugins use.
func CheckDeps(ctx context.Context, cfg *config.Config, deviceDir string) error {
	if err := lookFFprobe(cfg); err != nil {
		return err
	}
	caps, err := Probe(ctx, cfg.FFmpegPath)
	if err != nil {
		return err
	}
	problems := caps.Missing(Requirements(cfg))
	if needsRenderDevice(cfg) {
		if _, err := plugin.RenderDevice(deviceDir); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}

// --- internal helpers ---

func lookFFprobe(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFprobeNotFound, cfg.FFprobePath)
	}
	return nil
}

func needsRenderDevice(cfg *config.Config) bool {
	for _, id := range cfg.Plugins {
		if id == plugin.IDErrorCheck && cfg.Settings.ErrorCheck.DecodingType == "vaapi" {
			return true
		}
	}
	return false
}

func output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

// parseEncoders reads `ffmpeg -encoders` output. Encoder lines start with
// a six-character flag column ("V....D", "A....D", "S.....") followed by
// the encoder name; the legend above the separator line is skipped.
func parseEncoders(out string) map[string]bool {
	encoders := make(map[string]bool)
	listing := false
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if !listing {
			listing = len(fields) == 1 && strings.HasPrefix(fields[0], "---")
			continue
		}
		if len(fields) >= 2 && len(fields[0]) == 6 && strings.ContainsAny(fields[0][:1], "VAS") {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// parseHWAccels reads `ffmpeg -hwaccels` output: a header line followed by
// one method per line.
func parseHWAccels(out string) map[string]bool {
	accels := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		accels[line] = true
	}
	return accels
}
