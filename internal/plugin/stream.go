package plugin

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/display"
	"github.com/backmassage/streamplug/internal/ffmpeg"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/metrics"
	"github.com/backmassage/streamplug/internal/probe"
)

// base carries what every plugin shares.
type base struct {
	id         string
	env        Env
	log        hclog.Logger
	categories []string // MIME categories worth probing; nil means the prober's defaults
}

func newBase(id string, env Env, categories ...string) base {
	return base{id: id, env: env, log: env.Log.Named(id), categories: categories}
}

func (b *base) ID() string { return b.id }

func (b *base) prober() mapper.Prober {
	return b.env.NewProber(b.categories...)
}

// mapFile probes path and maps it with st. Probe failures are logged and
// counted here; callers return the error unchanged.
func (b *base) mapFile(ctx context.Context, path string, st mapper.Strategy) (*mapper.Result, *probe.ProbeResult, error) {
	res, pr, err := mapper.MapFile(ctx, b.prober(), path, st, b.log)
	if err != nil {
		b.log.Debug("probe failed, skipping file", "path", path, "error", err)
		b.env.Metrics.FileTested(b.id, metrics.ResultNoDecision)
		return nil, nil, err
	}
	b.log.Debug("probed", "path", path,
		"streams", pr.Summary(),
		"resolution", pr.Resolution(),
		"bitrate", display.FormatBitrateLabel(pr.Format.BitRate/1000),
		"decisions", display.FormatDecisions(res))
	b.env.Metrics.ObserveMapping(b.id, res)
	return res, pr, nil
}

// commandStrategy is a mapper strategy that also knows the flags around
// the mapping block.
type commandStrategy interface {
	mapper.Strategy
	GlobalArgs() []string
	InputOptions() []string
}

// strategyFunc builds the strategy for one file. recordPath is the library
// path the file's directory records are kept under.
type strategyFunc func(recordPath string) (commandStrategy, error)

// streamPlugin is a plugin whose whole job is one mapped ffmpeg command:
// test the file, then build the command when something must change.
type streamPlugin struct {
	base
	strategy strategyFunc
	// container is the target extension for remuxing plugins, e.g. ".webm".
	// Empty keeps the input container.
	container string
}

func (p *streamPlugin) needsProcessing(res *mapper.Result, path string) bool {
	if res.NeedsProcessing {
		return true
	}
	return p.container != "" && !strings.EqualFold(filepath.Ext(path), p.container)
}

func (p *streamPlugin) OnFileTest(ctx context.Context, data *FileTestData) error {
	st, err := p.strategy(data.Path)
	if err != nil {
		return err
	}
	res, _, err := p.mapFile(ctx, data.Path, st)
	if err != nil {
		return err
	}
	if !p.needsProcessing(res, data.Path) {
		p.log.Debug("file already conforms", "path", data.Path)
		p.env.Metrics.FileTested(p.id, metrics.ResultConforms)
		return nil
	}
	p.log.Debug("file should be added to the task list", "path", data.Path)
	p.env.Metrics.FileTested(p.id, metrics.ResultPending)
	data.AddFileToPendingTasks = true
	return nil
}

func (p *streamPlugin) OnWorkerProcess(ctx context.Context, data *WorkerData) error {
	data.ExecCommand = nil
	data.Repeat = false

	recordPath := data.OriginalFilePath
	if recordPath == "" {
		recordPath = data.FileIn
	}
	st, err := p.strategy(recordPath)
	if err != nil {
		return err
	}
	res, pr, err := p.mapFile(ctx, data.FileIn, st)
	if err != nil {
		return err
	}
	if !p.needsProcessing(res, data.FileIn) {
		p.log.Debug("no command needed", "file_in", data.FileIn)
		return nil
	}

	cmd := ffmpeg.Command{
		Binary:       p.env.FFmpeg,
		Global:       st.GlobalArgs(),
		Input:        data.FileIn,
		InputOptions: st.InputOptions(),
		Mapping:      res.Args(),
		Overwrite:    true,
		Output:       ffmpeg.OutputPath(data.FileIn, data.FileOut, p.container),
	}
	data.FileOut = cmd.Output
	data.ExecCommand = cmd.Args()
	data.ProgressParser = p.progressParser(pr)
	p.log.Debug("worker command", "command", cmd.String())
	return nil
}

func (b *base) progressParser(pr *probe.ProbeResult) *ffmpeg.ProgressParser {
	var fps float64
	if v := pr.PrimaryVideo(); v != nil {
		fps = v.FrameRate()
	}
	return ffmpeg.NewProgressParser(pr.Format.Duration, fps, b.log)
}

// fixed wraps a strategy that does not depend on the file.
func fixed(st commandStrategy) strategyFunc {
	return func(string) (commandStrategy, error) { return st, nil }
}
