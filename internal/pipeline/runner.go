package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/display"
	"github.com/backmassage/streamplug/internal/ffmpeg"
	"github.com/backmassage/streamplug/internal/history"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/metrics"
	"github.com/backmassage/streamplug/internal/plugin"
)

// maxPasses bounds how often one plugin may ask for its worker stage to
// run again on its own output.
const maxPasses = 5

// ErrMoveFailed is returned by Process when the output could not be
// delivered to its destination.
var ErrMoveFailed = errors.New("file movement failed")

// ExecFunc runs one worker command.
type ExecFunc func(ctx context.Context, argv []string, opts ffmpeg.ExecOptions) ffmpeg.ExecResult

// Runner drives enabled plugins through the host lifecycle.
type Runner struct {
	Cfg      *config.Config
	Log      hclog.Logger
	Plugins  []plugin.Plugin
	Metrics  *metrics.Metrics
	Recorder history.Recorder

	// Out receives reports and, when Live, the inline progress line.
	Out     io.Writer
	Palette display.Palette
	Live    bool

	// Exec defaults to ffmpeg.Execute; Now to time.Now.
	Exec ExecFunc
	Now  func() time.Time
}

func (r *Runner) exec() ExecFunc {
	if r.Exec != nil {
		return r.Exec
	}
	return ffmpeg.Execute
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return io.Discard
}

func (r *Runner) log() hclog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return hclog.NewNullLogger()
}

// Outcome summarises a file test.
type Outcome string

const (
	OutcomePending  Outcome = "pending"  // at least one plugin wants a task
	OutcomeConforms Outcome = "conforms" // every plugin that decided is satisfied
	OutcomeSkipped  Outcome = "skipped"  // no plugin could decide
	OutcomeFailed   Outcome = "failed"
)

// Verdict is one plugin's answer to the file test.
type Verdict struct {
	Plugin  string
	Outcome Outcome
	Err     error
}

// FileReport collects every plugin's verdict for one file.
type FileReport struct {
	Path     string
	Size     int64
	Verdicts []Verdict
}

// Outcome folds the verdicts: pending wins, then failed, then conforms.
// A file no plugin tested conforms.
func (rep FileReport) Outcome() Outcome {
	if len(rep.Verdicts) == 0 {
		return OutcomeConforms
	}
	seen := make(map[Outcome]bool, 4)
	for _, v := range rep.Verdicts {
		seen[v.Outcome] = true
	}
	for _, o := range []Outcome{OutcomePending, OutcomeFailed, OutcomeConforms} {
		if seen[o] {
			return o
		}
	}
	return OutcomeSkipped
}

// PendingPlugins lists the plugins that want a task for the file.
func (rep FileReport) PendingPlugins() []string {
	var ids []string
	for _, v := range rep.Verdicts {
		if v.Outcome == OutcomePending {
			ids = append(ids, v.Plugin)
		}
	}
	return ids
}

// Test runs the library file test of every enabled plugin on path. Each
// plugin gets its own test data so verdicts are reported per plugin.
func (r *Runner) Test(ctx context.Context, path string) (FileReport, error) {
	rep := FileReport{Path: path}
	fi, err := os.Stat(path)
	if err != nil {
		return rep, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return rep, fmt.Errorf("%s is a directory", path)
	}
	rep.Size = fi.Size()

	for _, p := range r.Plugins {
		ft, ok := p.(plugin.FileTester)
		if !ok {
			continue
		}
		data := &plugin.FileTestData{Path: path}
		err := ft.OnFileTest(ctx, data)
		v := Verdict{Plugin: ft.ID()}
		switch {
		case errors.Is(err, mapper.ErrNoDecision):
			v.Outcome = OutcomeSkipped
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rep, ctxErr
			}
			v.Outcome, v.Err = OutcomeFailed, err
		case data.AddFileToPendingTasks:
			v.Outcome = OutcomePending
		default:
			v.Outcome = OutcomeConforms
		}
		rep.Verdicts = append(rep.Verdicts, v)
	}
	return rep, nil
}

// Process runs one task: the worker chain on in, then post-processor file
// movement to out, then task results. Intermediate files live in a
// per-task directory under the cache dir that is removed afterwards. In
// dry-run mode the worker commands are printed and nothing is executed or
// moved.
func (r *Runner) Process(ctx context.Context, in, out string) (history.Task, error) {
	log := r.log()
	task := history.NewTask(in, r.now())
	task.Output = out
	for _, p := range r.Plugins {
		task.Plugins = append(task.Plugins, p.ID())
	}

	fi, err := os.Stat(in)
	if err != nil {
		return task, fmt.Errorf("stat source: %w", err)
	}
	task.SourceSize = fi.Size()

	cacheDir := filepath.Join(r.Cfg.CacheDir, "task-"+task.ID.String())
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return task, fmt.Errorf("create cache dir: %w", err)
	}
	defer os.RemoveAll(cacheDir)

	log.Info("processing", "file", in, "task", task.ID.String())
	final, ran, workErr := r.runWorkers(ctx, in, cacheDir)
	if r.Cfg.DryRun {
		return task, workErr
	}
	if workErr != nil {
		log.Error("worker stage failed", "file", in, "error", workErr)
	}

	source := plugin.SourceData{AbsPath: absPath(in), Basename: filepath.Base(in)}
	success := workErr == nil
	var dests []string
	moved := false
	if success {
		if final == in {
			// Post-processors expect the final file in the cache.
			final = filepath.Join(cacheDir, filepath.Base(in))
			if err := copyFile(in, final); err != nil {
				return task, fmt.Errorf("stage source: %w", err)
			}
		}
		dests, moved = r.moveFiles(ctx, source, final, out)
	}

	result := &plugin.TaskResultData{
		FinalCachePath:           final,
		TaskProcessingSuccess:    success,
		FileMoveProcessesSuccess: moved,
		DestinationFiles:         dests,
		SourceData:               source,
		CommandPlugins:           ran,
	}
	for _, p := range r.Plugins {
		tr, ok := p.(plugin.TaskResulter)
		if !ok {
			continue
		}
		if err := tr.OnTaskResults(ctx, result); err != nil {
			log.Error("task results failed", "plugin", tr.ID(), "error", err)
		}
	}

	task.Success = success && moved
	task.Finished = r.now()
	if len(dests) > 0 {
		if fi, err := os.Stat(dests[0]); err == nil {
			task.OutputSize = fi.Size()
			task.Output = dests[0]
		}
	}
	if r.Recorder != nil {
		if err := r.Recorder.RecordTaskResult(ctx, task); err != nil {
			log.Warn("recording task failed", "task", task.ID.String(), "error", err)
		}
	}

	switch {
	case workErr != nil:
		return task, workErr
	case !moved:
		return task, ErrMoveFailed
	}
	return task, nil
}

// runWorkers chains the worker stage of every enabled plugin. Each plugin
// reads the previous plugin's output. It returns the last file produced,
// or in when no command ran, and the ids of plugins whose command ran.
func (r *Runner) runWorkers(ctx context.Context, in, cacheDir string) (string, []string, error) {
	log := r.log()
	current := in
	var ran []string
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	step := 0

	for _, p := range r.Plugins {
		w, ok := p.(plugin.WorkerProcessor)
		if !ok {
			continue
		}
		for pass := 1; ; pass++ {
			if err := ctx.Err(); err != nil {
				return current, ran, err
			}
			step++
			data := &plugin.WorkerData{
				FileIn:           current,
				FileOut:          filepath.Join(cacheDir, fmt.Sprintf("%s-%d%s", stem, step, filepath.Ext(current))),
				OriginalFilePath: in,
			}
			err := w.OnWorkerProcess(ctx, data)
			if errors.Is(err, mapper.ErrNoDecision) {
				log.Warn("plugin skipped file", "plugin", w.ID(), "error", err)
				break
			}
			if err != nil {
				return current, ran, fmt.Errorf("%s: %w", w.ID(), err)
			}
			if len(data.ExecCommand) == 0 {
				log.Debug("nothing to do", "plugin", w.ID())
				break
			}
			if r.Cfg.DryRun {
				fmt.Fprintf(r.out(), "%s %s\n", r.Palette.Title(w.ID()+":"), ffmpeg.FormatArgs(data.ExecCommand))
				break
			}
			if err := r.execute(ctx, w.ID(), data); err != nil {
				return current, ran, err
			}
			if !slices.Contains(ran, w.ID()) {
				ran = append(ran, w.ID())
			}
			if _, err := os.Stat(data.FileOut); err == nil {
				current = data.FileOut
			}
			if !data.Repeat {
				break
			}
			if pass >= maxPasses {
				log.Warn("repeat limit reached", "plugin", w.ID(), "passes", pass)
				break
			}
		}
	}
	return current, ran, nil
}

func (r *Runner) execute(ctx context.Context, id string, data *plugin.WorkerData) error {
	log := r.log()
	log.Info("running command", "plugin", id)
	log.Debug("command", "argv", ffmpeg.FormatArgs(data.ExecCommand))

	opts := ffmpeg.ExecOptions{Progress: data.ProgressParser, OnProgress: r.onProgress(id)}
	if r.Cfg.Verbose && !r.Live {
		opts.Tee = r.out()
	}
	start := time.Now()
	res := r.exec()(ctx, data.ExecCommand, opts)
	took := time.Since(start)
	r.clearLine()
	r.Metrics.ToolRun(id, took, res.Err)

	if res.Err != nil {
		if data.ProgressParser != nil {
			log.Error("command failed", "plugin", id, "reached", fmt.Sprintf("%d%%", data.ProgressParser.Last().Percent()))
		}
		var te *ffmpeg.ToolError
		if errors.As(res.Err, &te) {
			if lines := te.LastLines(20); len(lines) > 0 {
				log.Error("last tool output", "plugin", id, "output", strings.Join(lines, "\n"))
			}
		}
		return fmt.Errorf("%s: %w", id, res.Err)
	}
	log.Info("command finished", "plugin", id, "took", took.Round(time.Millisecond))
	return nil
}

func (r *Runner) onProgress(id string) func(ffmpeg.Progress) {
	if !r.Live {
		log := r.log()
		return func(p ffmpeg.Progress) {
			log.Trace("progress", "plugin", id, "percent", p.Percent())
		}
	}
	return func(p ffmpeg.Progress) {
		fmt.Fprintf(r.out(), "\r  %s %3d%%  %s", id, p.Percent(), p.Elapsed.Round(time.Second))
	}
}

// moveFiles runs every file mover, then the default copy unless a mover
// turned it off. It returns the files written and whether every step
// succeeded.
func (r *Runner) moveFiles(ctx context.Context, source plugin.SourceData, final, out string) ([]string, bool) {
	log := r.log()
	ok := true
	runDefault := true
	removeSource := false
	var dests []string

	for _, p := range r.Plugins {
		fm, isMover := p.(plugin.FileMover)
		if !isMover {
			continue
		}
		data := &plugin.FileMovementData{
			SourceData:         source,
			FileIn:             final,
			FileOut:            out,
			RunDefaultFileCopy: true,
		}
		if err := fm.OnFileMovement(ctx, data); err != nil {
			log.Error("file movement failed", "plugin", fm.ID(), "error", err)
			ok = false
			continue
		}
		if data.CopyFile {
			if err := copyFile(data.FileIn, data.FileOut); err != nil {
				log.Error("plugin copy failed", "plugin", fm.ID(), "error", err)
				ok = false
			} else {
				dests = append(dests, data.FileOut)
			}
		}
		runDefault = runDefault && data.RunDefaultFileCopy
		removeSource = removeSource || data.RemoveSourceFile
	}

	if runDefault {
		dest := ffmpeg.OutputPath(final, out, "")
		if err := copyFile(final, dest); err != nil {
			log.Error("copy to destination failed", "dest", dest, "error", err)
			ok = false
		} else {
			dests = append(dests, dest)
		}
	}

	if removeSource && ok && !slices.Contains(dests, source.AbsPath) {
		if err := os.Remove(source.AbsPath); err != nil {
			log.Warn("removing source failed", "file", source.AbsPath, "error", err)
		}
	}
	return dests, ok
}

// copyFile writes src to dst through a temporary file in dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
