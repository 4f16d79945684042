package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/display"
	"github.com/backmassage/streamplug/internal/ffmpeg"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/metrics"
	"github.com/backmassage/streamplug/internal/policy"
	"github.com/backmassage/streamplug/internal/probe"
)

// IDErrorCheck is the decode-test plugin id.
const IDErrorCheck = "ffmpeg_file_error_checker"

// ErrNoRenderDevice is returned when VAAPI decoding is configured but no
// DRM render node exists.
var ErrNoRenderDevice = errors.New("no VAAPI render device found")

// errorChecker decodes the whole file to the null muxer with -xerror, so
// any decode error fails the task. With retesting disabled every file is
// tested on every scan. With it enabled, successful tests are timestamped
// in the directory info and retested once the configured timespan passed.
type errorChecker struct {
	base
	settings config.ErrorCheckSettings
}

func newErrorChecker(env Env) Plugin {
	return &errorChecker{
		base:     newBase(IDErrorCheck, env, "video"),
		settings: env.Settings.ErrorCheck,
	}
}

// probeFile only proves the file is a readable video; there is no stream
// mapping in a decode test.
func (e *errorChecker) probeFile(ctx context.Context, path string) (*probe.ProbeResult, error) {
	pr, err := e.prober().Probe(ctx, path)
	if err != nil {
		e.log.Debug("probe failed, skipping file", "path", path, "error", err)
		e.env.Metrics.FileTested(e.id, metrics.ResultNoDecision)
		return nil, fmt.Errorf("%w: %w", mapper.ErrNoDecision, err)
	}
	return pr, nil
}

func (e *errorChecker) OnFileTest(ctx context.Context, data *FileTestData) error {
	if _, err := e.probeFile(ctx, data.Path); err != nil {
		return err
	}
	if !e.needsTesting(data.Path) {
		e.log.Debug("file does not require testing", "path", data.Path)
		e.env.Metrics.FileTested(e.id, metrics.ResultConforms)
		return nil
	}
	e.log.Debug("file has not been tested within the configured timespan", "path", data.Path)
	e.env.Metrics.FileTested(e.id, metrics.ResultPending)
	data.AddFileToPendingTasks = true
	return nil
}

// needsTesting reports whether path is due for a decode test. Only
// retesting consults the recorded timestamp.
func (e *errorChecker) needsTesting(path string) bool {
	if !e.settings.RetestFiles {
		return true
	}
	v, ok := lookupRecord(e.log, IDErrorCheck, path)
	if !ok {
		return true
	}
	last, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.log.Debug("ignoring unreadable test timestamp", "path", path, "value", v)
		return true
	}
	tested := time.Unix(int64(last), 0)
	e.log.Debug("file was previously tested", "path", path, "tested", display.FormatAge(tested, e.env.Now()))
	span, err := policy.ParseTimespan(e.settings.TestFrequency)
	if err != nil {
		return true
	}
	return e.env.Now().Unix() > int64(last)+int64(span.Seconds())
}

func (e *errorChecker) OnWorkerProcess(ctx context.Context, data *WorkerData) error {
	data.ExecCommand = nil
	data.Repeat = false

	pr, err := e.probeFile(ctx, data.FileIn)
	if err != nil {
		return err
	}
	if e.settings.RetestFiles && !e.settings.AlwaysRun {
		recordPath := data.OriginalFilePath
		if recordPath == "" {
			recordPath = data.FileIn
		}
		if !e.needsTesting(recordPath) {
			e.log.Debug("file was tested within the configured timespan", "path", recordPath)
			return nil
		}
	}

	hw, err := e.hwaccelArgs()
	if err != nil {
		return err
	}
	cmd := ffmpeg.Command{
		Binary: e.env.FFmpeg,
		Global: append([]string{"-hide_banner", "-loglevel", "error", "-stats", "-xerror"}, hw...),
		Input:  data.FileIn,
	}.NullOutput()
	if n := e.settings.MaxMuxingQueueSize; n > 0 {
		cmd.InputOptions = []string{"-max_muxing_queue_size", strconv.Itoa(n)}
	}
	data.ExecCommand = cmd.Args()
	data.ProgressParser = e.progressParser(pr)
	e.log.Debug("decode test command", "command", cmd.String())
	return nil
}

func (e *errorChecker) hwaccelArgs() ([]string, error) {
	switch e.settings.DecodingType {
	case "vaapi":
		dev, err := RenderDevice(e.env.DeviceDir)
		if err != nil {
			return nil, err
		}
		return []string{"-hwaccel", "vaapi", "-hwaccel_output_format", "vaapi", "-hwaccel_device", dev}, nil
	case "nvdec":
		return []string{"-hwaccel", "cuda", "-hwaccel_device", "0"}, nil
	}
	return nil, nil
}

// RenderDevice returns the first DRM render node under dir.
func RenderDevice(dir string) (string, error) {
	nodes, err := filepath.Glob(filepath.Join(dir, "render*"))
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoRenderDevice, dir)
	}
	sort.Strings(nodes)
	return nodes[0], nil
}

func (e *errorChecker) OnTaskResults(_ context.Context, data *TaskResultData) error {
	// A failed decode test fails the task, so only successes are recorded.
	if !data.TaskProcessingSuccess || !e.settings.RetestFiles {
		return nil
	}
	stamp := strconv.FormatInt(e.env.Now().Unix(), 10)
	if err := writeRecords(IDErrorCheck, data.DestinationFiles, func(string) string { return stamp }); err != nil {
		return err
	}
	e.log.Debug("error check timestamp written", "files", len(data.DestinationFiles))
	return nil
}
