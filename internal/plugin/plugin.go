// Package plugin implements the media plugins on top of the stream mapper.
// Each plugin answers a subset of the host's lifecycle calls: the library
// file test, the worker stage, and the two post-processor stages.
//
// Plugins never run ffmpeg themselves. The worker stage returns the argument
// vector and a progress parser; the host executes it. A file that cannot be
// probed is reported with an error wrapping mapper.ErrNoDecision and the
// lifecycle data is left as it was.
package plugin

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/config"
	"github.com/backmassage/streamplug/internal/ffmpeg"
	"github.com/backmassage/streamplug/internal/mapper"
	"github.com/backmassage/streamplug/internal/metrics"
	"github.com/backmassage/streamplug/internal/probe"
)

// FileTestData is passed to the library file test.
type FileTestData struct {
	Path                  string
	AddFileToPendingTasks bool
}

// WorkerData is passed to the worker stage. A plugin that has nothing to do
// leaves ExecCommand empty.
type WorkerData struct {
	FileIn           string
	FileOut          string
	OriginalFilePath string
	ExecCommand      []string
	ProgressParser   *ffmpeg.ProgressParser
	Repeat           bool
}

// SourceData describes the original library file of a task.
type SourceData struct {
	AbsPath  string
	Basename string
}

// FileMovementData is passed to the post-processor file movement stage.
type FileMovementData struct {
	SourceData         SourceData
	FileIn             string // final cache file
	FileOut            string // destination
	RemoveSourceFile   bool
	CopyFile           bool
	RunDefaultFileCopy bool
}

// TaskResultData is passed once every post-processor movement has run.
type TaskResultData struct {
	FinalCachePath           string
	TaskProcessingSuccess    bool
	FileMoveProcessesSuccess bool
	DestinationFiles         []string
	SourceData               SourceData
	// CommandPlugins lists the plugins whose worker command ran.
	CommandPlugins []string
}

// Plugin is implemented by every plugin.
type Plugin interface {
	ID() string
}

// FileTester decides whether a library file should be queued.
type FileTester interface {
	Plugin
	OnFileTest(ctx context.Context, data *FileTestData) error
}

// WorkerProcessor produces the command for the worker stage.
type WorkerProcessor interface {
	Plugin
	OnWorkerProcess(ctx context.Context, data *WorkerData) error
}

// FileMover runs during post-processor file movement.
type FileMover interface {
	Plugin
	OnFileMovement(ctx context.Context, data *FileMovementData) error
}

// TaskResulter runs after the host reports the task outcome.
type TaskResulter interface {
	Plugin
	OnTaskResults(ctx context.Context, data *TaskResultData) error
}

// ProberFactory returns a prober restricted to the given MIME categories.
// No categories means the prober's defaults.
type ProberFactory func(categories ...string) mapper.Prober

// Env is everything a plugin needs from the process. It is built once per
// run and shared by every plugin.
type Env struct {
	FFmpeg    string
	FFprobe   string
	Settings  config.Settings
	NewProber ProberFactory
	Log       hclog.Logger
	Metrics   *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
	// DeviceDir holds the DRM render nodes used for VAAPI decoding.
	// Defaults to /dev/dri.
	DeviceDir string
}

// DefaultDeviceDir is where VAAPI render nodes are looked up.
const DefaultDeviceDir = "/dev/dri"

func (e *Env) withDefaults() Env {
	out := *e
	if out.FFmpeg == "" {
		out.FFmpeg = ffmpeg.DefaultBinary
	}
	if out.Log == nil {
		out.Log = hclog.NewNullLogger()
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	if out.DeviceDir == "" {
		out.DeviceDir = DefaultDeviceDir
	}
	if out.NewProber == nil {
		bin, log := out.FFprobe, out.Log
		out.NewProber = func(categories ...string) mapper.Prober {
			return probe.NewProber(bin, log.Named("probe"), categories...)
		}
	}
	return out
}
