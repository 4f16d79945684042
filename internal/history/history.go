// Package history records finished tasks. The statistics store itself is an
// external service; Recorder is the only thing the harness depends on.
package history

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/display"
)

// Task is one finished task.
type Task struct {
	ID         uuid.UUID
	Source     string
	Output     string
	Plugins    []string
	Success    bool
	Started    time.Time
	Finished   time.Time
	SourceSize int64
	OutputSize int64
}

// NewTask starts a task record for source with a fresh id.
func NewTask(source string, started time.Time) Task {
	return Task{ID: uuid.New(), Source: source, Started: started}
}

// Duration is how long the task took.
func (t Task) Duration() time.Duration { return t.Finished.Sub(t.Started) }

// Recorder stores task results.
type Recorder interface {
	RecordTaskResult(ctx context.Context, t Task) error
}

// LogRecorder writes each task as a structured log line.
type LogRecorder struct {
	Log hclog.Logger
}

// RecordTaskResult implements Recorder.
func (r LogRecorder) RecordTaskResult(_ context.Context, t Task) error {
	log := r.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}
	fields := []any{
		"task", t.ID.String(),
		"source", t.Source,
		"success", t.Success,
		"took", t.Duration().Round(time.Millisecond),
		"plugins", t.Plugins,
	}
	if t.Success && t.SourceSize > 0 {
		fields = append(fields,
			"source_size", humanize.IBytes(uint64(t.SourceSize)),
			"output_size", humanize.IBytes(uint64(t.OutputSize)),
			"size_change", display.FormatBytesWithSign(t.OutputSize-t.SourceSize),
		)
	}
	if t.Success {
		log.Info("task finished", fields...)
	} else {
		log.Warn("task failed", fields...)
	}
	return nil
}

// Memory keeps tasks in memory, in place of a store, for callers that
// inspect results after a run.
type Memory struct {
	Tasks []Task
}

// RecordTaskResult implements Recorder.
func (m *Memory) RecordTaskResult(_ context.Context, t Task) error {
	m.Tasks = append(m.Tasks, t)
	return nil
}
