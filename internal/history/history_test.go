package history

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	a, b := NewTask("/lib/a.mkv", start), NewTask("/lib/a.mkv", start)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	a.Finished = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, a.Duration())
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	log := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Info})
	task := NewTask("/lib/a.mkv", time.Unix(0, 0))
	task.Finished = time.Unix(2, 0)
	task.Success = true
	task.SourceSize = 3 << 30
	task.OutputSize = 1536 << 20

	require.NoError(t, LogRecorder{Log: log}.RecordTaskResult(context.Background(), task))
	out := buf.String()
	assert.Contains(t, out, "task finished")
	assert.Contains(t, out, task.ID.String())
	assert.Contains(t, out, "source_size=\"3.0 GiB\"")
	assert.Contains(t, out, "output_size=\"1.5 GiB\"")
	assert.Contains(t, out, "size_change=\"- 1.5 GiB\"")

	buf.Reset()
	task.Success = false
	require.NoError(t, LogRecorder{Log: log}.RecordTaskResult(context.Background(), task))
	assert.Contains(t, buf.String(), "[WARN]")
	assert.NotContains(t, buf.String(), "source_size")
}

func TestMemory(t *testing.T) {
	var m Memory
	var r Recorder = &m
	require.NoError(t, r.RecordTaskResult(context.Background(), NewTask("x", time.Now())))
	assert.Len(t, m.Tasks, 1)
}
