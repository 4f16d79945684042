package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// stderrTailSize bounds how much tool output is kept for error reports.
const stderrTailSize = 16 << 10

// ExecOptions controls a single run.
type ExecOptions struct {
	// Progress receives every output chunk when set; OnProgress is called
	// with each estimate it produces.
	Progress   *ProgressParser
	OnProgress func(Progress)

	// Tee receives a live copy of the tool's output (verbose mode).
	Tee io.Writer
}

// ExecResult holds the outcome of a single invocation. Err is a
// *ToolError when the tool failed.
type ExecResult struct {
	Stderr string
	Err    error
}

// Execute runs argv (binary first) and waits for it. Stdout and stderr are
// read together so both the stats line and -progress output reach the
// parser.
func Execute(ctx context.Context, argv []string, opts ExecOptions) ExecResult {
	if len(argv) == 0 {
		return ExecResult{Err: &ToolError{Binary: DefaultBinary, ExitCode: -1, Err: errors.New("empty command")}}
	}

	sink := &outputSink{opts: opts}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = sink
	cmd.Stderr = sink

	err := cmd.Run()
	out := string(sink.tail)
	if err == nil {
		return ExecResult{Stderr: out}
	}

	te := &ToolError{Binary: argv[0], ExitCode: -1, Stderr: out, Hint: Hint(out), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		te.ExitCode = exitErr.ExitCode()
		te.Err = nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		te.Err = ctxErr
	}
	return ExecResult{Stderr: out, Err: te}
}

// outputSink is shared by stdout and stderr; exec.Cmd serialises writes
// when both point at the same writer.
type outputSink struct {
	opts ExecOptions
	tail []byte
}

func (s *outputSink) Write(p []byte) (int, error) {
	s.tail = append(s.tail, p...)
	if over := len(s.tail) - stderrTailSize; over > 0 {
		s.tail = append(s.tail[:0], s.tail[over:]...)
	}
	if s.opts.Tee != nil {
		_, _ = s.opts.Tee.Write(p)
	}
	if s.opts.Progress != nil {
		if pr, ok := s.opts.Progress.Feed(string(p)); ok && s.opts.OnProgress != nil {
			s.opts.OnProgress(pr)
		}
	}
	return len(p), nil
}
