// Package ffmpeg assembles ffmpeg argument vectors, runs them, and turns
// the tool's live output into progress updates.
//
// Command fixes the argument order: binary, global flags, -i input,
// post-input options, stream mapping, -y, output. Execute captures a tail
// of stderr and returns a *ToolError on failure with a hint drawn from
// known stderr patterns. Nothing here retries; a failed run is reported
// once and the caller decides what to do with the file.
package ffmpeg
