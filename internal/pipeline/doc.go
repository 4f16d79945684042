// Package pipeline drives enabled plugins through the host lifecycle for
// the CLI harness: the library file test for one file or a whole tree,
// and the full task for one file (worker chain, command execution,
// post-processor movement and task results).
//
// Layout:
//   - discover.go: media discovery with glob exclude patterns
//   - runner.go:   Runner, file test and task processing
//   - scan.go:     directory scan, live progress line and report table
//   - stats.go:    RunStats counters
package pipeline
