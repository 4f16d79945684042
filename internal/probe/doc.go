// Package probe provides ffprobe-based media inspection and typed result
// structures. A single JSON call per file yields the container format and
// every stream in container order; optional numeric fields are explicit.
//
// Files are sniffed with a content-based MIME check first so that only
// audio, video and image files reach ffprobe.
package probe
