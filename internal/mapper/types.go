package mapper

import (
	"context"

	"github.com/backmassage/streamplug/internal/probe"
)

// Action is the per-stream mapping decision.
type Action int

const (
	ActionCopy Action = iota
	ActionEncode
	ActionClone
	ActionDrop
	ActionSkip // stream has no addressable type and is left out
)

func (a Action) String() string {
	switch a {
	case ActionCopy:
		return "copy"
	case ActionEncode:
		return "encode"
	case ActionClone:
		return "clone"
	case ActionDrop:
		return "drop"
	case ActionSkip:
		return "skip"
	}
	return "unknown"
}

// Slot locates a stream by type. Source is the stream's position among
// input streams of its type and is used in "-map 0:a:N" selectors. Output
// is its position among emitted streams of that type and is used in
// per-stream codec options such as "-c:a:N".
type Slot struct {
	Type   probe.CodecType
	Source int
	Output int
}

// Strategy classifies streams and builds encoding flags for one plugin.
// Implementations must not mutate the probe result.
type Strategy interface {
	// Name identifies the plugin in logs.
	Name() string

	// Handles reports whether the strategy classifies streams of type t.
	Handles(t probe.CodecType) bool

	// Fallback is applied to streams of types the strategy does not
	// handle. It must be ActionCopy or ActionDrop.
	Fallback(t probe.CodecType) Action

	// Classify decides what to do with a stream of a handled type.
	Classify(pr *probe.ProbeResult, s *probe.Stream) Action

	// Encoding returns the codec flags for an encoded stream or for the
	// synthetic stream of a clone, addressed by slot.Output.
	Encoding(pr *probe.ProbeResult, s *probe.Stream, slot Slot) []string
}

// Prober is the part of probe.Prober the mapper needs.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.ProbeResult, error)
}

// Decision records what the mapper did with one stream.
type Decision struct {
	Stream    int // absolute stream index
	Action    Action
	Slot      Slot
	Fallback  bool // decided by the strategy's fallback, not Classify
	Selection []string
	Encoding  []string
}

// Groups holds flag lists keyed by stream type.
type Groups map[probe.CodecType][]string

// Flatten concatenates the groups in emission order.
func (g Groups) Flatten() []string {
	var out []string
	for _, t := range probe.Types {
		out = append(out, g[t]...)
	}
	return out
}

// Result is the mapper output for one file.
type Result struct {
	NeedsProcessing bool
	Selection       Groups
	Encoding        Groups
	Decisions       []Decision
	Clones          []Decision
}

// SelectionArgs returns all selection flags: original streams grouped by
// type, then every clone.
func (r *Result) SelectionArgs() []string {
	out := r.Selection.Flatten()
	for _, c := range r.Clones {
		out = append(out, c.Selection...)
	}
	return out
}

// EncodingArgs returns all encoding flags in the same order as
// SelectionArgs.
func (r *Result) EncodingArgs() []string {
	out := r.Encoding.Flatten()
	for _, c := range r.Clones {
		out = append(out, c.Encoding...)
	}
	return out
}

// Args returns the selection block followed by the encoding block.
func (r *Result) Args() []string {
	return append(r.SelectionArgs(), r.EncodingArgs()...)
}

// Count returns how many input streams were given action a.
func (r *Result) Count(a Action) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Action == a {
			n++
		}
	}
	return n
}
