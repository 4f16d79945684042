// Package mapper turns a probe result and a plugin strategy into ffmpeg
// stream selection and encoding flags.
//
// Streams are visited in container order with one running counter per
// stream type. Each stream is copied, encoded, cloned or dropped. Flags are
// collected per type and emitted video, audio, subtitle, data, attachment;
// clone streams are queued and emitted after every original stream.
package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/probe"
)

// ErrNoDecision is returned when a file could not be probed. It is never
// the same as "file already conforms".
var ErrNoDecision = errors.New("no mapping decision possible")

// MapFile probes path and maps its streams. Probe failures wrap both
// ErrNoDecision and the prober's error.
func MapFile(ctx context.Context, p Prober, path string, st Strategy, log hclog.Logger) (*Result, *probe.ProbeResult, error) {
	pr, err := p.Probe(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNoDecision, err)
	}
	return Map(pr, st, log), pr, nil
}

type pendingClone struct {
	stream *probe.Stream
	source int
}

// Map runs st over every stream of pr. It never fails: streams with missing
// type or codec are resolved locally and logged.
func Map(pr *probe.ProbeResult, st Strategy, log hclog.Logger) *Result {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	res := &Result{
		Selection: Groups{},
		Encoding:  Groups{},
	}

	sourceCount := map[probe.CodecType]int{}
	outputCount := map[probe.CodecType]int{}
	var clones []pendingClone

	for i := range pr.Streams {
		s := &pr.Streams[i]
		t := s.CodecType
		ident := t.Ident()
		if ident == "" {
			log.Warn("stream has no usable codec_type, leaving it out", "index", s.Index, "codec_type", string(t))
			res.Decisions = append(res.Decisions, Decision{Stream: s.Index, Action: ActionSkip})
			continue
		}

		slot := Slot{Type: t, Source: sourceCount[t], Output: outputCount[t]}
		sourceCount[t]++

		action, fallback := classify(pr, s, st, log)
		d := Decision{Stream: s.Index, Action: action, Slot: slot, Fallback: fallback}

		switch action {
		case ActionDrop:
			if !fallback {
				res.NeedsProcessing = true
			}
			log.Debug("dropping stream", "index", s.Index, "type", string(t), "codec", s.CodecName)
		case ActionEncode:
			d.Selection = selector(ident, slot.Source)
			d.Encoding = st.Encoding(pr, s, slot)
			outputCount[t]++
			res.NeedsProcessing = true
		case ActionClone:
			d.Selection = selector(ident, slot.Source)
			d.Encoding = copyCodec(ident, slot.Output)
			outputCount[t]++
			clones = append(clones, pendingClone{stream: s, source: slot.Source})
			res.NeedsProcessing = true
		default:
			d.Action = ActionCopy
			d.Selection = selector(ident, slot.Source)
			d.Encoding = copyCodec(ident, slot.Output)
			outputCount[t]++
		}

		res.Selection[t] = append(res.Selection[t], d.Selection...)
		res.Encoding[t] = append(res.Encoding[t], d.Encoding...)
		res.Decisions = append(res.Decisions, d)
	}

	// Clone slots continue after every emitted original of the same type.
	for _, c := range clones {
		t := c.stream.CodecType
		slot := Slot{Type: t, Source: c.source, Output: outputCount[t]}
		outputCount[t]++
		res.Clones = append(res.Clones, Decision{
			Stream:    c.stream.Index,
			Action:    ActionClone,
			Slot:      slot,
			Selection: selector(t.Ident(), slot.Source),
			Encoding:  st.Encoding(pr, c.stream, slot),
		})
	}

	log.Debug("mapped streams", "strategy", st.Name(), "streams", len(pr.Streams),
		"clones", len(res.Clones), "needs_processing", res.NeedsProcessing)
	return res
}

func classify(pr *probe.ProbeResult, s *probe.Stream, st Strategy, log hclog.Logger) (Action, bool) {
	if !st.Handles(s.CodecType) {
		a := st.Fallback(s.CodecType)
		if a != ActionDrop {
			a = ActionCopy
		}
		return a, true
	}
	if s.CodecName == "" {
		log.Debug("stream has no codec_name, copying it", "index", s.Index, "type", string(s.CodecType))
		return ActionCopy, false
	}
	return st.Classify(pr, s), false
}

func selector(ident string, source int) []string {
	return []string{"-map", fmt.Sprintf("0:%s:%d", ident, source)}
}

func copyCodec(ident string, output int) []string {
	return []string{fmt.Sprintf("-c:%s:%d", ident, output), "copy"}
}
