package strategy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/backmassage/streamplug/internal/probe"
)

// StereoSuffix is appended to the title of a stereo clone.
const StereoSuffix = "[Stereo]"

var (
	channelCountRe = regexp.MustCompile(`\d+\.*\d*`)
	multiSpaceRe   = regexp.MustCompile(`\s\s+`)
)

// StereoTag returns the title given to the stereo clone of s: channel
// counts such as "5.1" are removed and " [Stereo]" appended.
// "English 5.1" becomes "English [Stereo]"; an untitled stream gets "[Stereo]".
func StereoTag(s *probe.Stream) string {
	tag := channelCountRe.ReplaceAllString(s.Title(), " ")
	tag = multiSpaceRe.ReplaceAllString(tag, " ")
	tag = strings.TrimRightFunc(tag, unicode.IsSpace)
	tag += " " + StereoSuffix
	return strings.TrimLeftFunc(tag, unicode.IsSpace)
}

// LegacyStereoTag returns the title older releases gave stereo clones:
// digits removed, trailing dots trimmed, then "Stereo" with no separator.
// The transform is a heuristic; titles with unrelated digits lose them too.
func LegacyStereoTag(s *probe.Stream) string {
	title, ok := s.Tag("title")
	if !ok {
		return "Stereo"
	}
	tag := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, title)
	return strings.TrimRight(tag, ".") + "Stereo"
}

// ExistingStereoTag reports the title of an audio stream in pr that is
// already a stereo counterpart of s. Both tag forms are checked, plain and
// wrapped in single quotes.
func ExistingStereoTag(pr *probe.ProbeResult, s *probe.Stream) (string, bool) {
	titles := make(map[string]struct{})
	for _, a := range pr.StreamsOfType(probe.TypeAudio) {
		titles[a.Title()] = struct{}{}
	}
	for _, tag := range []string{StereoTag(s), LegacyStereoTag(s)} {
		if _, ok := titles[tag]; ok {
			return tag, true
		}
		if _, ok := titles["'"+tag+"'"]; ok {
			return tag, true
		}
	}
	return "", false
}
