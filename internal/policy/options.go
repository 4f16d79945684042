package policy

import "strings"

// SplitOptions splits a free-form option string on any whitespace,
// newlines included. Tokens are not validated; ffmpeg rejects bad ones.
func SplitOptions(text string) []string {
	return strings.Fields(text)
}
