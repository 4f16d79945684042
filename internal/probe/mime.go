package probe

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIMECategory sniffs the file content and returns the top-level MIME type
// ("video", "audio", "image", "application", ...).
func MIMECategory(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect mime type of %q: %w", path, err)
	}
	category, _, _ := strings.Cut(m.String(), "/")
	return category, nil
}
