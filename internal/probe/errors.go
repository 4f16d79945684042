package probe

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Prober.Probe. ErrUnsupportedMIME wraps
// ErrProbeFailure so a single errors.Is check covers both.
var (
	ErrProbeFailure    = errors.New("probe failed")
	ErrUnsupportedMIME = fmt.Errorf("%w: unsupported mime type", ErrProbeFailure)
)
