package plugin

import (
	"errors"
	"fmt"
)

// ErrUnknownPlugin is returned by New for an id no plugin answers to.
var ErrUnknownPlugin = errors.New("unknown plugin")

var constructors = map[string]func(Env) Plugin{
	IDStereoClone: newStereoClone,
	IDDTS:         newDTS,
	IDNormalise:   newNormalise,
	IDNVENC:       newNVENC,
	IDWebM:        newWebM,
	IDErrorCheck:  newErrorChecker,
	IDFileStats:   newFileStats,
}

// IDs lists every plugin id in a stable order.
func IDs() []string {
	return []string{IDStereoClone, IDDTS, IDNormalise, IDNVENC, IDWebM, IDErrorCheck, IDFileStats}
}

// New builds the plugins named by ids, in the given order. Duplicate ids
// are an error; a plugin runs at most once per stage.
func New(ids []string, env Env) ([]Plugin, error) {
	e := env.withDefaults()
	seen := make(map[string]bool, len(ids))
	out := make([]Plugin, 0, len(ids))
	for _, id := range ids {
		ctor, ok := constructors[id]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownPlugin, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("plugin %q enabled twice", id)
		}
		seen[id] = true
		out = append(out, ctor(e))
	}
	return out, nil
}
