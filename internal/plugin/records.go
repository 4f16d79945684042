package plugin

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/streamplug/internal/dirinfo"
)

// lookupRecord reads the directory record for path. A missing or unreadable
// store reads as no record.
func lookupRecord(log hclog.Logger, section, path string) (string, bool) {
	store, err := dirinfo.Open(filepath.Dir(path))
	if err != nil {
		log.Debug("directory info unreadable", "path", path, "error", err)
		return "", false
	}
	return store.Get(section, filepath.Base(path))
}

// writeRecords stores value(file) for each file, one save per directory.
// Files whose value is empty are skipped.
func writeRecords(section string, files []string, value func(file string) string) error {
	stores := map[string]*dirinfo.Store{}
	var order []string
	for _, f := range files {
		v := value(f)
		if v == "" {
			continue
		}
		dir := filepath.Dir(f)
		store, ok := stores[dir]
		if !ok {
			var err error
			store, err = dirinfo.Open(dir)
			if err != nil {
				return err
			}
			stores[dir] = store
			order = append(order, dir)
		}
		store.Set(section, filepath.Base(f), v)
	}
	for _, dir := range order {
		if err := stores[dir].Save(); err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
	}
	return nil
}
