package pipeline

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Supported media file extensions (lowercase, with leading dot).
var mediaExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
	".vob":  true,
	".ogv":  true,
}

// excludeSet matches root-relative paths against exclude patterns. Paths
// are slash-separated, lowercased and rooted at "/", so "**/extras/**"
// prunes an extras directory at any depth.
type excludeSet []glob.Glob

func compileExcludes(patterns []string) (excludeSet, error) {
	set := make(excludeSet, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p), '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		set = append(set, g)
	}
	return set, nil
}

func (s excludeSet) match(rel string, dir bool) bool {
	rel = "/" + strings.ToLower(filepath.ToSlash(rel))
	for _, g := range s {
		if g.Match(rel) || (dir && g.Match(rel+"/")) {
			return true
		}
	}
	return false
}

// Discover walks root, collects files with media extensions, prunes
// directories and files matching any exclude pattern, and returns the
// paths sorted lexicographically for deterministic processing order.
func Discover(root string, excludes []string) ([]string, error) {
	set, err := compileExcludes(excludes)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && set.match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !mediaExtensions[strings.ToLower(filepath.Ext(path))] || set.match(rel, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
