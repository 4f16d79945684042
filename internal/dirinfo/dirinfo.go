// Package dirinfo reads and writes the per-directory metadata file the
// media host keeps next to library files. It is an INI file with one
// section per plugin and one key per file basename.
//
// A Store is not safe for concurrent use, and two Stores open on the same
// directory will overwrite each other's changes on Save. Callers process
// one file per directory at a time.
package dirinfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// FileName is the metadata file kept in each library directory.
const FileName = ".unmanic"

// Store is the loaded metadata of one directory.
type Store struct {
	path  string
	file  *ini.File
	dirty bool
}

var loadOptions = ini.LoadOptions{
	InsensitiveKeys:     true,
	IgnoreInlineComment: true,
}

// Open loads dir's metadata file. A missing file gives an empty store.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, FileName)
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.file = ini.Empty(loadOptions)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.file = f
	return s, nil
}

// Path returns the metadata file location.
func (s *Store) Path() string { return s.path }

// Get returns the value stored under section/key.
func (s *Store) Get(section, key string) (string, bool) {
	sec, err := s.file.GetSection(section)
	if err != nil {
		return "", false
	}
	k, err := sec.GetKey(key)
	if err != nil {
		return "", false
	}
	return k.String(), true
}

// Set stores value under section/key. Nothing is written until Save.
func (s *Store) Set(section, key, value string) {
	s.file.Section(section).Key(key).SetValue(value)
	s.dirty = true
}

// Save writes the file if anything changed. The write goes to a temporary
// file in the same directory that is then renamed over the old one.
func (s *Store) Save() error {
	if !s.dirty {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	if _, err := s.file.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}
