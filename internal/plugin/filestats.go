package plugin

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/djherbis/times"

	"github.com/backmassage/streamplug/internal/config"
)

// IDFileStats is the stat replication plugin id.
const IDFileStats = "replicate_source_file_stats"

// Errors returned by the stat replication stages.
var (
	ErrMissingSource   = errors.New("source data is missing the source file path")
	ErrMissingStatData = errors.New("stat data file is missing (was the file movement stage skipped?)")
)

// statFile is the handoff between file movement and task results. It sits
// next to the final cache file, named after the source path's MD5.
type statFile struct {
	Stat sourceStat `json:"stat"`
}

// sourceStat holds only the fields enabled in the settings.
type sourceStat struct {
	Mode   *int64 `json:"mode,omitempty"`
	Access *int64 `json:"access,omitempty"`
	Modify *int64 `json:"modify,omitempty"`
}

// fileStats copies the source file's mode and times onto every file the
// task writes to the library.
type fileStats struct {
	base
	settings config.FileStatSettings
}

func newFileStats(env Env) Plugin {
	return &fileStats{base: newBase(IDFileStats, env), settings: env.Settings.FileStats}
}

func statDataPath(dir, source string) string {
	sum := md5.Sum([]byte(source))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".json")
}

func (f *fileStats) readStat(path string) (sourceStat, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return sourceStat{}, err
	}
	var st sourceStat
	if f.settings.UpdateMode {
		mode := int64(unixMode(fi.Mode()))
		st.Mode = &mode
	}
	if f.settings.UpdateAccess {
		atime := accessTime(fi).Unix()
		st.Access = &atime
	}
	if f.settings.UpdateModify {
		mtime := fi.ModTime().Unix()
		st.Modify = &mtime
	}
	return st, nil
}

func (f *fileStats) OnFileMovement(_ context.Context, data *FileMovementData) error {
	source := data.SourceData.AbsPath
	if source == "" {
		f.log.Error("source data is missing the source file path")
		return ErrMissingSource
	}
	st, err := f.readStat(source)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dir := filepath.Dir(data.FileIn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(statFile{Stat: st}, "", "    ")
	if err != nil {
		return err
	}
	path := statDataPath(dir, source)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write stat data: %w", err)
	}
	f.log.Debug("source stat stored", "source", source, "data", path)
	return nil
}

func (f *fileStats) OnTaskResults(_ context.Context, data *TaskResultData) error {
	// A failed worker stage skips file movement, so there is no stat data.
	if !data.TaskProcessingSuccess {
		f.log.Debug("task failed, source stat not replicated")
		return nil
	}
	source := data.SourceData.AbsPath
	if source == "" {
		f.log.Error("source data is missing the source file path")
		return ErrMissingSource
	}
	path := statDataPath(filepath.Dir(data.FinalCachePath), source)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		f.log.Error("stat data file is missing", "path", path)
		return fmt.Errorf("%w: %s", ErrMissingStatData, path)
	}
	if err != nil {
		return err
	}
	var sf statFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return fmt.Errorf("parse stat data %s: %w", path, err)
	}

	var applied []string
	for _, dest := range data.DestinationFiles {
		if err := f.apply(dest, sf.Stat); err != nil {
			f.log.Error("unable to update destination file", "path", dest, "error", err)
			continue
		}
		applied = append(applied, dest)
	}

	if !data.FileMoveProcessesSuccess {
		return nil
	}
	record, err := json.Marshal(sf.Stat)
	if err != nil {
		return err
	}
	return writeRecords(IDFileStats, applied, func(string) string { return string(record) })
}

// apply sets mode and times on dest. Disabled or zero fields keep the
// destination's own values.
func (f *fileStats) apply(dest string, st sourceStat) error {
	if _, err := os.Stat(dest); err != nil {
		return err
	}
	if f.settings.UpdateMode && st.Mode != nil && *st.Mode != 0 {
		if err := os.Chmod(dest, fileMode(uint32(*st.Mode))); err != nil {
			return err
		}
		f.log.Debug("set mode of destination file", "path", dest)
	}

	fi, err := os.Stat(dest)
	if err != nil {
		return err
	}
	atime, mtime := accessTime(fi), fi.ModTime()
	update := false
	if f.settings.UpdateAccess && st.Access != nil && *st.Access != 0 {
		atime = time.Unix(*st.Access, 0)
		update = true
	}
	if f.settings.UpdateModify && st.Modify != nil && *st.Modify != 0 {
		mtime = time.Unix(*st.Modify, 0)
		update = true
	}
	if !update {
		return nil
	}
	if err := os.Chtimes(dest, atime, mtime); err != nil {
		return err
	}
	f.log.Debug("set atime/mtime of destination file", "path", dest)
	return nil
}

func accessTime(fi os.FileInfo) time.Time {
	return times.Get(fi).AccessTime()
}

// Unix permission bits above the rwx triplets.
const (
	modeSetuid = 0o4000
	modeSetgid = 0o2000
	modeSticky = 0o1000
)

// unixMode converts a FileMode to the st_mode permission bits, including
// setuid, setgid and sticky.
func unixMode(m fs.FileMode) uint32 {
	bits := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		bits |= modeSetuid
	}
	if m&fs.ModeSetgid != 0 {
		bits |= modeSetgid
	}
	if m&fs.ModeSticky != 0 {
		bits |= modeSticky
	}
	return bits
}

// fileMode is the inverse of unixMode. File type bits are ignored.
func fileMode(bits uint32) fs.FileMode {
	m := fs.FileMode(bits & 0o777)
	if bits&modeSetuid != 0 {
		m |= fs.ModeSetuid
	}
	if bits&modeSetgid != 0 {
		m |= fs.ModeSetgid
	}
	if bits&modeSticky != 0 {
		m |= fs.ModeSticky
	}
	return m
}
