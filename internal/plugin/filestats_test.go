package plugin

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/streamplug/internal/dirinfo"
)

type statFixture struct {
	source, cacheFile, dest string
	atime, mtime            time.Time
}

func newStatFixture(t *testing.T) statFixture {
	t.Helper()
	lib, cache, out := t.TempDir(), t.TempDir(), t.TempDir()
	f := statFixture{
		source:    filepath.Join(lib, "movie.mkv"),
		cacheFile: filepath.Join(cache, "task-1", "movie-out.mkv"),
		dest:      filepath.Join(out, "movie.mkv"),
		atime:     time.Unix(1_600_000_000, 0),
		mtime:     time.Unix(1_500_000_000, 0),
	}
	require.NoError(t, os.WriteFile(f.source, []byte("source"), 0o640))
	require.NoError(t, os.Chmod(f.source, 0o640))
	require.NoError(t, os.Chtimes(f.source, f.atime, f.mtime))
	require.NoError(t, os.WriteFile(f.dest, []byte("converted"), 0o600))
	return f
}

func (f statFixture) movement() *FileMovementData {
	return &FileMovementData{
		SourceData: SourceData{AbsPath: f.source, Basename: filepath.Base(f.source)},
		FileIn:     f.cacheFile,
		FileOut:    f.dest,
	}
}

func (f statFixture) results() *TaskResultData {
	return &TaskResultData{
		FinalCachePath:           f.cacheFile,
		TaskProcessingSuccess:    true,
		FileMoveProcessesSuccess: true,
		DestinationFiles:         []string{f.dest, filepath.Join(filepath.Dir(f.dest), "gone.mkv")},
		SourceData:               SourceData{AbsPath: f.source},
	}
}

func TestFileStats_Replicates(t *testing.T) {
	f := newStatFixture(t)
	p := build(t, IDFileStats, testEnv(newFakeProber()))
	ctx := context.Background()

	require.NoError(t, p.(FileMover).OnFileMovement(ctx, f.movement()))

	b, err := os.ReadFile(statDataPath(filepath.Dir(f.cacheFile), f.source))
	require.NoError(t, err)
	var sf statFile
	require.NoError(t, json.Unmarshal(b, &sf))
	require.NotNil(t, sf.Stat.Mode)
	assert.Equal(t, int64(0o640), *sf.Stat.Mode)
	require.NotNil(t, sf.Stat.Modify)
	assert.Equal(t, f.mtime.Unix(), *sf.Stat.Modify)

	require.NoError(t, p.(TaskResulter).OnTaskResults(ctx, f.results()))

	fi, err := os.Stat(f.dest)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o640), fi.Mode().Perm())
	assert.Equal(t, f.mtime.Unix(), fi.ModTime().Unix())
	assert.Equal(t, f.atime.Unix(), accessTime(fi).Unix())
	assert.NotEqual(t, fi.ModTime().Unix(), accessTime(fi).Unix(), "access time is replicated on its own")

	store, err := dirinfo.Open(filepath.Dir(f.dest))
	require.NoError(t, err)
	v, ok := store.Get(IDFileStats, "movie.mkv")
	require.True(t, ok)
	assert.Contains(t, v, `"modify":1500000000`)
	_, ok = store.Get(IDFileStats, "gone.mkv")
	assert.False(t, ok, "missing destinations are not recorded")
}

func TestFileStats_DisabledFieldsKeepDestination(t *testing.T) {
	f := newStatFixture(t)
	env := testEnv(newFakeProber())
	env.Settings.FileStats.UpdateMode = false
	env.Settings.FileStats.UpdateModify = false
	p := build(t, IDFileStats, env)
	ctx := context.Background()

	before, err := os.Stat(f.dest)
	require.NoError(t, err)

	require.NoError(t, p.(FileMover).OnFileMovement(ctx, f.movement()))
	b, err := os.ReadFile(statDataPath(filepath.Dir(f.cacheFile), f.source))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "mode")
	assert.NotContains(t, string(b), "modify")
	assert.Contains(t, string(b), "access")

	require.NoError(t, p.(TaskResulter).OnTaskResults(ctx, f.results()))
	after, err := os.Stat(f.dest)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), after.Mode().Perm())
	assert.Equal(t, before.ModTime().Unix(), after.ModTime().Unix())
}

func TestFileStats_Errors(t *testing.T) {
	f := newStatFixture(t)
	p := build(t, IDFileStats, testEnv(newFakeProber()))
	ctx := context.Background()

	assert.ErrorIs(t, p.(FileMover).OnFileMovement(ctx, &FileMovementData{FileIn: f.cacheFile}), ErrMissingSource)
	assert.ErrorIs(t, p.(TaskResulter).OnTaskResults(ctx, &TaskResultData{
		FinalCachePath:        f.cacheFile,
		TaskProcessingSuccess: true,
	}), ErrMissingSource)

	// Task results without a preceding file movement.
	assert.ErrorIs(t, p.(TaskResulter).OnTaskResults(ctx, f.results()), ErrMissingStatData)
}

func TestFileStats_FailedTaskSkipsReplication(t *testing.T) {
	f := newStatFixture(t)
	p := build(t, IDFileStats, testEnv(newFakeProber()))

	// No file movement ran, so there is no stat data to miss.
	data := f.results()
	data.TaskProcessingSuccess = false
	data.FileMoveProcessesSuccess = false
	require.NoError(t, p.(TaskResulter).OnTaskResults(context.Background(), data))

	fi, err := os.Stat(f.dest)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), fi.Mode().Perm())
	_, err = os.Stat(filepath.Join(filepath.Dir(f.dest), dirinfo.FileName))
	assert.True(t, os.IsNotExist(err))
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		bits uint32
		mode fs.FileMode
	}{
		{0o644, 0o644},
		{0o4755, 0o755 | fs.ModeSetuid},
		{0o2750, 0o750 | fs.ModeSetgid},
		{0o1777, 0o777 | fs.ModeSticky},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.mode, fileMode(tt.bits))
		assert.Equal(t, tt.bits, unixMode(tt.mode))
	}
	// File type bits from a raw st_mode are ignored.
	assert.Equal(t, fs.FileMode(0o644), fileMode(0o100644))
}
