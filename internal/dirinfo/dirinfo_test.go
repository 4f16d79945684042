package dirinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), s.Path())

	_, ok := s.Get("normalise_aac", "movie.mkv")
	assert.False(t, ok)

	// Nothing changed, so nothing is written.
	require.NoError(t, s.Save())
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"Movie (2020) [1080p].mkv",
		"Show - S01E01 #1; pilot.mkv",
		"odd=name.mp4",
	}

	s, err := Open(dir)
	require.NoError(t, err)
	for i, n := range names {
		s.Set("ffmpeg_file_error_checker", n, string(rune('a'+i)))
	}
	s.Set("normalise_aac", names[0], "loudnorm=I=-24.0:LRA=7.0:TP=-2.0")
	require.NoError(t, s.Save())

	again, err := Open(dir)
	require.NoError(t, err)
	for i, n := range names {
		v, ok := again.Get("ffmpeg_file_error_checker", n)
		require.True(t, ok, n)
		assert.Equal(t, string(rune('a'+i)), v, n)
	}
	v, ok := again.Get("normalise_aac", names[0])
	require.True(t, ok)
	assert.Equal(t, "loudnorm=I=-24.0:LRA=7.0:TP=-2.0", v)

	_, ok = again.Get("replicate_source_file_stats", names[0])
	assert.False(t, ok)
}

func TestKeysIgnoreCase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName),
		[]byte("[ffmpeg_file_error_checker]\nMovie.MKV = 1700000000.5\n"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)
	v, ok := s.Get("ffmpeg_file_error_checker", "movie.mkv")
	require.True(t, ok)
	assert.Equal(t, "1700000000.5", v)
}

func TestSave_PreservesOtherSections(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName),
		[]byte("[other_plugin]\nfile.mkv = keep\n"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)
	s.Set("normalise_aac", "file.mkv", "x")
	require.NoError(t, s.Save())

	again, err := Open(dir)
	require.NoError(t, err)
	v, ok := again.Get("other_plugin", "file.mkv")
	require.True(t, ok)
	assert.Equal(t, "keep", v)

	leftovers, err := filepath.Glob(filepath.Join(dir, FileName+".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
