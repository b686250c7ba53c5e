package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveAtomic_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewJSONCodec()

	err := SaveAtomic(dir, "state", codec, &sample{Name: "a", Count: 1})
	require.NoError(t, err)

	var got sample

	loadErr := LoadState(dir, "state", codec, &got)
	require.NoError(t, loadErr)
	assert.Equal(t, sample{Name: "a", Count: 1}, got)
}

func TestSaveAtomic_NoTempFileLeftBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewJSONCodec()

	require.NoError(t, SaveAtomic(dir, "state", codec, &sample{Name: "a"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestSaveAtomic_OverwritesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewJSONCodec()

	require.NoError(t, SaveAtomic(dir, "state", codec, &sample{Name: "a", Count: 1}))
	require.NoError(t, SaveAtomic(dir, "state", codec, &sample{Name: "b", Count: 2}))

	var got sample

	require.NoError(t, LoadState(dir, "state", codec, &got))
	assert.Equal(t, sample{Name: "b", Count: 2}, got)
}

func TestLoadState_MissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var got sample

	err := LoadState(dir, "missing", NewJSONCodec(), &got)
	assert.Error(t, err)
}

func TestQuarantine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "evolutions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	require.NoError(t, Quarantine(path))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), ".corrupt.")
}

func TestQuarantine_MissingFileIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := Quarantine(filepath.Join(dir, "absent.json"))
	assert.NoError(t, err)
}

func TestLock_FailsFastWhenHeld(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	unlock, err := Lock(dir)
	require.NoError(t, err)
	defer unlock.Release()

	_, secondErr := Lock(dir)
	assert.ErrorIs(t, secondErr, ErrLocked)
}

func TestLock_ReleaseThenReacquire(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	unlock, err := Lock(dir)
	require.NoError(t, err)
	require.NoError(t, unlock.Release())

	unlock2, err := Lock(dir)
	require.NoError(t, err)
	require.NoError(t, unlock2.Release())
}

func TestContentHash_Deterministic(t *testing.T) {
	t.Parallel()

	a := ContentHash("hello world")
	b := ContentHash("hello world")
	c := ContentHash("hello world!")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "src_app_main_py", SanitizePath("src/app/main.py"))
	assert.Equal(t, "a_b", SanitizePath(`a\b`))
}
