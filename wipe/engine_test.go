package wipe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/pyre/wipe"
)

func writeTestFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestEffectivePasses(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{requested: 1, want: 1},
		{requested: 3, want: 3},
		{requested: 7, want: 7},
		{requested: 8, want: 7},
		{requested: 35, want: 7},
		{requested: 0, want: 1},
		{requested: -1, want: 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wipe.EffectivePasses(tt.requested), "requested=%d", tt.requested)
	}
}

func TestOverwriteDestroysFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "target.bin", 1000)

	engine := wipe.NewEngine()
	outcome, err := engine.Overwrite(path, 3, false)
	require.NoError(t, err)

	assert.Equal(t, path, outcome.Path)
	assert.Equal(t, int64(1000), outcome.Size)
	assert.Equal(t, 3, outcome.PassesCompleted)
	assert.True(t, outcome.Success)
	assert.NoFileExists(t, path)
}

func TestOverwriteCapsPassesAtCatalogSize(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "target.bin", 128)

	engine := wipe.NewEngine()
	outcome, err := engine.Overwrite(path, 35, false)
	require.NoError(t, err)

	assert.Equal(t, wipe.CatalogSize(), outcome.PassesCompleted)
	assert.Equal(t, 7, outcome.PassesCompleted)
	assert.NoFileExists(t, path)
}

func TestOverwriteWithVerify(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "target.bin", 4096)

	engine := wipe.NewEngine()
	outcome, err := engine.Overwrite(path, 7, true)
	require.NoError(t, err)
	assert.Equal(t, 7, outcome.PassesCompleted)
	assert.NoFileExists(t, path)
}

func TestOverwriteSpansChunkBoundaries(t *testing.T) {
	dir := t.TempDir()
	// File deliberately not a multiple of the chunk size.
	path := writeTestFile(t, dir, "target.bin", 100)

	engine := wipe.NewEngine(wipe.WithChunkSize(32))
	outcome, err := engine.Overwrite(path, 2, true)
	require.NoError(t, err)
	assert.Equal(t, int64(100), outcome.Size)
	assert.NoFileExists(t, path)
}

func TestOverwriteEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "empty.bin", 0)

	engine := wipe.NewEngine()
	outcome, err := engine.Overwrite(path, 3, true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), outcome.Size)
	assert.Equal(t, 3, outcome.PassesCompleted)
	assert.NoFileExists(t, path)
}

func TestOverwriteMissingFile(t *testing.T) {
	engine := wipe.NewEngine()
	outcome, err := engine.Overwrite(filepath.Join(t.TempDir(), "absent.bin"), 3, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, wipe.ErrWipeIO)
	assert.False(t, outcome.Success)
	assert.Zero(t, outcome.PassesCompleted)
}
