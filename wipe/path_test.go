package wipe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/pyre/wipe"
)

func TestValidatePath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		raw     string
		wantRel string
		wantErr bool
	}{
		{name: "simple relative", raw: "docs/report.txt", wantRel: filepath.Join("docs", "report.txt")},
		{name: "cleans redundant segments", raw: "docs//./report.txt", wantRel: filepath.Join("docs", "report.txt")},
		{name: "internal dotdot that stays inside", raw: "docs/../docs/report.txt", wantRel: filepath.Join("docs", "report.txt")},
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   ", wantErr: true},
		{name: "absolute", raw: "/etc/passwd", wantErr: true},
		{name: "parent traversal", raw: "../outside.txt", wantErr: true},
		{name: "nested traversal escaping base", raw: "docs/../../outside.txt", wantErr: true},
		{name: "bare dotdot", raw: "..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vp, err := wipe.ValidatePath(tt.raw, base)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, wipe.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRel, vp.Relative)
			assert.Equal(t, filepath.Join(base, tt.wantRel), vp.Full)
		})
	}
}

func TestValidatePathFullStaysInsideBase(t *testing.T) {
	base := t.TempDir()
	vp, err := wipe.ValidatePath("a/b/c.txt", base)
	require.NoError(t, err)

	rel, err := filepath.Rel(base, vp.Full)
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs(rel))
	assert.NotContains(t, rel, "..")
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	assert.True(t, wipe.Exists(path))
	assert.False(t, wipe.Exists(filepath.Join(dir, "absent.txt")))
}
