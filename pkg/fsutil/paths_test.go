package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempPattern(t *testing.T) {
	dst := filepath.Join("raw", "caf", "123.json")
	f, err := os.CreateTemp(t.TempDir(), TempPattern(dst))
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, IsTempFor(dst, filepath.Base(f.Name())), "temp name %s should match its destination", f.Name())
}

func TestIsTempFor(t *testing.T) {
	tests := []struct {
		name string
		dst  string
		file string
		want bool
	}{
		{name: "temp sibling", dst: "a/123.json", file: "123.json.4821.tmp", want: true},
		{name: "the destination itself", dst: "a/123.json", file: "123.json", want: false},
		{name: "other destination", dst: "a/123.json", file: "124.json.1.tmp", want: false},
		{name: "bare suffix", dst: "a/123.json", file: "123.json..tmp", want: false},
		{name: "not a temp", dst: "a/123.json", file: "123.json.bak", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTempFor(tt.dst, tt.file))
		})
	}
}

func TestRemoveTempSiblings(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "doc.json")

	require.NoError(t, os.WriteFile(dst, []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.json.111.tmp"), []byte(`{"par`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.json.222.tmp"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json.333.tmp"), nil, 0644))

	n, err := RemoveTempSiblings(dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.FileExists(t, dst)
	assert.FileExists(t, filepath.Join(dir, "other.json.333.tmp"))
	assert.NoFileExists(t, filepath.Join(dir, "doc.json.111.tmp"))
}

func TestRemoveTempSiblings_MissingDir(t *testing.T) {
	n, err := RemoveTempSiblings(filepath.Join(t.TempDir(), "absent", "doc.json"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnsureFileDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "c.json")

	require.NoError(t, EnsureFileDir(target))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
	assert.NoError(t, EnsureFileDir("bare.json"))
}
