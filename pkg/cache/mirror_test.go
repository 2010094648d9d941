package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glorpus-work/fetchmirror/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepTemp(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "1001.json")
	writeFile(t, dir, "1001.json.12345.tmp", []byte("partial"))
	writeFile(t, dir, "1001.json.999.tmp", []byte("partial"))
	writeFile(t, dir, "1002.json.1.tmp", []byte("other"))
	writeFile(t, dir, "1001.json", []byte(`{}`))

	assert.Equal(t, 2, SweepTemp(dest))
	assert.FileExists(t, dest)
	assert.FileExists(t, filepath.Join(dir, "1002.json.1.tmp"))
	assert.Equal(t, 0, SweepTemp(dest))
	assert.Equal(t, 0, SweepTemp(filepath.Join(dir, "missing", "x.json")))
}

func TestGetInfoAndClean(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator(nil)

	valid := writeFile(t, dir, "a.json", []byte(`{"ok": true}`))
	invalid := writeFile(t, dir, "b.json", []byte(`<html>`))
	missing := filepath.Join(dir, "c.json")
	writeFile(t, dir, "c.json.42.tmp", []byte("12345"))

	tasks := []model.ResourceTask{
		{Destination: valid, Kind: model.KindStructured},
		{Destination: invalid, Kind: model.KindStructured},
		{Destination: missing, Kind: model.KindStructured},
		{Destination: valid, Kind: model.KindStructured},
	}

	info := v.GetInfo(tasks)
	assert.Equal(t, &Info{Artifacts: 2, Valid: 1, Invalid: 1, Missing: 1, TotalSize: 18, TempFiles: 1}, info)

	res, err := v.Clean(tasks, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TempFiles)
	assert.Equal(t, int64(5), res.Freed)
	assert.FileExists(t, invalid)

	res, err = v.Clean(tasks, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, int64(6), res.Freed)
	_, err = os.Stat(invalid)
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, valid)
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KB",
		1536:        "1.5 KB",
		1024 * 1024: "1.0 MB",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatBytes(in))
	}
}
