package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove_File_SameFilesystem(t *testing.T) {
	tempDir := t.TempDir()

	srcFile := filepath.Join(tempDir, "source.json.123.tmp")
	dstFile := filepath.Join(tempDir, "nested", "destination.json")

	content := `{"ok":true}`
	require.NoError(t, os.WriteFile(srcFile, []byte(content), 0644))

	require.NoError(t, Move(srcFile, dstFile))

	moved, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, content, string(moved))

	_, err = os.Stat(srcFile)
	assert.True(t, os.IsNotExist(err))
}

func TestMove_ReplacesExistingDestination(t *testing.T) {
	tempDir := t.TempDir()
	srcFile := filepath.Join(tempDir, "new.tmp")
	dstFile := filepath.Join(tempDir, "doc.json")

	require.NoError(t, os.WriteFile(dstFile, []byte(`{"v":1}`), 0644))
	require.NoError(t, os.WriteFile(srcFile, []byte(`{"v":2}`), 0644))

	require.NoError(t, Move(srcFile, dstFile))

	got, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))
}

func TestMove_RejectsDirectory(t *testing.T) {
	tempDir := t.TempDir()
	srcDir := filepath.Join(tempDir, "dir")
	require.NoError(t, os.Mkdir(srcDir, 0755))

	err := Move(srcDir, filepath.Join(tempDir, "other"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestMove_SourceDoesNotExist(t *testing.T) {
	tempDir := t.TempDir()

	err := Move(filepath.Join(tempDir, "nonexistent.txt"), filepath.Join(tempDir, "destination.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat source")
}

func TestMove_InvalidPaths(t *testing.T) {
	err := Move("", "destination.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source and destination paths cannot be empty")

	err = Move("source.txt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source and destination paths cannot be empty")
}

func TestIsCrossFilesystemError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "regular error", err: errors.New("regular error"), want: false},
		{name: "EXDEV link error", err: &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}, want: true},
		{name: "other link error", err: &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.ENOENT}, want: false},
		{name: "message fallback", err: errors.New("invalid cross-device link"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCrossFilesystemError(tt.err))
		})
	}
}

func TestMoveFile_CopyFallback(t *testing.T) {
	tempDir := t.TempDir()
	srcFile := filepath.Join(tempDir, "src.tmp")
	dstFile := filepath.Join(tempDir, "dst.kml")

	require.NoError(t, os.WriteFile(srcFile, []byte("<kml/>"), 0640))
	require.NoError(t, os.WriteFile(dstFile, []byte("old"), 0644))

	require.NoError(t, moveFile(srcFile, dstFile, 0640))

	got, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, "<kml/>", string(got))

	_, err = os.Stat(srcFile)
	assert.True(t, os.IsNotExist(err))

	n, err := RemoveTempSiblings(dstFile)
	require.NoError(t, err)
	assert.Zero(t, n, "copy fallback must not leave temp siblings behind")
}

func TestCopy(t *testing.T) {
	tempDir := t.TempDir()

	srcFile := filepath.Join(tempDir, "source.txt")
	dstFile := filepath.Join(tempDir, "destination.txt")

	content := "Copy test content"
	require.NoError(t, os.WriteFile(srcFile, []byte(content), 0644))

	require.NoError(t, Copy(srcFile, dstFile))

	copied, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, content, string(copied))

	_, err = os.Stat(srcFile)
	require.NoError(t, err)
}
