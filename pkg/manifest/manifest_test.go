package manifest

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	pkgerrors "github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantDests    []string
		wantWarnings []int
	}{
		{
			name:      "well formed lines keep order",
			input:     "https://p.example/a\traw/a.json\nhttps://p.example/b\traw/b.json\n",
			wantDests: []string{"raw/a.json", "raw/b.json"},
		},
		{
			name:      "blank lines and comments are ignored",
			input:     "# header\n\n   \nhttps://p.example/a\traw/a.json\n#https://p.example/x\traw/x.json\n",
			wantDests: []string{"raw/a.json"},
		},
		{
			name:         "three fields is malformed",
			input:        "https://p.example/a\traw/a.json\nhttps://p.example/b\traw/b.json\textra\n",
			wantDests:    []string{"raw/a.json"},
			wantWarnings: []int{2},
		},
		{
			name:         "space separated is malformed",
			input:        "https://p.example/a raw/a.json\n",
			wantWarnings: []int{1},
		},
		{
			name:         "relative locator is malformed",
			input:        "/api/a\traw/a.json\nftp://p.example/a\traw/a.json\n",
			wantWarnings: []int{1, 2},
		},
		{
			name:      "fields are trimmed",
			input:     "  https://p.example/a \t raw/a.json  \r\n",
			wantDests: []string{"raw/a.json"},
		},
		{
			name:      "duplicate destinations are kept",
			input:     "https://p.example/a\tout.json\nhttps://p.example/b\tout.json\n",
			wantDests: []string{"out.json", "out.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Read(strings.NewReader(tt.input), model.KindStructured)
			require.NoError(t, err)

			var dests []string
			for _, task := range res.Tasks {
				dests = append(dests, task.Destination)
				assert.Equal(t, model.KindStructured, task.Kind)
			}
			assert.Equal(t, tt.wantDests, dests)

			var lines []int
			for _, w := range res.Warnings {
				lines = append(lines, w.Line)
			}
			assert.Equal(t, tt.wantWarnings, lines)
		})
	}
}

func TestRead_ToleratesMalformedLineAndLogsWarning(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.SetTestOutput(buf)
	defer logger.UnsetTestOutput()
	logger.InitLogger("info", logger.FormatText)

	input := "https://p.example/ok\traw/ok.json\nhttps://p.example/bad\traw/bad.json\tthird\n"
	res, err := Read(strings.NewReader(input), model.KindGeometry)
	require.NoError(t, err)

	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "https://p.example/ok", res.Tasks[0].URL())
	assert.Equal(t, model.KindGeometry, res.Tasks[0].Kind)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].String(), "line 2")
	assert.Equal(t, 1, strings.Count(buf.String(), "Skipping malformed manifest line"))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	body := "https://p.example/a\traw/a.kml\n"

	plain := filepath.Join(dir, "urls.tsv")
	require.NoError(t, os.WriteFile(plain, []byte(body), 0644))

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	compressed := filepath.Join(dir, "urls.tsv.gz")
	require.NoError(t, os.WriteFile(compressed, gz.Bytes(), 0644))

	for _, path := range []string{plain, compressed} {
		res, err := ReadFile(context.Background(), path, model.KindGeometry)
		require.NoError(t, err, path)
		require.Len(t, res.Tasks, 1)
		assert.Equal(t, "raw/a.kml", res.Tasks[0].Destination)
	}
}

func TestReadFile_Unreadable(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.tsv"), model.KindStructured)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrManifestUnreadable))
}
