package model

import (
	"errors"
	"net/url"
	"testing"

	pkgerrors "github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ContentKind
		wantErr bool
	}{
		{in: "structured", want: KindStructured},
		{in: "JSON", want: KindStructured},
		{in: " geometry ", want: KindGeometry},
		{in: "kml", want: KindGeometry},
		{in: "csv", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseContentKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, pkgerrors.ErrInvalidContentKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClass(t *testing.T) {
	assert.Equal(t, "fetch", ClassFetch.String())
	assert.Equal(t, "skip", ClassSkip.String())
	assert.Equal(t, "force-refresh", ClassForceRefresh.String())
	assert.Equal(t, "unknown", Class(42).String())

	assert.True(t, ClassFetch.NeedsFetch())
	assert.True(t, ClassForceRefresh.NeedsFetch())
	assert.False(t, ClassSkip.NeedsFetch())
}

func TestResourceTaskURL(t *testing.T) {
	u, err := url.Parse("https://portal.example/api/proposal?id=7")
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example/api/proposal?id=7", ResourceTask{Locator: u}.URL())
	assert.Equal(t, "", ResourceTask{}.URL())
}
