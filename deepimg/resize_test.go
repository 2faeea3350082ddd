package deepimg

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp returns a w x h image where pixel (x, y) holds one sample at depth
// x+1 with R = x and A = 1.
func ramp(t *testing.T, w, h int) *Image {
	t.Helper()
	img := New(image.Rect(0, 0, w, h), rgba)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			require.NoError(t, img.Set(x, y, pixel(t, [5]float32{float32(x + 1), float32(x), 0, 0, 1})))
		}
	}
	return img
}

func TestResizeIdentity(t *testing.T) {
	img := ramp(t, 3, 2)
	for _, f := range []Filter{Box, Tent} {
		out, err := Resize(context.Background(), img, 3, 2, f, Options{})
		require.NoError(t, err)
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				p := out.At(x, y)
				require.NotNil(t, p, "%v (%d, %d)", f, x, y)
				d, err := p.Depth(0)
				require.NoError(t, err)
				assert.Equal(t, float32(x+1), d)
				data, err := p.ChannelData(0)
				require.NoError(t, err)
				assert.InDelta(t, float32(x), data[0], 1e-6)
			}
		}
	}
}

func TestResizeBoxDownsample(t *testing.T) {
	img := ramp(t, 4, 4)
	out, err := Resize(context.Background(), img, 2, 2, Box, Options{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.DataWindow)

	tests := []struct {
		x     int
		depth float32
		red   float32
	}{
		{0, 1, 0.5},
		{1, 3, 2.5},
	}
	for _, tt := range tests {
		for y := 0; y < 2; y++ {
			p := out.At(tt.x, y)
			require.NotNil(t, p)
			require.Equal(t, 1, p.NumSamples())
			d, _ := p.Depth(0)
			data, _ := p.ChannelData(0)
			assert.Equal(t, tt.depth, d)
			assert.InDelta(t, tt.red, data[0], 1e-6)
			assert.InDelta(t, 1, data[3], 1e-6)
		}
	}
}

func TestResizeSparse(t *testing.T) {
	img := New(image.Rect(0, 0, 4, 4), rgba)
	require.NoError(t, img.Set(0, 0, pixel(t, [5]float32{5, 0.2, 0.4, 0.6, 0.8})))

	out, err := Resize(context.Background(), img, 2, 2, Box, Options{})
	require.NoError(t, err)
	assert.Nil(t, out.At(1, 1))

	p := out.At(0, 0)
	require.NotNil(t, p)
	data, err := p.ChannelData(0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.2, 0.4, 0.6, 0.8}, data, 1e-6)
}

func TestResizeUpsample(t *testing.T) {
	img := ramp(t, 2, 1)
	out, err := Resize(context.Background(), img, 4, 1, Box, Options{})
	require.NoError(t, err)
	for x, want := range []float32{0, 0, 1, 1} {
		p := out.At(x, 0)
		require.NotNil(t, p)
		data, _ := p.ChannelData(0)
		assert.InDelta(t, want, data[0], 1e-6, "x=%d", x)
	}
}

func TestResizeInvalid(t *testing.T) {
	img := ramp(t, 2, 2)
	_, err := Resize(context.Background(), img, 0, 2, Box, Options{})
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("Box")
	require.NoError(t, err)
	assert.Equal(t, Box, f)

	f, err = ParseFilter("tent")
	require.NoError(t, err)
	assert.Equal(t, Tent, f)
	assert.Equal(t, "tent", f.String())

	_, err = ParseFilter("lanczos")
	assert.Error(t, err)
}
