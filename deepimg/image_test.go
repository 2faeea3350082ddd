package deepimg

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-deepexr/deep"
)

var rgba = []string{"R", "G", "B", "A"}

func pixel(t *testing.T, samples ...[5]float32) *deep.Pixel {
	t.Helper()
	p := deep.NewRGBA(len(samples))
	for _, s := range samples {
		require.NoError(t, p.AddSample(s[0], s[1:]))
	}
	return p
}

func TestImageSetAt(t *testing.T) {
	img := New(image.Rect(10, 20, 14, 23), rgba)
	assert.Equal(t, 4, img.Width())
	assert.Equal(t, 3, img.Height())
	assert.Nil(t, img.At(10, 20))

	p := pixel(t, [5]float32{1, 0.1, 0.2, 0.3, 0.5})
	require.NoError(t, img.Set(13, 22, p))
	assert.Same(t, p, img.At(13, 22))
	assert.Equal(t, 1, img.SampleCount(13, 22))
	assert.Equal(t, 0, img.SampleCount(10, 20))
	assert.Nil(t, img.At(14, 22))

	err := img.Set(14, 22, p)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	err = img.Set(9, 20, p)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	err = img.Set(10, 20, deep.NewFromString("RGB", 0))
	assert.ErrorIs(t, err, ErrChannelMismatch)

	require.NoError(t, img.Set(13, 22, nil))
	assert.Nil(t, img.At(13, 22))
}

func TestImageCounts(t *testing.T) {
	img := New(image.Rect(0, 0, 2, 2), rgba)
	require.NoError(t, img.Set(0, 0, pixel(t, [5]float32{1, 0, 0, 0, 1})))
	require.NoError(t, img.Set(1, 1, pixel(t,
		[5]float32{3, 0, 0, 0, 1},
		[5]float32{2, 0, 0, 0, 1},
		[5]float32{1, 0, 0, 0, 1},
	)))
	assert.Equal(t, 4, img.TotalSamples())
	assert.Equal(t, 3, img.MaxSamples())

	img.Freeze()
	d, err := img.At(1, 1).Depth(0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), d)
}

func TestMerge(t *testing.T) {
	dw := image.Rect(0, 0, 2, 1)
	a := New(dw, rgba)
	b := New(dw, rgba)
	require.NoError(t, a.Set(0, 0, pixel(t, [5]float32{2, 1, 0, 0, 0.5})))
	require.NoError(t, b.Set(0, 0, pixel(t, [5]float32{1, 0, 1, 0, 0.5})))
	require.NoError(t, b.Set(1, 0, pixel(t, [5]float32{4, 0, 0, 1, 1})))

	m, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, m.SampleCount(0, 0))
	assert.Equal(t, 1, m.SampleCount(1, 0))
	assert.Equal(t, 1, a.SampleCount(0, 0), "inputs are not modified")
	assert.NotSame(t, b.At(1, 0), m.At(1, 0))

	first, err := m.At(0, 0).ChannelData(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 0.5}, first)
}

func TestMergeMismatch(t *testing.T) {
	a := New(image.Rect(0, 0, 2, 2), rgba)

	_, err := Merge(a, New(image.Rect(0, 0, 2, 3), rgba))
	assert.ErrorIs(t, err, ErrWindowMismatch)

	_, err = Merge(a, New(image.Rect(0, 0, 2, 2), []string{"R", "G", "B"}))
	assert.ErrorIs(t, err, ErrChannelMismatch)
}

func TestFlatten(t *testing.T) {
	img := New(image.Rect(-1, -1, 2, 1), rgba)
	require.NoError(t, img.Set(-1, -1, pixel(t,
		[5]float32{2, 0, 0, 1, 1},
		[5]float32{1, 0.5, 0, 0, 0.5},
	)))
	require.NoError(t, img.Set(1, 0, pixel(t, [5]float32{1, 0.25, 0.25, 0.25, 0.25})))
	require.NoError(t, img.Set(0, 0, deep.NewRGBA(0)))

	for _, workers := range []int{0, 1, 3} {
		flat, err := Flatten(context.Background(), img, Options{Workers: workers})
		require.NoError(t, err)
		assert.Equal(t, img.DataWindow, flat.Rect)
		assert.Equal(t, rgba, flat.Channels)
		assert.Len(t, flat.Pix, 3*2*4)

		assert.Equal(t, []float32{0.5, 0, 0.5, 1}, flat.At(-1, -1))
		assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, flat.At(1, 0))
		assert.Equal(t, []float32{0, 0, 0, 0}, flat.At(0, 0))
		assert.Equal(t, []float32{0, 0, 0, 0}, flat.At(0, -1))
		assert.Nil(t, flat.At(2, 0))
	}
}

func TestFlattenWithoutAlpha(t *testing.T) {
	img := New(image.Rect(0, 0, 1, 1), []string{"Y"})
	p := deep.New([]string{"Y"}, 2)
	require.NoError(t, p.AddSample(2, []float32{0.2}))
	require.NoError(t, p.AddSample(1, []float32{0.7}))
	require.NoError(t, img.Set(0, 0, p))

	flat, err := Flatten(context.Background(), img, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.7}, flat.Pix)
}

func TestFlattenCanceled(t *testing.T) {
	img := New(image.Rect(0, 0, 4, 4), rgba)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Flatten(ctx, img, Options{Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}
