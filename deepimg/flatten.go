package deepimg

import (
	"context"
	"fmt"
	"image"
	"slices"
)

// Flat is a flattened image. Pix holds the channel values of every pixel,
// interleaved in channel order, row by row.
type Flat struct {
	Rect     image.Rectangle
	Channels []string
	Pix      []float32
}

// NewFlat returns a zeroed flat image.
func NewFlat(r image.Rectangle, channels []string) *Flat {
	r = r.Canon()
	return &Flat{
		Rect:     r,
		Channels: slices.Clone(channels),
		Pix:      make([]float32, r.Dx()*r.Dy()*len(channels)),
	}
}

func (f *Flat) Width() int  { return f.Rect.Dx() }
func (f *Flat) Height() int { return f.Rect.Dy() }

// At returns the channel values at (x, y), or nil outside Rect. The slice
// aliases Pix.
func (f *Flat) At(x, y int) []float32 {
	if !image.Pt(x, y).In(f.Rect) {
		return nil
	}
	n := len(f.Channels)
	i := ((y-f.Rect.Min.Y)*f.Width() + (x - f.Rect.Min.X)) * n
	return f.Pix[i : i+n : i+n]
}

// Flatten composites every pixel of img front to back. Positions without
// samples flatten to zero. Scanlines are processed in parallel, so a pixel
// stored at more than one position must be sorted first (see Image.Freeze).
func Flatten(ctx context.Context, img *Image, opts Options) (*Flat, error) {
	flat := NewFlat(img.DataWindow, img.Channels)
	width := img.Width()
	stride := width * len(img.Channels)

	err := forEachRow(ctx, "flatten", img.Height(), opts, func(row int) error {
		out := flat.Pix[row*stride : (row+1)*stride]
		for x, p := range img.row(img.DataWindow.Min.Y + row) {
			if p == nil || p.NumSamples() == 0 {
				continue
			}
			n := len(img.Channels)
			if err := p.Composite(out[x*n : (x+1)*n]); err != nil {
				return fmt.Errorf("deepimg: flatten (%d, %d): %w", img.DataWindow.Min.X+x, img.DataWindow.Min.Y+row, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flat, nil
}
