// Package deepimg holds deep images: a grid of deep pixels over a data
// window, with flattening, merging and resampling built on package deep.
package deepimg

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/mrjoshuak/go-deepexr/deep"
)

var (
	ErrOutOfBounds     = errors.New("deepimg: coordinates outside the data window")
	ErrChannelMismatch = errors.New("deepimg: channel layout mismatch")
	ErrWindowMismatch  = errors.New("deepimg: data window mismatch")
	ErrInvalidSize     = errors.New("deepimg: invalid size")
)

// Image is a deep image. Every position in the data window holds a pixel or
// nil for no samples. All pixels share the image's channel layout.
type Image struct {
	// DataWindow is the pixel area covered by the image. Max is exclusive.
	DataWindow image.Rectangle
	Channels   []string

	pixels []*deep.Pixel
}

// New returns an empty image.
func New(dataWindow image.Rectangle, channels []string) *Image {
	dataWindow = dataWindow.Canon()
	return &Image{
		DataWindow: dataWindow,
		Channels:   slices.Clone(channels),
		pixels:     make([]*deep.Pixel, dataWindow.Dx()*dataWindow.Dy()),
	}
}

func (m *Image) Width() int  { return m.DataWindow.Dx() }
func (m *Image) Height() int { return m.DataWindow.Dy() }

func (m *Image) offset(x, y int) (int, bool) {
	if !image.Pt(x, y).In(m.DataWindow) {
		return 0, false
	}
	return (y-m.DataWindow.Min.Y)*m.Width() + (x - m.DataWindow.Min.X), true
}

// At returns the pixel at (x, y), or nil when the position is empty or
// outside the data window.
func (m *Image) At(x, y int) *deep.Pixel {
	i, ok := m.offset(x, y)
	if !ok {
		return nil
	}
	return m.pixels[i]
}

// Set stores p at (x, y). A nil p clears the position. The pixel's channel
// names must equal the image's.
func (m *Image) Set(x, y int, p *deep.Pixel) error {
	i, ok := m.offset(x, y)
	if !ok {
		return fmt.Errorf("%w: (%d, %d) not in %v", ErrOutOfBounds, x, y, m.DataWindow)
	}
	if p != nil && !slices.Equal(p.ChannelNames(), m.Channels) {
		return fmt.Errorf("%w: pixel has %v, image has %v", ErrChannelMismatch, p.ChannelNames(), m.Channels)
	}
	m.pixels[i] = p
	return nil
}

// SampleCount returns the number of samples at (x, y).
func (m *Image) SampleCount(x, y int) int {
	if p := m.At(x, y); p != nil {
		return p.NumSamples()
	}
	return 0
}

// TotalSamples returns the number of samples in the image.
func (m *Image) TotalSamples() int {
	n := 0
	for _, p := range m.pixels {
		if p != nil {
			n += p.NumSamples()
		}
	}
	return n
}

// MaxSamples returns the largest per-pixel sample count.
func (m *Image) MaxSamples() int {
	n := 0
	for _, p := range m.pixels {
		if p != nil {
			n = max(n, p.NumSamples())
		}
	}
	return n
}

// Freeze sorts every pixel. Afterwards the image may be read from many
// goroutines as long as nobody writes to it.
func (m *Image) Freeze() {
	for _, p := range m.pixels {
		if p != nil {
			p.Sort()
		}
	}
}

// row returns the pixels of scanline y.
func (m *Image) row(y int) []*deep.Pixel {
	start := (y - m.DataWindow.Min.Y) * m.Width()
	return m.pixels[start : start+m.Width()]
}

// Merge returns a new image whose pixels are the deep merge of the pixels
// of a and b at the same position. Both images must have the same data
// window and channel layout. The inputs are not modified.
func Merge(a, b *Image) (*Image, error) {
	if a.DataWindow != b.DataWindow {
		return nil, fmt.Errorf("%w: %v and %v", ErrWindowMismatch, a.DataWindow, b.DataWindow)
	}
	if !slices.Equal(a.Channels, b.Channels) {
		return nil, fmt.Errorf("%w: %v and %v", ErrChannelMismatch, a.Channels, b.Channels)
	}

	out := New(a.DataWindow, a.Channels)
	for i, pa := range a.pixels {
		pb := b.pixels[i]
		switch {
		case pa == nil && pb == nil:
			continue
		case pa == nil:
			out.pixels[i] = pb.Clone()
		default:
			merged := pa.Clone()
			if pb != nil {
				if err := merged.Merge(pb); err != nil {
					return nil, err
				}
			}
			out.pixels[i] = merged
		}
	}
	return out, nil
}
