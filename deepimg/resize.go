package deepimg

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/chewxy/math32"

	"github.com/mrjoshuak/go-deepexr/deep"
)

// Filter selects the reconstruction filter used by Resize.
type Filter int

const (
	// Box weighs every input pixel under the footprint equally.
	Box Filter = iota
	// Tent weighs input pixels linearly by distance from the sample point.
	Tent
)

func (f Filter) String() string {
	switch f {
	case Box:
		return "box"
	case Tent:
		return "tent"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// ParseFilter returns the filter with the given name.
func ParseFilter(name string) (Filter, error) {
	switch strings.ToLower(name) {
	case "box":
		return Box, nil
	case "tent", "triangle":
		return Tent, nil
	}
	return 0, fmt.Errorf("deepimg: unknown filter %q", name)
}

// radius returns the filter support for the given input/output scale.
func (f Filter) radius(scale float32) float32 {
	scale = math32.Max(scale, 1)
	if f == Tent {
		return scale
	}
	return scale / 2
}

func (f Filter) weight(d, radius float32) float32 {
	if f == Tent {
		return math32.Max(1-math32.Abs(d)/radius, 0)
	}
	if d >= -radius && d < radius {
		return 1
	}
	return 0
}

// axisWeights holds the contributing input offsets and weights of one output
// column or row.
type axisWeights struct {
	first   int
	weights []float32
}

func computeAxis(f Filter, in, out int) []axisWeights {
	scale := float32(in) / float32(out)
	radius := f.radius(scale)
	axis := make([]axisWeights, out)
	for o := range axis {
		center := (float32(o)+0.5)*scale - 0.5
		lo := max(int(math32.Ceil(center-radius)), 0)
		hi := min(int(math32.Floor(center+radius)), in-1)
		aw := axisWeights{first: lo}
		for i := lo; i <= hi; i++ {
			aw.weights = append(aw.weights, f.weight(float32(i)-center, radius))
		}
		axis[o] = aw
	}
	return axis
}

type contributor struct {
	pixel  *deep.Pixel
	weight float32
}

// Resize resamples img to width x height deep pixels. For every output pixel
// the input pixels under the filter footprint are combined with deep.Average
// using normalized filter weights. The output pixel takes the sample depths
// of its heaviest contributor, the top-left one on ties. Input positions
// without samples do not contribute, and an output pixel with no
// contributors is left empty.
//
// The output data window starts at the input's minimum corner. img is
// frozen before any parallel work.
func Resize(ctx context.Context, img *Image, width, height int, filter Filter, opts Options) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	origin := img.DataWindow.Min
	out := New(image.Rectangle{Min: origin, Max: origin.Add(image.Pt(width, height))}, img.Channels)
	if img.Width() == 0 || img.Height() == 0 {
		return out, nil
	}

	img.Freeze()

	xs := computeAxis(filter, img.Width(), width)
	ys := computeAxis(filter, img.Height(), height)

	err := forEachRow(ctx, "resize", height, opts, func(oy int) error {
		var (
			contributors []contributor
			pixels       []*deep.Pixel
			weights      []float32
		)
		yw := ys[oy]
		for ox := 0; ox < width; ox++ {
			xw := xs[ox]
			contributors = contributors[:0]
			var total float32
			for j, wy := range yw.weights {
				for i, wx := range xw.weights {
					w := wx * wy
					p := img.At(origin.X+xw.first+i, origin.Y+yw.first+j)
					if w <= 0 || p == nil || p.NumSamples() == 0 {
						continue
					}
					contributors = append(contributors, contributor{p, w})
					total += w
				}
			}
			if total == 0 {
				continue
			}
			sort.SliceStable(contributors, func(a, b int) bool {
				return contributors[a].weight > contributors[b].weight
			})

			pixels, weights = pixels[:0], weights[:0]
			for _, c := range contributors {
				pixels = append(pixels, c.pixel)
				weights = append(weights, c.weight/total)
			}
			avg, err := deep.Average(pixels, weights)
			if err != nil {
				return fmt.Errorf("deepimg: resize (%d, %d): %w", ox, oy, err)
			}
			// Rows own disjoint slices of out.pixels.
			out.pixels[oy*width+ox] = avg
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
