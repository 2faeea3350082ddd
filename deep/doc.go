// Package deep provides the deep pixel: a sparse, depth-indexed set of
// samples for a single image pixel, where every sample carries one float32
// value per channel of a fixed channel layout.
//
// A Pixel keeps its samples in an append-only store and orders them lazily.
// Insertion pushes onto a binary heap; the heap is sorted into ascending
// depth order only when an ordering-dependent read happens (Min, Max, Depth,
// ChannelData, InterpolatedChannelData, Composite and friends). Indices
// passed to accessors always refer to ascending depth order.
//
// Typical use when flattening a deep image:
//
//	p := deep.NewFromString("RGBA", 2)
//	p.AddSample(2, []float32{0.5, 0.5, 0.5, 0.5})
//	p.AddSample(1, []float32{0.25, 0.5, 0.75, 0.25})
//
//	rgba := make([]float32, p.NumChannels())
//	if err := p.Composite(rgba); err != nil {
//		return err
//	}
//
// A Pixel is not safe for concurrent use. Even read accessors may sort the
// order index, so a pixel shared between goroutines must be sorted (see
// Pixel.Sort) and no longer written before it is handed out.
package deep
