package deep

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"

	"github.com/chewxy/math32"
)

// Deep pixel errors
var (
	ErrIndexOutOfRange = errors.New("deep: sample index out of range")
	ErrInvalidArgument = errors.New("deep: invalid argument")
	ErrChannelCount    = errors.New("deep: channel count mismatch")
	ErrNoSamples       = errors.New("deep: pixel has no samples")
)

// NoChannel is returned by ChannelIndex when the channel does not exist.
const NoChannel = -1

// AlphaChannel is the channel name Composite treats as coverage.
const AlphaChannel = "A"

// IndexError reports an accessor called with a sample index that does not
// exist. It unwraps to ErrIndexOutOfRange.
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("deep: %s: depth index %d does not exist (%d samples)", e.Op, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// Pixel holds the depth samples of one pixel.
//
// Samples live in a flat store of records laid out as
// [depth, c0, c1, ..., cN-1]. The order index holds the store offset of every
// live record. While unsorted it is a max-heap on depth; once sorted it is
// the ascending depth order. Removing a sample only drops its offset from the
// order index, the record itself stays in the store until the pixel is
// discarded.
type Pixel struct {
	channels []string
	samples  []float32
	order    []int
	sorted   bool
}

// New creates an empty pixel with the given channel layout. reserve is a
// capacity hint for the expected number of samples.
func New(channels []string, reserve int) *Pixel {
	if reserve < 0 {
		reserve = 0
	}
	return &Pixel{
		channels: slices.Clone(channels),
		samples:  make([]float32, 0, reserve*(1+len(channels))),
		order:    make([]int, 0, reserve),
	}
}

// NewFromString creates an empty pixel whose channel names are the
// individual characters of channels, so "RGBA" yields R, G, B and A.
func NewFromString(channels string, reserve int) *Pixel {
	names := make([]string, 0, len(channels))
	for _, r := range channels {
		names = append(names, string(r))
	}
	return New(names, reserve)
}

// NewRGBA creates an empty pixel with the R, G, B, A layout.
func NewRGBA(reserve int) *Pixel {
	return NewFromString("RGBA", reserve)
}

// Clone returns a deep copy of p. The copy is built by merging p into an
// empty pixel with the same layout, so its samples start out unsorted.
func (p *Pixel) Clone() *Pixel {
	c := New(p.channels, p.NumSamples())
	// Channel counts match by construction.
	_ = c.Merge(p)
	return c
}

// NumSamples returns the number of live samples.
func (p *Pixel) NumSamples() int {
	return len(p.order)
}

// Len is an alias for NumSamples.
func (p *Pixel) Len() int {
	return len(p.order)
}

// NumChannels returns the number of channels every sample carries.
func (p *Pixel) NumChannels() int {
	return len(p.channels)
}

// ChannelIndex returns the position of the named channel within each
// sample, or NoChannel.
func (p *Pixel) ChannelIndex(name string) int {
	for i, c := range p.channels {
		if c == name {
			return i
		}
	}
	return NoChannel
}

// ChannelNames returns a copy of the channel layout.
func (p *Pixel) ChannelNames() []string {
	return slices.Clone(p.channels)
}

// Garbage returns the number of removed records still held by the backing
// store.
func (p *Pixel) Garbage() int {
	return len(p.samples)/p.stride() - len(p.order)
}

func (p *Pixel) stride() int {
	return 1 + len(p.channels)
}

// Min returns the smallest sample depth, or 0 for an empty pixel.
func (p *Pixel) Min() float32 {
	if len(p.order) == 0 {
		return 0
	}
	p.Sort()
	return p.samples[p.order[0]]
}

// Max returns the largest sample depth, or 0 for an empty pixel.
func (p *Pixel) Max() float32 {
	if len(p.order) == 0 {
		return 0
	}
	p.Sort()
	return p.samples[p.order[len(p.order)-1]]
}

// Range returns Min and Max.
func (p *Pixel) Range() (float32, float32) {
	return p.Min(), p.Max()
}

func (p *Pixel) checkIndex(op string, i int) error {
	if i < 0 || i >= len(p.order) {
		return &IndexError{Op: op, Index: i, Len: len(p.order)}
	}
	return nil
}

// Depth returns the depth of the i-th sample in ascending depth order.
func (p *Pixel) Depth(i int) (float32, error) {
	if err := p.checkIndex("Depth", i); err != nil {
		return 0, err
	}
	p.Sort()
	return p.samples[p.order[i]], nil
}

// SetDepth moves the i-th sample (ascending depth order) to a new depth.
// Indices obtained before the call are invalidated.
func (p *Pixel) SetDepth(i int, depth float32) error {
	if err := p.checkIndex("SetDepth", i); err != nil {
		return err
	}
	p.Sort()
	p.samples[p.order[i]] = depth

	// A changed key can break the heap property anywhere.
	heap.Init(p.heap())
	p.sorted = false
	return nil
}

// AddSample appends a sample. data must hold exactly one value per channel,
// in channel order; it is copied.
func (p *Pixel) AddSample(depth float32, data []float32) error {
	if len(data) != len(p.channels) {
		return fmt.Errorf("%w: AddSample got %d values for %d channels", ErrChannelCount, len(data), len(p.channels))
	}

	offset := len(p.samples)
	p.samples = append(p.samples, depth)
	p.samples = append(p.samples, data...)

	h := p.heap()
	if p.sorted {
		// An ascending array is not a max-heap.
		heap.Init(h)
	}
	heap.Push(h, offset)
	p.sorted = false
	return nil
}

// RemoveSample removes the i-th sample in ascending depth order. The backing
// store is not compacted.
func (p *Pixel) RemoveSample(i int) error {
	if err := p.checkIndex("RemoveSample", i); err != nil {
		return err
	}
	p.Sort()
	p.order = slices.Delete(p.order, i, i+1)
	return nil
}

// ChannelData returns the channel values of the i-th sample in ascending
// depth order. The returned slice aliases the pixel's storage: writing to it
// updates the sample. It stays valid until the next AddSample or Merge.
func (p *Pixel) ChannelData(i int) ([]float32, error) {
	if err := p.checkIndex("ChannelData", i); err != nil {
		return nil, err
	}
	p.Sort()
	return p.data(i), nil
}

// SetChannelData overwrites the channel values of the i-th sample.
func (p *Pixel) SetChannelData(i int, data []float32) error {
	if err := p.checkIndex("SetChannelData", i); err != nil {
		return err
	}
	if len(data) != len(p.channels) {
		return fmt.Errorf("%w: SetChannelData got %d values for %d channels", ErrChannelCount, len(data), len(p.channels))
	}
	p.Sort()
	copy(p.data(i), data)
	return nil
}

// data returns the channel block of the i-th sorted sample. p must be sorted.
func (p *Pixel) data(i int) []float32 {
	start := p.order[i] + 1
	end := start + len(p.channels)
	return p.samples[start:end:end]
}

// depth returns the depth of the i-th sorted sample. p must be sorted.
func (p *Pixel) depth(i int) float32 {
	return p.samples[p.order[i]]
}

// InterpolatedChannelData writes the channel values at depth into result,
// which must hold at least NumChannels values.
//
// A depth at or in front of the first sample yields the first sample's values
// and a depth at or behind the last sample yields the last sample's values;
// nothing is extrapolated. Between samples the values are linearly
// interpolated from the two neighbours.
func (p *Pixel) InterpolatedChannelData(depth float32, result []float32) error {
	n := len(p.order)
	if n == 0 {
		return fmt.Errorf("%w: cannot interpolate", ErrNoSamples)
	}
	if len(result) < len(p.channels) {
		return fmt.Errorf("%w: result holds %d values for %d channels", ErrChannelCount, len(result), len(p.channels))
	}
	p.Sort()

	i := 0
	for ; i < n; i++ {
		if p.depth(i) > depth {
			break
		}
	}

	switch i {
	case 0:
		copy(result, p.data(0))
	case n:
		copy(result, p.data(n-1))
	default:
		prevDepth, nextDepth := p.depth(i-1), p.depth(i)
		t := (depth - prevDepth) / (nextDepth - prevDepth)
		prev, next := p.data(i-1), p.data(i)
		for c := range prev {
			result[c] = lerp(prev[c], next[c], t)
		}
	}
	return nil
}

func lerp(a, b, t float32) float32 {
	return a + t*(b-a)
}

// Merge adds every sample of other to p. It is a union of samples; depths
// are kept as they are, coincident samples included.
func (p *Pixel) Merge(other *Pixel) error {
	if other.NumChannels() != p.NumChannels() {
		return fmt.Errorf("%w: cannot merge %d channels into %d", ErrChannelCount, other.NumChannels(), p.NumChannels())
	}
	n := other.NumSamples()
	if n == 0 {
		return nil
	}
	if other == p {
		other = p.Clone()
	}
	p.order = slices.Grow(p.order, n)
	p.samples = slices.Grow(p.samples, n*p.stride())

	other.Sort()
	for i := 0; i < n; i++ {
		if err := p.AddSample(other.depth(i), other.data(i)); err != nil {
			return err
		}
	}
	return nil
}

// Composite flattens the pixel into result, which must hold at least
// NumChannels values.
//
// With an "A" channel the samples are accumulated front to back:
// result[c] += sample[c] * alpha, where alpha is the coverage still
// unoccluded after the previous samples, max(1 - result[A], 0). Accumulation
// stops as soon as result[A] reaches 1, so samples behind full occlusion
// contribute nothing. An empty pixel composites to zero.
//
// Without an "A" channel there is no coverage to accumulate and the values
// of the front-most sample are returned unchanged.
func (p *Pixel) Composite(result []float32) error {
	numChannels := len(p.channels)
	if len(result) < numChannels {
		return fmt.Errorf("%w: result holds %d values for %d channels", ErrChannelCount, len(result), numChannels)
	}

	alphaChannel := p.ChannelIndex(AlphaChannel)
	if alphaChannel == NoChannel {
		return p.compositeFront(result)
	}

	p.Sort()
	clear(result[:numChannels])

	alpha := float32(1)
	for i := 0; i < len(p.order) && result[alphaChannel] < 1; i++ {
		for c, v := range p.data(i) {
			result[c] += v * alpha
		}
		alpha = math32.Max(1-result[alphaChannel], 0)
	}
	return nil
}

// compositeFront is the Composite fallback for layouts without alpha.
func (p *Pixel) compositeFront(result []float32) error {
	if len(p.order) == 0 {
		return fmt.Errorf("%w: cannot composite without an %q channel", ErrNoSamples, AlphaChannel)
	}
	p.Sort()
	copy(result, p.data(0))
	return nil
}

// Average resamples pixels onto the depths of pixels[0] and returns their
// weighted sum. For every depth d of the first pixel the result holds
// sum(weights[k] * pixels[k] interpolated at d).
//
// pixels and weights must be non-empty and of equal length, and all pixels
// must have the same number of channels. Channel names are not compared; the
// result takes the names of the first pixel.
func Average(pixels []*Pixel, weights []float32) (*Pixel, error) {
	if len(pixels) == 0 || len(pixels) != len(weights) {
		return nil, fmt.Errorf("%w: there must be one weight per pixel (%d pixels, %d weights)", ErrInvalidArgument, len(pixels), len(weights))
	}
	for k, px := range pixels {
		if px == nil {
			return nil, fmt.Errorf("%w: pixel %d is nil", ErrInvalidArgument, k)
		}
	}
	first := pixels[0]
	numChannels := first.NumChannels()
	for k, px := range pixels {
		if px.NumChannels() != numChannels {
			return nil, fmt.Errorf("%w: pixel %d has %d channels, want %d", ErrChannelCount, k, px.NumChannels(), numChannels)
		}
	}

	numSamples := first.NumSamples()
	result := New(first.channels, numSamples)
	if numSamples == 0 {
		return result, nil
	}

	average := make([]float32, numChannels)
	current := make([]float32, numChannels)

	first.Sort()
	for i := 0; i < numSamples; i++ {
		clear(average)
		depth := first.depth(i)

		for k, px := range pixels {
			if err := px.InterpolatedChannelData(depth, current); err != nil {
				return nil, fmt.Errorf("deep: average pixel %d: %w", k, err)
			}
			for c := range average {
				average[c] += weights[k] * current[c]
			}
		}

		if err := result.AddSample(depth, average); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Sort puts the order index into ascending depth order if it is not
// already. Every ordering-dependent accessor calls it. Once sorted, reads
// do not modify the pixel until the next write.
func (p *Pixel) Sort() {
	if p.sorted {
		return
	}
	h := p.heap()
	for h.n > 1 {
		h.Swap(0, h.n-1)
		h.n--
		heap.Fix(h, 0)
	}
	p.sorted = true
}

// heap returns a heap.Interface view of the order index covering all
// entries.
func (p *Pixel) heap() *depthHeap {
	return &depthHeap{p: p, n: len(p.order)}
}

// depthHeap is a max-heap on depth over p.order[:n]. Sorting pops the
// deepest entry to the end of the shrinking heap, which leaves the order
// index ascending.
type depthHeap struct {
	p *Pixel
	n int
}

func (h *depthHeap) Len() int { return h.n }

func (h *depthHeap) Less(i, j int) bool {
	s := h.p.samples
	return s[h.p.order[i]] > s[h.p.order[j]]
}

func (h *depthHeap) Swap(i, j int) {
	o := h.p.order
	o[i], o[j] = o[j], o[i]
}

func (h *depthHeap) Push(x any) {
	h.p.order = append(h.p.order, x.(int))
	h.n++
}

func (h *depthHeap) Pop() any {
	h.n--
	v := h.p.order[h.n]
	h.p.order = h.p.order[:h.n]
	return v
}
