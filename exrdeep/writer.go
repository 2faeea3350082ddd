package exrdeep

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"slices"

	"github.com/mrjoshuak/go-deepexr/deep"
	"github.com/mrjoshuak/go-deepexr/deepimg"
	"github.com/mrjoshuak/go-deepexr/internal/xdr"
)

var (
	ErrScanlineWritten = errors.New("exrdeep: scanline already written")
	ErrOutOfBounds     = errors.New("exrdeep: pixel outside the image")
	ErrClosed          = errors.New("exrdeep: writer is closed")
)

// WriterOptions describes a deep scanline file to create.
type WriterOptions struct {
	// Channels are the pixel channels to store, looked up by name in every
	// written pixel. The depth channel is added automatically.
	Channels []string
	// Resolution is the image size. Data and display window both span
	// (0, 0) to Resolution minus one.
	Resolution image.Point
	// HalfChannels are stored as 16-bit floats, every other channel as
	// 32-bit floats. Depth is always a 32-bit float.
	HalfChannels []string
	// Compression must be CompressionNone, CompressionRLE or
	// CompressionZIPS.
	Compression Compression

	WorldToNDC    *M44f
	WorldToCamera *M44f
}

// DefaultWriterOptions returns RGBA channels stored as halves with ZIPS
// compression.
func DefaultWriterOptions(width, height int) WriterOptions {
	return WriterOptions{
		Channels:     []string{"R", "G", "B", "A"},
		Resolution:   image.Pt(width, height),
		HalfChannels: []string{"R", "G", "B", "A"},
		Compression:  CompressionZIPS,
	}
}

// Writer writes deep pixels to a deep scanline file. Scanlines are written
// in increasing y order: writing a pixel on a later scanline finalizes
// every scanline before it. A Writer is not safe for concurrent use.
type Writer struct {
	w      io.WriteSeeker
	closer io.Closer

	chans       []Channel
	depth       int
	compression Compression
	dataWindow  Box2i

	base    int64
	pos     int64
	layout  headerLayout
	offsets []uint64

	current    int
	pending    []*scanlinePixel
	maxSamples int
	closed     bool
}

// scanlinePixel holds the buffered samples of one pixel, per file channel.
type scanlinePixel struct {
	values [][]float32
}

// Create creates the file at path and returns a Writer for it.
func Create(path string, opts WriterOptions) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the header and an empty offset table to w. The offset
// table and the maxSamplesPerPixel attribute are filled in by Close.
func NewWriter(w io.WriteSeeker, opts WriterOptions) (*Writer, error) {
	if len(opts.Channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrUnsupportedChannel)
	}
	if opts.Resolution.X <= 0 || opts.Resolution.Y <= 0 {
		return nil, fmt.Errorf("%w: resolution %v", ErrInvalidAttribute, opts.Resolution)
	}
	switch opts.Compression {
	case CompressionNone, CompressionRLE, CompressionZIPS:
	default:
		return nil, fmt.Errorf("%w: %v is not available for writing", ErrUnsupportedCompression, opts.Compression)
	}

	chans := make([]Channel, 0, len(opts.Channels)+1)
	for _, name := range opts.Channels {
		if name == DepthChannel {
			return nil, fmt.Errorf("%w: %s is reserved for depth", ErrUnsupportedChannel, name)
		}
		if slices.ContainsFunc(chans, func(c Channel) bool { return c.Name == name }) {
			return nil, fmt.Errorf("%w: duplicate channel %s", ErrUnsupportedChannel, name)
		}
		t := PixelTypeFloat
		if slices.Contains(opts.HalfChannels, name) {
			t = PixelTypeHalf
		}
		chans = append(chans, Channel{Name: name, Type: t, XSampling: 1, YSampling: 1})
	}
	chans = append(chans, Channel{Name: DepthChannel, Type: PixelTypeFloat, XSampling: 1, YSampling: 1})
	sortChannels(chans)

	dw := BoxFromRect(image.Rectangle{Max: opts.Resolution})
	chunks := dw.Height()

	h := newScanlineHeader(chans, dw, dw, opts.Compression)
	h.Set(&Attribute{Name: "type", Type: AttrTypeString, Value: typeDeepScanline})
	h.Set(&Attribute{Name: "version", Type: AttrTypeInt, Value: int32(deepVersion)})
	h.Set(&Attribute{Name: "chunkCount", Type: AttrTypeInt, Value: int32(chunks)})
	h.Set(&Attribute{Name: "maxSamplesPerPixel", Type: AttrTypeInt, Value: int32(0)})
	if opts.WorldToNDC != nil {
		h.Set(&Attribute{Name: "worldToNDC", Type: AttrTypeM44f, Value: *opts.WorldToNDC})
	}
	if opts.WorldToCamera != nil {
		h.Set(&Attribute{Name: "worldToCamera", Type: AttrTypeM44f, Value: *opts.WorldToCamera})
	}

	buf := xdr.NewBufferWriter(1024)
	layout, err := writeHeader(buf, h, true)
	if err != nil {
		return nil, err
	}
	buf.WriteBytes(make([]byte, chunks*8))

	base, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, err
	}

	dwr := &Writer{
		w:           w,
		chans:       chans,
		compression: opts.Compression,
		dataWindow:  dw,
		base:        base,
		pos:         int64(buf.Len()),
		layout:      layout,
		offsets:     make([]uint64, chunks),
		current:     int(dw.Min.Y),
		pending:     make([]*scanlinePixel, dw.Width()),
	}
	dwr.depth = slices.IndexFunc(chans, func(c Channel) bool { return c.Name == DepthChannel })
	Logger().Debug("exrdeep: created", "channels", opts.Channels, "resolution", opts.Resolution, "compression", opts.Compression)
	return dwr, nil
}

// WritePixel stores p at (x, y). Samples are written in ascending depth
// order. Channels of the file that p lacks are written as zero; channels of
// p the file lacks are dropped. A nil or empty p leaves the pixel empty.
func (w *Writer) WritePixel(x, y int, p *deep.Pixel) error {
	if w.closed {
		return ErrClosed
	}
	if y < w.current {
		return fmt.Errorf("%w: y=%d, next scanline is %d", ErrScanlineWritten, y, w.current)
	}
	last := int(w.dataWindow.Max.Y)
	for w.current < min(y, last+1) {
		if err := w.flushLine(); err != nil {
			return err
		}
	}
	if !w.dataWindow.Contains(x, y) {
		return fmt.Errorf("%w: (%d, %d) not in %v", ErrOutOfBounds, x, y, w.dataWindow)
	}

	xo := x - int(w.dataWindow.Min.X)
	if p == nil || p.NumSamples() == 0 {
		w.pending[xo] = nil
		return nil
	}

	n := p.NumSamples()
	lookup := make([]int, len(w.chans))
	for c, ch := range w.chans {
		lookup[c] = p.ChannelIndex(ch.Name)
	}
	sp := &scanlinePixel{values: make([][]float32, len(w.chans))}
	for c := range sp.values {
		sp.values[c] = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		depth, err := p.Depth(i)
		if err != nil {
			return err
		}
		data, err := p.ChannelData(i)
		if err != nil {
			return err
		}
		for c := range w.chans {
			switch {
			case c == w.depth:
				sp.values[c][i] = depth
			case lookup[c] != deep.NoChannel:
				sp.values[c][i] = data[lookup[c]]
			}
		}
	}
	w.pending[xo] = sp
	w.maxSamples = max(w.maxSamples, n)
	return nil
}

// WriteImage writes every pixel of img that falls inside the file's data
// window, from the current scanline on.
func (w *Writer) WriteImage(img *deepimg.Image) error {
	r := img.DataWindow.Intersect(w.dataWindow.Rect())
	for y := max(r.Min.Y, w.current); y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if p := img.At(x, y); p != nil {
				if err := w.WritePixel(x, y, p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// flushLine encodes and writes the current scanline and advances to the
// next one.
func (w *Writer) flushLine() error {
	counts := make([]int, len(w.pending))
	for x, sp := range w.pending {
		if sp != nil {
			counts[x] = len(sp.values[0])
		}
	}
	line := newScanline(counts, len(w.chans))
	for x, sp := range w.pending {
		if sp == nil {
			continue
		}
		for c := range w.chans {
			copy(line.values[c][line.starts[x]:], sp.values[c])
		}
	}

	chunk, err := encodeDeepChunk(w.compression, int32(w.current), w.chans, line)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(chunk); err != nil {
		return err
	}
	w.offsets[w.current-int(w.dataWindow.Min.Y)] = uint64(w.pos)
	w.pos += int64(len(chunk))

	Logger().Debug("exrdeep: wrote chunk", "y", w.current, "samples", line.total(), "bytes", len(chunk))
	clear(w.pending)
	w.current++
	return nil
}

// Close writes the remaining scanlines, fills in the offset table and the
// maxSamplesPerPixel attribute, and closes the file opened by Create.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.finish()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) finish() error {
	for w.current <= int(w.dataWindow.Max.Y) {
		if err := w.flushLine(); err != nil {
			return err
		}
	}

	table := xdr.NewBufferWriter(len(w.offsets) * 8)
	for _, off := range w.offsets {
		table.WriteUint64(off)
	}
	if err := w.writeAt(int64(w.layout.size), table.Bytes()); err != nil {
		return err
	}

	if w.layout.maxSamplesOffset > 0 {
		v := xdr.NewBufferWriter(4)
		v.WriteInt32(int32(w.maxSamples))
		if err := w.writeAt(int64(w.layout.maxSamplesOffset), v.Bytes()); err != nil {
			return err
		}
	}
	_, err := w.w.Seek(w.base+w.pos, io.SeekStart)
	return err
}

func (w *Writer) writeAt(off int64, b []byte) error {
	if _, err := w.w.Seek(w.base+off, io.SeekStart); err != nil {
		return err
	}
	_, err := w.w.Write(b)
	return err
}
