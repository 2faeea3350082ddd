package exrdeep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mrjoshuak/go-deepexr/deep"
	"github.com/mrjoshuak/go-deepexr/deepimg"
	"github.com/mrjoshuak/go-deepexr/internal/xdr"
)

// DepthChannel is the channel holding sample depths.
const DepthChannel = "Z"

// Reader reads deep pixels from a single-part deep scanline file. Its
// methods are safe for concurrent use.
type Reader struct {
	r      io.ReaderAt
	closer io.Closer
	size   int64

	header      *Header
	chans       []Channel
	depth       int
	names       []string
	dataWindow  Box2i
	compression Compression
	tableEnd    int64
	offsets     []uint64

	cache *lineCache
}

// Open opens a deep scanline file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("exrdeep: open %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// CanRead reports whether path is a deep scanline file this package can
// read.
func CanRead(path string) bool {
	r, err := Open(path)
	if err != nil {
		return false
	}
	r.Close()
	return true
}

// NewReader parses the header and offset table of the size bytes in r.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	h, version, headerEnd, err := readHeaderAt(r, size)
	if err != nil {
		return nil, err
	}
	if version&flagNonImage == 0 {
		return nil, ErrNotDeep
	}
	if t := h.Type(); t != "" && t != typeDeepScanline {
		return nil, fmt.Errorf("%w: type %q", ErrNotDeep, t)
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	rd := &Reader{
		r:           r,
		size:        size,
		header:      h,
		chans:       h.Channels(),
		depth:       -1,
		dataWindow:  h.DataWindow(),
		compression: h.Compression(),
		cache:       newLineCache(scanlineCacheSize),
	}
	for i, ch := range rd.chans {
		if ch.Type != PixelTypeFloat && ch.Type != PixelTypeHalf {
			return nil, fmt.Errorf("%w: %s is %v, not float or half", ErrUnsupportedChannel, ch.Name, ch.Type)
		}
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return nil, fmt.Errorf("%w: %s is subsampled", ErrUnsupportedChannel, ch.Name)
		}
		if ch.Name == DepthChannel {
			rd.depth = i
		} else {
			rd.names = append(rd.names, ch.Name)
		}
	}
	if rd.depth < 0 {
		return nil, ErrNoDepthChannel
	}

	if err := rd.readOffsets(headerEnd); err != nil {
		return nil, err
	}
	if !rd.IsComplete() {
		Logger().Warn("exrdeep: file is incomplete, missing chunks read as errors", "chunks", len(rd.offsets))
	}
	Logger().Debug("exrdeep: opened",
		"channels", rd.names, "dataWindow", rd.dataWindow, "compression", rd.compression, "chunks", len(rd.offsets))
	return rd, nil
}

// readHeaderAt reads a growing prefix of r until the header fits.
func readHeaderAt(r io.ReaderAt, size int64) (*Header, uint32, int64, error) {
	n := min(size, 16<<10)
	for {
		buf := make([]byte, n)
		if _, err := r.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, 0, err
		}
		xr := xdr.NewReader(buf)
		h, version, err := readHeader(xr)
		if errors.Is(err, xdr.ErrShortBuffer) && n < size {
			n = min(n*4, size)
			continue
		}
		if errors.Is(err, xdr.ErrShortBuffer) {
			return nil, 0, 0, ErrNotEXR
		}
		if err != nil {
			return nil, 0, 0, err
		}
		return h, version, int64(xr.Pos()), nil
	}
}

func (r *Reader) readOffsets(headerEnd int64) error {
	count := r.header.chunkCount()
	want := (r.dataWindow.Height() + r.compression.ScanlinesPerChunk() - 1) / r.compression.ScanlinesPerChunk()
	if count != want {
		return fmt.Errorf("%w: chunkCount %d, data window needs %d", ErrInvalidAttribute, count, want)
	}
	r.tableEnd = headerEnd + int64(count)*8
	if r.tableEnd > r.size {
		return fmt.Errorf("%w: offset table truncated", ErrIncomplete)
	}
	buf := make([]byte, count*8)
	if _, err := r.r.ReadAt(buf, headerEnd); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	xr := xdr.NewReader(buf)
	r.offsets = make([]uint64, count)
	for i := range r.offsets {
		r.offsets[i], _ = xr.ReadUint64()
	}
	return nil
}

// Close releases the file opened by Open. It is a no-op for readers built
// with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	hits, misses := r.cache.stats()
	Logger().Debug("exrdeep: closed", "cacheHits", hits, "cacheMisses", misses)
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) Header() *Header { return r.header }

// ChannelNames returns the pixel channels, without the depth channel, in
// file order.
func (r *Reader) ChannelNames() []string {
	return append([]string(nil), r.names...)
}

func (r *Reader) DataWindow() Box2i        { return r.dataWindow }
func (r *Reader) DisplayWindow() Box2i     { return r.header.DisplayWindow() }
func (r *Reader) Compression() Compression { return r.compression }
func (r *Reader) WorldToNDC() M44f         { return r.header.Matrix("worldToNDC") }
func (r *Reader) WorldToCamera() M44f      { return r.header.Matrix("worldToCamera") }
func (r *Reader) chunkLines() int          { return r.compression.ScanlinesPerChunk() }
func (r *Reader) chunkOf(y int) int        { return (y - int(r.dataWindow.Min.Y)) / r.chunkLines() }
func (r *Reader) chunkFirstLine(i int) int { return int(r.dataWindow.Min.Y) + i*r.chunkLines() }

func (r *Reader) validOffset(off uint64) bool {
	return off != 0 && int64(off) >= r.tableEnd && int64(off)+deepChunkHeaderSize <= r.size
}

// IsComplete reports whether every chunk of the offset table points into
// the file. Writers that were interrupted leave zero offsets behind.
func (r *Reader) IsComplete() bool {
	for _, off := range r.offsets {
		if !r.validOffset(off) {
			return false
		}
	}
	return true
}

// ReadPixel returns the deep pixel at (x, y). It returns a nil pixel and no
// error when the position has no samples or lies outside the data window.
func (r *Reader) ReadPixel(x, y int) (*deep.Pixel, error) {
	if !r.dataWindow.Contains(x, y) {
		return nil, nil
	}
	line, err := r.scanline(y)
	if err != nil {
		return nil, err
	}
	return r.pixel(line, x-int(r.dataWindow.Min.X))
}

// pixel builds the deep pixel at column xo of line.
func (r *Reader) pixel(line *scanline, xo int) (*deep.Pixel, error) {
	n := line.counts[xo]
	if n == 0 {
		return nil, nil
	}
	p := deep.New(r.names, n)
	data := make([]float32, len(r.names))
	for s := line.starts[xo]; s < line.starts[xo]+n; s++ {
		ci := 0
		for c := range r.chans {
			if c == r.depth {
				continue
			}
			data[ci] = line.values[c][s]
			ci++
		}
		if err := p.AddSample(line.values[r.depth][s], data); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// scanline returns decoded line y, reading its chunk on a cache miss.
func (r *Reader) scanline(y int) (*scanline, error) {
	if line, ok := r.cache.get(y); ok {
		return line, nil
	}
	i := r.chunkOf(y)
	lines, err := r.readChunk(i)
	if err != nil {
		return nil, err
	}
	first := r.chunkFirstLine(i)
	for l, line := range lines {
		r.cache.put(first+l, line)
	}
	return lines[y-first], nil
}

// readChunk reads and decodes chunk i.
func (r *Reader) readChunk(i int) ([]*scanline, error) {
	off := r.offsets[i]
	if !r.validOffset(off) {
		return nil, fmt.Errorf("%w: chunk %d has offset %d", ErrIncomplete, i, off)
	}

	var prefix [deepChunkHeaderSize]byte
	if _, err := r.r.ReadAt(prefix[:], int64(off)); err != nil {
		return nil, err
	}
	ch, err := readChunkHeader(prefix[:])
	if err != nil {
		return nil, err
	}
	first := r.chunkFirstLine(i)
	if int(ch.y) != first {
		return nil, fmt.Errorf("%w: chunk %d starts at y=%d, want %d", ErrCorruptChunk, i, ch.y, first)
	}
	payload := ch.packedTable + ch.packedData
	if ch.packedTable > uint64(r.size) || ch.packedData > uint64(r.size) ||
		int64(off)+deepChunkHeaderSize+int64(payload) > r.size {
		return nil, fmt.Errorf("%w: chunk %d extends past the end of the file", ErrCorruptChunk, i)
	}

	buf := make([]byte, payload)
	if _, err := r.r.ReadAt(buf, int64(off)+deepChunkHeaderSize); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	width := r.dataWindow.Width()
	numLines := min(r.chunkLines(), int(r.dataWindow.Max.Y)-first+1)
	table, err := decompress(r.compression, buf[:ch.packedTable], width*numLines*4)
	if err != nil {
		return nil, fmt.Errorf("exrdeep: chunk %d sample counts: %w", i, err)
	}
	counts, err := decodeCounts(table, width, numLines)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, lc := range counts {
		for _, n := range lc {
			total += n
		}
	}
	if uint64(total*sampleSize(r.chans)) != ch.unpacked {
		return nil, fmt.Errorf("%w: chunk %d holds %d samples but %d unpacked bytes", ErrCorruptChunk, i, total, ch.unpacked)
	}
	data, err := decompress(r.compression, buf[ch.packedTable:], int(ch.unpacked))
	if err != nil {
		return nil, fmt.Errorf("exrdeep: chunk %d sample data: %w", i, err)
	}

	Logger().Debug("exrdeep: read chunk", "chunk", i, "y", first, "lines", numLines, "samples", total)
	return decodeSamples(data, r.chans, counts)
}

// ReadImage reads every pixel into a deep image. Chunks are decoded in
// parallel and bypass the scanline cache.
func (r *Reader) ReadImage(ctx context.Context) (*deepimg.Image, error) {
	img := deepimg.New(r.dataWindow.Rect(), r.names)
	minX := int(r.dataWindow.Min.X)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range r.offsets {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lines, err := r.readChunk(i)
			if err != nil {
				return err
			}
			first := r.chunkFirstLine(i)
			for l, line := range lines {
				for xo := range line.counts {
					p, err := r.pixel(line, xo)
					if err != nil {
						return err
					}
					if p == nil {
						continue
					}
					// Chunks own disjoint rows of the image.
					if err := img.Set(minX+xo, first+l, p); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}
