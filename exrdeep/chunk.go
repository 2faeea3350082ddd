package exrdeep

import (
	"fmt"

	"github.com/x448/float16"

	"github.com/mrjoshuak/go-deepexr/internal/compression"
	"github.com/mrjoshuak/go-deepexr/internal/xdr"
)

// deepChunkHeaderSize is the size of y plus the three size fields.
const deepChunkHeaderSize = 4 + 8 + 8 + 8

// compress packs src. Data that does not shrink is stored as is, which
// readers recognise by the packed size equalling the unpacked size.
func compress(c Compression, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	var packed []byte
	switch c {
	case CompressionNone:
		return src, nil
	case CompressionRLE:
		packed = compression.RLECompress(src)
	case CompressionZIPS, CompressionZIP:
		var err error
		if packed, err = compression.ZIPCompress(src); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCompression, c)
	}
	if len(packed) >= len(src) {
		return src, nil
	}
	return packed, nil
}

// decompress reverses compress. size is the expected unpacked length.
func decompress(c Compression, src []byte, size int) ([]byte, error) {
	if len(src) == size {
		return src, nil
	}
	switch c {
	case CompressionRLE:
		return compression.RLEDecompress(src, size)
	case CompressionZIPS, CompressionZIP:
		return compression.ZIPDecompress(src, size)
	case CompressionNone:
		return nil, fmt.Errorf("%w: %d bytes stored, %d expected", ErrCorruptChunk, len(src), size)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCompression, c)
	}
}

// scanline is one decoded line of deep samples.
type scanline struct {
	// counts holds the number of samples of every pixel.
	counts []int
	// starts holds the index of every pixel's first sample in values.
	starts []int
	// values holds the samples of every channel, in file channel order.
	values [][]float32
}

func newScanline(counts []int, numChannels int) *scanline {
	s := &scanline{counts: counts, starts: make([]int, len(counts))}
	total := 0
	for i, n := range counts {
		s.starts[i] = total
		total += n
	}
	s.values = make([][]float32, numChannels)
	for c := range s.values {
		s.values[c] = make([]float32, total)
	}
	return s
}

func (s *scanline) total() int {
	if len(s.values) == 0 {
		return 0
	}
	return len(s.values[0])
}

// decodeCounts converts the per-line cumulative sample count table.
func decodeCounts(raw []byte, width, lines int) ([][]int, error) {
	if len(raw) != width*lines*4 {
		return nil, fmt.Errorf("%w: sample count table holds %d bytes, want %d", ErrCorruptChunk, len(raw), width*lines*4)
	}
	r := xdr.NewReader(raw)
	out := make([][]int, lines)
	for l := range out {
		counts := make([]int, width)
		prev := int32(0)
		for x := range counts {
			cum, _ := r.ReadInt32()
			if cum < prev {
				return nil, fmt.Errorf("%w: sample count table decreases at x=%d", ErrCorruptChunk, x)
			}
			counts[x] = int(cum - prev)
			prev = cum
		}
		out[l] = counts
	}
	return out, nil
}

func encodeCounts(w *xdr.BufferWriter, counts []int) {
	cum := int32(0)
	for _, n := range counts {
		cum += int32(n)
		w.WriteInt32(cum)
	}
}

// sampleSize returns the bytes one sample occupies across all channels.
func sampleSize(chans []Channel) int {
	n := 0
	for _, ch := range chans {
		n += ch.Type.Size()
	}
	return n
}

// decodeSamples splits unpacked chunk data into scanlines. Within each line
// the data is ordered by channel, then pixel, then sample.
func decodeSamples(raw []byte, chans []Channel, counts [][]int) ([]*scanline, error) {
	r := xdr.NewReader(raw)
	lines := make([]*scanline, len(counts))
	for l, lineCounts := range counts {
		s := newScanline(lineCounts, len(chans))
		for c, ch := range chans {
			dst := s.values[c]
			for i := range dst {
				var err error
				if dst[i], err = readValue(r, ch.Type); err != nil {
					return nil, fmt.Errorf("%w: sample data ends early in channel %s", ErrCorruptChunk, ch.Name)
				}
			}
		}
		lines[l] = s
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes of sample data", ErrCorruptChunk, r.Len())
	}
	return lines, nil
}

func readValue(r *xdr.Reader, t PixelType) (float32, error) {
	if t == PixelTypeHalf {
		v, err := r.ReadUint16()
		return float16.Frombits(v).Float32(), err
	}
	return r.ReadFloat32()
}

func writeValue(w *xdr.BufferWriter, t PixelType, v float32) {
	if t == PixelTypeHalf {
		w.WriteUint16(float16.Fromfloat32(v).Bits())
		return
	}
	w.WriteFloat32(v)
}

// encodeSamples appends the sample data of s in file order.
func encodeSamples(w *xdr.BufferWriter, chans []Channel, s *scanline) {
	for c, ch := range chans {
		for _, v := range s.values[c] {
			writeValue(w, ch.Type, v)
		}
	}
}

// chunkHeader is the fixed prefix of a deep scanline chunk.
type chunkHeader struct {
	y           int32
	packedTable uint64
	packedData  uint64
	unpacked    uint64
}

func readChunkHeader(raw []byte) (chunkHeader, error) {
	var h chunkHeader
	r := xdr.NewReader(raw)
	var err error
	if h.y, err = r.ReadInt32(); err != nil {
		return h, err
	}
	if h.packedTable, err = r.ReadUint64(); err != nil {
		return h, err
	}
	if h.packedData, err = r.ReadUint64(); err != nil {
		return h, err
	}
	h.unpacked, err = r.ReadUint64()
	return h, err
}

// encodeDeepChunk builds a complete single-line deep chunk.
func encodeDeepChunk(c Compression, y int32, chans []Channel, s *scanline) ([]byte, error) {
	table := xdr.NewBufferWriter(len(s.counts) * 4)
	encodeCounts(table, s.counts)
	data := xdr.NewBufferWriter(s.total() * sampleSize(chans))
	encodeSamples(data, chans, s)

	packedTable, err := compress(c, table.Bytes())
	if err != nil {
		return nil, err
	}
	packedData, err := compress(c, data.Bytes())
	if err != nil {
		return nil, err
	}

	w := xdr.NewBufferWriter(deepChunkHeaderSize + len(packedTable) + len(packedData))
	w.WriteInt32(y)
	w.WriteUint64(uint64(len(packedTable)))
	w.WriteUint64(uint64(len(packedData)))
	w.WriteUint64(uint64(data.Len()))
	w.WriteBytes(packedTable)
	w.WriteBytes(packedData)
	return w.Bytes(), nil
}
