package exrdeep

import (
	"fmt"
	"io"
	"slices"

	"github.com/mrjoshuak/go-deepexr/deepimg"
	"github.com/mrjoshuak/go-deepexr/internal/xdr"
)

// FlatOptions configures WriteFlat.
type FlatOptions struct {
	Compression  Compression
	HalfChannels []string
}

// WriteFlat writes a flattened image as a single-part scanline file.
func WriteFlat(w io.Writer, flat *deepimg.Flat, opts FlatOptions) error {
	if len(flat.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrUnsupportedChannel)
	}
	if flat.Rect.Empty() {
		return fmt.Errorf("%w: empty image", ErrInvalidAttribute)
	}
	if opts.Compression > CompressionZIP {
		return fmt.Errorf("%w: %v", ErrUnsupportedCompression, opts.Compression)
	}

	// src[i] is the index in flat.Pix of file channel i.
	chans := make([]Channel, len(flat.Channels))
	for i, name := range flat.Channels {
		t := PixelTypeFloat
		if slices.Contains(opts.HalfChannels, name) {
			t = PixelTypeHalf
		}
		chans[i] = Channel{Name: name, Type: t, XSampling: 1, YSampling: 1}
	}
	sortChannels(chans)
	src := make([]int, len(chans))
	for i, ch := range chans {
		src[i] = slices.Index(flat.Channels, ch.Name)
	}

	dw := BoxFromRect(flat.Rect)
	linesPerChunk := opts.Compression.ScanlinesPerChunk()
	numChunks := (dw.Height() + linesPerChunk - 1) / linesPerChunk

	h := newScanlineHeader(chans, dw, dw, opts.Compression)
	h.Set(&Attribute{Name: "type", Type: AttrTypeString, Value: typeScanline})
	header := xdr.NewBufferWriter(1024)
	if _, err := writeHeader(header, h, false); err != nil {
		return err
	}

	// Chunks follow the offset table, so encode them all first.
	stride := len(flat.Channels)
	width := flat.Width()
	pos := uint64(header.Len() + numChunks*8)
	offsets := xdr.NewBufferWriter(numChunks * 8)
	chunks := make([][]byte, numChunks)
	for i := range chunks {
		first := i * linesPerChunk
		lines := min(linesPerChunk, dw.Height()-first)

		raw := xdr.NewBufferWriter(lines * width * sampleSize(chans))
		for l := first; l < first+lines; l++ {
			row := flat.Pix[l*width*stride : (l+1)*width*stride]
			for c, ch := range chans {
				for x := 0; x < width; x++ {
					writeValue(raw, ch.Type, row[x*stride+src[c]])
				}
			}
		}
		packed, err := compress(opts.Compression, raw.Bytes())
		if err != nil {
			return err
		}

		chunk := xdr.NewBufferWriter(8 + len(packed))
		chunk.WriteInt32(dw.Min.Y + int32(first))
		chunk.WriteInt32(int32(len(packed)))
		chunk.WriteBytes(packed)
		chunks[i] = chunk.Bytes()

		offsets.WriteUint64(pos)
		pos += uint64(len(chunks[i]))
	}

	for _, b := range append([][]byte{header.Bytes(), offsets.Bytes()}, chunks...) {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	Logger().Debug("exrdeep: wrote flat image", "rect", flat.Rect, "compression", opts.Compression, "bytes", pos)
	return nil
}
