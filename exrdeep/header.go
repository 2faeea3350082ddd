package exrdeep

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mrjoshuak/go-deepexr/internal/xdr"
)

const (
	// MagicNumber opens every OpenEXR file (bytes 76 2f 31 01).
	MagicNumber = 20000630

	versionNumber = 2

	flagTiled     = 0x200
	flagLongNames = 0x400
	flagNonImage  = 0x800
	flagMultiPart = 0x1000

	typeDeepScanline = "deepscanline"
	typeScanline     = "scanlineimage"

	// deepVersion is the value of the "version" attribute of deep parts.
	deepVersion = 1

	lineOrderIncreasingY = 0
)

var (
	ErrNotEXR                 = errors.New("exrdeep: not an OpenEXR file")
	ErrNotDeep                = errors.New("exrdeep: not a deep scanline image")
	ErrUnsupportedVersion     = errors.New("exrdeep: unsupported file version")
	ErrUnsupportedCompression = errors.New("exrdeep: unsupported compression")
	ErrUnsupportedChannel     = errors.New("exrdeep: unsupported channel")
	ErrNoDepthChannel         = errors.New("exrdeep: no depth channel")
	ErrMissingAttribute       = errors.New("exrdeep: missing required attribute")
	ErrCorruptChunk           = errors.New("exrdeep: corrupt chunk")
	ErrIncomplete             = errors.New("exrdeep: file is incomplete")
)

// Header is the ordered attribute list of a single-part file.
type Header struct {
	attrs []*Attribute
}

// Attributes returns the attributes in file order.
func (h *Header) Attributes() []*Attribute {
	return slices.Clone(h.attrs)
}

// Get returns the named attribute or nil.
func (h *Header) Get(name string) *Attribute {
	for _, a := range h.attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Set adds attr, replacing an attribute of the same name.
func (h *Header) Set(attr *Attribute) {
	for i, a := range h.attrs {
		if a.Name == attr.Name {
			h.attrs[i] = attr
			return
		}
	}
	h.attrs = append(h.attrs, attr)
}

func getValue[T any](h *Header, name string) (T, bool) {
	var zero T
	a := h.Get(name)
	if a == nil {
		return zero, false
	}
	v, ok := a.Value.(T)
	return v, ok
}

// Channels returns the channel list in file order.
func (h *Header) Channels() []Channel {
	chans, _ := getValue[[]Channel](h, "channels")
	return slices.Clone(chans)
}

func (h *Header) Compression() Compression {
	c, _ := getValue[Compression](h, "compression")
	return c
}

func (h *Header) DataWindow() Box2i {
	b, _ := getValue[Box2i](h, "dataWindow")
	return b
}

func (h *Header) DisplayWindow() Box2i {
	b, _ := getValue[Box2i](h, "displayWindow")
	return b
}

// Type returns the "type" attribute, empty for single-part flat files.
func (h *Header) Type() string {
	s, _ := getValue[string](h, "type")
	return s
}

// Matrix returns the named m44f attribute, or the identity when absent.
func (h *Header) Matrix(name string) M44f {
	if m, ok := getValue[M44f](h, name); ok {
		return m
	}
	return Identity44()
}

// Int returns the named int attribute.
func (h *Header) Int(name string) (int32, bool) {
	return getValue[int32](h, name)
}

// validate checks the attributes every scanline part needs.
func (h *Header) validate() error {
	for _, name := range []string{"channels", "compression", "dataWindow", "displayWindow", "lineOrder"} {
		if h.Get(name) == nil {
			return fmt.Errorf("%w: %s", ErrMissingAttribute, name)
		}
	}
	if dw := h.DataWindow(); dw.IsEmpty() {
		return fmt.Errorf("%w: empty data window %v", ErrInvalidAttribute, dw)
	}
	if c := h.Compression(); c > CompressionZIP {
		return fmt.Errorf("%w: %v", ErrUnsupportedCompression, c)
	}
	return nil
}

// chunkCount returns the number of chunks in the offset table.
func (h *Header) chunkCount() int {
	if n, ok := h.Int("chunkCount"); ok && n > 0 {
		return int(n)
	}
	lines := h.Compression().ScanlinesPerChunk()
	return (h.DataWindow().Height() + lines - 1) / lines
}

// readHeader parses the magic number, version field and attributes.
func readHeader(r *xdr.Reader) (*Header, uint32, error) {
	magic, err := r.ReadInt32()
	if err != nil || magic != MagicNumber {
		return nil, 0, ErrNotEXR
	}
	version, err := r.ReadUint32()
	if err != nil {
		return nil, 0, err
	}
	if version&0xff != versionNumber {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version&0xff)
	}
	if version&(flagTiled|flagMultiPart) != 0 {
		return nil, 0, fmt.Errorf("%w: tiled and multi-part files are not supported", ErrUnsupportedVersion)
	}

	h := new(Header)
	for {
		attr, err := readAttribute(r)
		if err != nil {
			return nil, 0, err
		}
		if attr == nil {
			break
		}
		h.Set(attr)
	}
	return h, version, nil
}

// headerLayout records where patchable values live in an encoded header.
type headerLayout struct {
	maxSamplesOffset int
	size             int
}

// writeHeader encodes the magic number, version field and attributes.
func writeHeader(w *xdr.BufferWriter, h *Header, deep bool) (headerLayout, error) {
	var layout headerLayout
	w.WriteInt32(MagicNumber)
	version := uint32(versionNumber)
	if deep {
		version |= flagNonImage
	}
	for _, a := range h.attrs {
		if len(a.Name) > 31 || len(a.Type) > 31 {
			version |= flagLongNames
		}
	}
	w.WriteUint32(version)

	for _, a := range h.attrs {
		offset, err := writeAttribute(w, a)
		if err != nil {
			return layout, err
		}
		if a.Name == "maxSamplesPerPixel" {
			layout.maxSamplesOffset = offset
		}
	}
	w.WriteByte(0)
	layout.size = w.Len()
	return layout, nil
}

// newScanlineHeader returns the attributes shared by deep and flat
// scanline files.
func newScanlineHeader(chans []Channel, dataWindow, displayWindow Box2i, c Compression) *Header {
	chans = slices.Clone(chans)
	sortChannels(chans)
	h := new(Header)
	h.Set(&Attribute{Name: "channels", Type: AttrTypeChlist, Value: chans})
	h.Set(&Attribute{Name: "compression", Type: AttrTypeCompression, Value: c})
	h.Set(&Attribute{Name: "dataWindow", Type: AttrTypeBox2i, Value: dataWindow})
	h.Set(&Attribute{Name: "displayWindow", Type: AttrTypeBox2i, Value: displayWindow})
	h.Set(&Attribute{Name: "lineOrder", Type: AttrTypeLineOrder, Value: byte(lineOrderIncreasingY)})
	h.Set(&Attribute{Name: "pixelAspectRatio", Type: AttrTypeFloat, Value: float32(1)})
	h.Set(&Attribute{Name: "screenWindowCenter", Type: AttrTypeV2f, Value: V2f{}})
	h.Set(&Attribute{Name: "screenWindowWidth", Type: AttrTypeFloat, Value: float32(1)})
	return h
}
