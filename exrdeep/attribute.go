package exrdeep

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mrjoshuak/go-deepexr/internal/xdr"
)

// Compression is the codec applied to each chunk.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionRLE  Compression = 1
	// CompressionZIPS deflates one scanline per chunk.
	CompressionZIPS Compression = 2
	// CompressionZIP deflates 16 scanlines per chunk.
	CompressionZIP Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionRLE:
		return "rle"
	case CompressionZIPS:
		return "zips"
	case CompressionZIP:
		return "zip"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ScanlinesPerChunk returns the number of scanlines stored in one chunk.
func (c Compression) ScanlinesPerChunk() int {
	if c == CompressionZIP {
		return 16
	}
	return 1
}

// ParseCompression returns the compression with the given name.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return CompressionNone, nil
	case "rle":
		return CompressionRLE, nil
	case "zips":
		return CompressionZIPS, nil
	case "zip":
		return CompressionZIP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, name)
}

// PixelType is the storage type of a channel.
type PixelType int32

const (
	PixelTypeUint  PixelType = 0
	PixelTypeHalf  PixelType = 1
	PixelTypeFloat PixelType = 2
)

func (t PixelType) String() string {
	switch t {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	default:
		return fmt.Sprintf("pixeltype(%d)", int32(t))
	}
}

// Size returns the number of bytes of one value.
func (t PixelType) Size() int {
	if t == PixelTypeHalf {
		return 2
	}
	return 4
}

// Channel describes one entry of the channel list.
type Channel struct {
	Name      string
	Type      PixelType
	PLinear   bool
	XSampling int32
	YSampling int32
}

// sortChannels orders channels by name, the order they are stored in.
func sortChannels(chans []Channel) {
	slices.SortFunc(chans, func(a, b Channel) int {
		return strings.Compare(a.Name, b.Name)
	})
}

func readChannelList(r *xdr.Reader) ([]Channel, error) {
	var chans []Channel
	for {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return chans, nil
		}
		ch := Channel{Name: name}
		t, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		ch.Type = PixelType(t)
		linear, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		ch.PLinear = linear != 0
		if err := r.Skip(3); err != nil {
			return nil, err
		}
		if ch.XSampling, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if ch.YSampling, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		chans = append(chans, ch)
	}
}

func writeChannelList(w *xdr.BufferWriter, chans []Channel) {
	for _, ch := range chans {
		w.WriteString(ch.Name)
		w.WriteInt32(int32(ch.Type))
		var linear byte
		if ch.PLinear {
			linear = 1
		}
		w.WriteBytes([]byte{linear, 0, 0, 0})
		w.WriteInt32(max(ch.XSampling, 1))
		w.WriteInt32(max(ch.YSampling, 1))
	}
	w.WriteByte(0)
}

var (
	ErrUnknownAttributeType = errors.New("exrdeep: unknown attribute type")
	ErrInvalidAttribute     = errors.New("exrdeep: invalid attribute value")
)

// AttributeType names the type of a header attribute.
type AttributeType string

const (
	AttrTypeBox2i       AttributeType = "box2i"
	AttrTypeChlist      AttributeType = "chlist"
	AttrTypeCompression AttributeType = "compression"
	AttrTypeFloat       AttributeType = "float"
	AttrTypeInt         AttributeType = "int"
	AttrTypeLineOrder   AttributeType = "lineOrder"
	AttrTypeM44f        AttributeType = "m44f"
	AttrTypeString      AttributeType = "string"
	AttrTypeV2f         AttributeType = "v2f"
)

// Attribute is a single header attribute. Value holds the decoded Go value
// for the types above and the raw bytes for any other type.
type Attribute struct {
	Name  string
	Type  AttributeType
	Value any
}

// readAttribute reads one attribute. It returns nil at the header
// terminator.
func readAttribute(r *xdr.Reader) (*Attribute, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}
	typeName, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	size, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadBytes(int(size))
	if err != nil {
		return nil, err
	}

	attr := &Attribute{Name: name, Type: AttributeType(typeName)}
	vr := xdr.NewReader(raw)
	switch attr.Type {
	case AttrTypeBox2i:
		attr.Value, err = readBox2i(vr)
	case AttrTypeChlist:
		attr.Value, err = readChannelList(vr)
	case AttrTypeCompression:
		var b byte
		b, err = vr.ReadByte()
		attr.Value = Compression(b)
	case AttrTypeFloat:
		attr.Value, err = vr.ReadFloat32()
	case AttrTypeInt:
		attr.Value, err = vr.ReadInt32()
	case AttrTypeLineOrder:
		attr.Value, err = vr.ReadByte()
	case AttrTypeM44f:
		attr.Value, err = readM44f(vr)
	case AttrTypeString:
		attr.Value = string(raw)
	case AttrTypeV2f:
		attr.Value, err = readV2f(vr)
	default:
		attr.Value = slices.Clone(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrInvalidAttribute, name, typeName, err)
	}
	return attr, nil
}

// writeAttribute writes attr and returns the offset of its value within
// w, which lets callers patch fixed-size values later.
func writeAttribute(w *xdr.BufferWriter, attr *Attribute) (int, error) {
	value := xdr.NewBufferWriter(64)
	if err := writeAttributeValue(value, attr); err != nil {
		return 0, err
	}
	w.WriteString(attr.Name)
	w.WriteString(string(attr.Type))
	w.WriteInt32(int32(value.Len()))
	offset := w.Len()
	w.WriteBytes(value.Bytes())
	return offset, nil
}

func writeAttributeValue(w *xdr.BufferWriter, attr *Attribute) error {
	var ok bool
	switch attr.Type {
	case AttrTypeBox2i:
		var v Box2i
		if v, ok = attr.Value.(Box2i); ok {
			writeBox2i(w, v)
		}
	case AttrTypeChlist:
		var v []Channel
		if v, ok = attr.Value.([]Channel); ok {
			writeChannelList(w, v)
		}
	case AttrTypeCompression:
		var v Compression
		if v, ok = attr.Value.(Compression); ok {
			w.WriteByte(byte(v))
		}
	case AttrTypeFloat:
		var v float32
		if v, ok = attr.Value.(float32); ok {
			w.WriteFloat32(v)
		}
	case AttrTypeInt:
		var v int32
		if v, ok = attr.Value.(int32); ok {
			w.WriteInt32(v)
		}
	case AttrTypeLineOrder:
		var v byte
		if v, ok = attr.Value.(byte); ok {
			w.WriteByte(v)
		}
	case AttrTypeM44f:
		var v M44f
		if v, ok = attr.Value.(M44f); ok {
			writeM44f(w, v)
		}
	case AttrTypeString:
		var v string
		if v, ok = attr.Value.(string); ok {
			w.WriteBytes([]byte(v))
		}
	case AttrTypeV2f:
		var v V2f
		if v, ok = attr.Value.(V2f); ok {
			writeV2f(w, v)
		}
	default:
		var v []byte
		if v, ok = attr.Value.([]byte); ok {
			w.WriteBytes(v)
		} else {
			return fmt.Errorf("%w: %s", ErrUnknownAttributeType, attr.Type)
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s holds %T", ErrInvalidAttribute, attr.Name, attr.Value)
	}
	return nil
}
