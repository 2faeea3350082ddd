package exrdeep

import (
	"image"

	"github.com/mrjoshuak/go-deepexr/internal/xdr"
)

// V2i is a 2D integer vector.
type V2i struct {
	X, Y int32
}

// V2f is a 2D float vector.
type V2f struct {
	X, Y float32
}

// Box2i is an axis-aligned integer box. Both corners are inclusive, as in
// the file format.
type Box2i struct {
	Min, Max V2i
}

func (b Box2i) Width() int  { return int(b.Max.X) - int(b.Min.X) + 1 }
func (b Box2i) Height() int { return int(b.Max.Y) - int(b.Min.Y) + 1 }

// IsEmpty reports whether the box contains no pixels.
func (b Box2i) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y
}

// Contains reports whether (x, y) lies inside the box.
func (b Box2i) Contains(x, y int) bool {
	return x >= int(b.Min.X) && x <= int(b.Max.X) && y >= int(b.Min.Y) && y <= int(b.Max.Y)
}

// Rect converts the box to a half-open image.Rectangle.
func (b Box2i) Rect() image.Rectangle {
	return image.Rect(int(b.Min.X), int(b.Min.Y), int(b.Max.X)+1, int(b.Max.Y)+1)
}

// BoxFromRect converts a half-open rectangle to an inclusive box.
func BoxFromRect(r image.Rectangle) Box2i {
	return Box2i{
		Min: V2i{int32(r.Min.X), int32(r.Min.Y)},
		Max: V2i{int32(r.Max.X - 1), int32(r.Max.Y - 1)},
	}
}

// M44f is a row-major 4x4 float matrix.
type M44f [16]float32

// Identity44 returns the identity matrix.
func Identity44() M44f {
	return M44f{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func readV2i(r *xdr.Reader) (V2i, error) {
	var v V2i
	var err error
	v.X, err = r.ReadInt32()
	if err != nil {
		return v, err
	}
	v.Y, err = r.ReadInt32()
	return v, err
}

func writeV2i(w *xdr.BufferWriter, v V2i) {
	w.WriteInt32(v.X)
	w.WriteInt32(v.Y)
}

func readV2f(r *xdr.Reader) (V2f, error) {
	var v V2f
	var err error
	v.X, err = r.ReadFloat32()
	if err != nil {
		return v, err
	}
	v.Y, err = r.ReadFloat32()
	return v, err
}

func writeV2f(w *xdr.BufferWriter, v V2f) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
}

func readBox2i(r *xdr.Reader) (Box2i, error) {
	var b Box2i
	var err error
	b.Min, err = readV2i(r)
	if err != nil {
		return b, err
	}
	b.Max, err = readV2i(r)
	return b, err
}

func writeBox2i(w *xdr.BufferWriter, b Box2i) {
	writeV2i(w, b.Min)
	writeV2i(w, b.Max)
}

func readM44f(r *xdr.Reader) (M44f, error) {
	var m M44f
	for i := range m {
		var err error
		m[i], err = r.ReadFloat32()
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

func writeM44f(w *xdr.BufferWriter, m M44f) {
	for _, v := range m {
		w.WriteFloat32(v)
	}
}
