// Package compression implements the lossless OpenEXR codecs used for deep
// scanline chunks: RLE, and zlib for ZIPS and ZIP.
//
// Both codecs run the same preconditioning before the byte stream is
// packed. The bytes are split into even and odd halves, then replaced by
// biased deltas. Unpacking reverses the two steps in the opposite order.
package compression

// interleave moves the even-indexed bytes of src into the first half of dst
// and the odd-indexed bytes into the second half.
func interleave(dst, src []byte) {
	half := (len(src) + 1) / 2
	even, odd := dst[:half], dst[half:]
	for i, b := range src {
		if i%2 == 0 {
			even[i/2] = b
		} else {
			odd[i/2] = b
		}
	}
}

// deinterleave reverses interleave.
func deinterleave(dst, src []byte) {
	half := (len(src) + 1) / 2
	for i := range dst[:len(src)] {
		if i%2 == 0 {
			dst[i] = src[i/2]
		} else {
			dst[i] = src[half+i/2]
		}
	}
}

// encodePredictor replaces every byte after the first with its difference
// from the previous byte, biased by 128.
func encodePredictor(data []byte) {
	if len(data) < 2 {
		return
	}
	prev := data[0]
	for i := 1; i < len(data); i++ {
		cur := data[i]
		data[i] = cur - prev + 128
		prev = cur
	}
}

// decodePredictor reverses encodePredictor in place.
func decodePredictor(data []byte) {
	for i := 1; i < len(data); i++ {
		data[i] = data[i-1] + data[i] - 128
	}
}

// precondition returns a reordered, delta-encoded copy of src.
func precondition(src []byte) []byte {
	dst := make([]byte, len(src))
	interleave(dst, src)
	encodePredictor(dst)
	return dst
}

// restore undoes precondition. tmp is consumed.
func restore(tmp []byte) []byte {
	decodePredictor(tmp)
	dst := make([]byte, len(tmp))
	deinterleave(dst, tmp)
	return dst
}
