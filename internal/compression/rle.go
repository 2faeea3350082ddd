package compression

import "errors"

var (
	ErrRLECorrupted = errors.New("compression: corrupted RLE data")
	ErrRLEOverflow  = errors.New("compression: RLE decompressed size overflow")
)

const (
	rleMinRun     = 3
	rleMaxRun     = 128
	rleMaxLiteral = 127
)

// rleEncode packs src with the OpenEXR run-length scheme. A non-negative
// count byte n is followed by one byte repeated n+1 times; a negative count
// byte -n is followed by n literal bytes.
func rleEncode(src []byte) []byte {
	dst := make([]byte, 0, len(src)+len(src)/rleMaxLiteral+1)

	i := 0
	for i < len(src) {
		run := 1
		for i+run < len(src) && src[i+run] == src[i] && run < rleMaxRun {
			run++
		}
		if run >= rleMinRun {
			dst = append(dst, byte(run-1), src[i])
			i += run
			continue
		}

		start := i
		for i < len(src) && i-start < rleMaxLiteral {
			if i+2 < len(src) && src[i] == src[i+1] && src[i] == src[i+2] {
				break
			}
			i++
		}
		dst = append(dst, byte(-int8(i-start)))
		dst = append(dst, src[start:i]...)
	}
	return dst
}

// rleDecode unpacks src into exactly size bytes.
func rleDecode(src []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	pos := 0

	for i := 0; i < len(src); {
		count := int(int8(src[i]))
		i++

		if count < 0 {
			n := -count
			if i+n > len(src) {
				return nil, ErrRLECorrupted
			}
			if pos+n > size {
				return nil, ErrRLEOverflow
			}
			copy(dst[pos:], src[i:i+n])
			pos += n
			i += n
			continue
		}

		n := count + 1
		if i >= len(src) {
			return nil, ErrRLECorrupted
		}
		if pos+n > size {
			return nil, ErrRLEOverflow
		}
		v := src[i]
		i++
		for end := pos + n; pos < end; pos++ {
			dst[pos] = v
		}
	}

	if pos != size {
		return nil, ErrRLECorrupted
	}
	return dst, nil
}

// RLECompress preconditions and run-length encodes src.
func RLECompress(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	return rleEncode(precondition(src))
}

// RLEDecompress reverses RLECompress. size is the unpacked length recorded
// in the chunk.
func RLEDecompress(src []byte, size int) ([]byte, error) {
	tmp, err := rleDecode(src, size)
	if err != nil {
		return nil, err
	}
	return restore(tmp), nil
}
