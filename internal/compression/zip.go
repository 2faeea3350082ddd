package compression

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

var ErrZIPCorrupted = errors.New("compression: corrupted ZIP data")

type zlibWriter struct {
	w   *zlib.Writer
	buf bytes.Buffer
}

var zlibWriterPool = sync.Pool{
	New: func() any {
		zw := new(zlibWriter)
		zw.w, _ = zlib.NewWriterLevel(&zw.buf, zlib.DefaultCompression)
		return zw
	},
}

// ZIPCompress preconditions src and deflates it with zlib at the default
// level. ZIPS and ZIP differ only in how many scanlines a chunk holds, so
// both use this function.
func ZIPCompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	tmp := precondition(src)

	zw := zlibWriterPool.Get().(*zlibWriter)
	defer zlibWriterPool.Put(zw)
	zw.buf.Reset()
	zw.w.Reset(&zw.buf)

	if _, err := zw.w.Write(tmp); err != nil {
		return nil, err
	}
	if err := zw.w.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(zw.buf.Bytes()), nil
}

// ZIPDecompress inflates src into exactly size bytes and reverses the
// preconditioning.
func ZIPDecompress(src []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, ErrZIPCorrupted
	}
	defer zr.Close()

	tmp := make([]byte, size)
	if _, err := io.ReadFull(zr, tmp); err != nil {
		return nil, ErrZIPCorrupted
	}
	return restore(tmp), nil
}
