package compression

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterleave(t *testing.T) {
	src := []byte{0, 1, 2, 3, 4, 5, 6}
	dst := make([]byte, len(src))
	interleave(dst, src)
	assert.Equal(t, []byte{0, 2, 4, 6, 1, 3, 5}, dst)

	back := make([]byte, len(src))
	deinterleave(back, dst)
	assert.Equal(t, src, back)
}

func TestPredictor(t *testing.T) {
	data := []byte{10, 11, 13, 13, 9}
	encodePredictor(data)
	assert.Equal(t, []byte{10, 129, 130, 128, 124}, data)

	decodePredictor(data)
	assert.Equal(t, []byte{10, 11, 13, 13, 9}, data)
}

func TestRLEEncoding(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		want []byte
	}{
		{"run", []byte{42, 42, 42, 42, 42}, []byte{4, 42}},
		{"literal", []byte{1, 2, 3, 4}, []byte{0xfc, 1, 2, 3, 4}},
		{"mixed", []byte{1, 2, 7, 7, 7, 3}, []byte{0xfe, 1, 2, 2, 7, 0xff, 3}},
		{"short pair stays literal", []byte{5, 5, 6}, []byte{0xfd, 5, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rleEncode(tt.src)
			assert.Equal(t, tt.want, got)

			back, err := rleDecode(got, len(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.src, back)
		})
	}
}

func TestRLELongRuns(t *testing.T) {
	src := append(bytes.Repeat([]byte{9}, 300), bytes.Repeat([]byte{1, 2}, 200)...)
	packed := rleEncode(src)
	back, err := rleDecode(packed, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, back)
}

func TestRLEDecodeErrors(t *testing.T) {
	_, err := rleDecode([]byte{4}, 5)
	assert.ErrorIs(t, err, ErrRLECorrupted)

	_, err = rleDecode([]byte{4, 1}, 3)
	assert.ErrorIs(t, err, ErrRLEOverflow)

	_, err = rleDecode([]byte{0xfd, 1}, 3)
	assert.ErrorIs(t, err, ErrRLECorrupted)

	_, err = rleDecode([]byte{1, 1}, 3)
	assert.ErrorIs(t, err, ErrRLECorrupted)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	inputs := map[string][]byte{
		"single": {7},
		"zeros":  make([]byte, 1000),
		"ramp":   make([]byte, 513),
		"random": make([]byte, 4096),
	}
	for i := range inputs["ramp"] {
		inputs["ramp"][i] = byte(i)
	}
	rng.Read(inputs["random"])

	for name, src := range inputs {
		t.Run(name+"/rle", func(t *testing.T) {
			back, err := RLEDecompress(RLECompress(src), len(src))
			require.NoError(t, err)
			assert.Equal(t, src, back)
		})
		t.Run(name+"/zip", func(t *testing.T) {
			packed, err := ZIPCompress(src)
			require.NoError(t, err)
			back, err := ZIPDecompress(packed, len(src))
			require.NoError(t, err)
			assert.Equal(t, src, back)
		})
	}
}

func TestCompressEmpty(t *testing.T) {
	assert.Nil(t, RLECompress(nil))
	packed, err := ZIPCompress(nil)
	require.NoError(t, err)
	assert.Nil(t, packed)
}

func TestZIPDecompressCorrupt(t *testing.T) {
	_, err := ZIPDecompress([]byte{1, 2, 3}, 10)
	assert.ErrorIs(t, err, ErrZIPCorrupted)

	packed, err := ZIPCompress(make([]byte, 64))
	require.NoError(t, err)
	_, err = ZIPDecompress(packed, 128)
	assert.ErrorIs(t, err, ErrZIPCorrupted)
}

func TestCompressesSmoothData(t *testing.T) {
	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i / 64)
	}
	packed, err := ZIPCompress(src)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(src)/4)
	assert.Less(t, len(RLECompress(src)), len(src)/2)
}
