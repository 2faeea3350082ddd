package exrdeep_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrjoshuak/go-deepexr/deep"
	"github.com/mrjoshuak/go-deepexr/exrdeep"
)

func Example() {
	dir, err := os.MkdirTemp("", "exrdeep")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "pixel.exr")

	w, err := exrdeep.Create(path, exrdeep.DefaultWriterOptions(1, 1))
	if err != nil {
		fmt.Println(err)
		return
	}
	p := deep.NewRGBA(2)
	p.AddSample(2, []float32{0, 0, 1, 1})
	p.AddSample(1, []float32{0.5, 0, 0, 0.5})
	if err := w.WritePixel(0, 0, p); err != nil {
		fmt.Println(err)
		return
	}
	if err := w.Close(); err != nil {
		fmt.Println(err)
		return
	}

	r, err := exrdeep.Open(path)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer r.Close()
	got, err := r.ReadPixel(0, 0)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(r.ChannelNames(), r.Compression())
	fmt.Println(got.NumSamples(), got.Min(), got.Max())
	// Output:
	// [A B G R] zips
	// 2 1 2
}
