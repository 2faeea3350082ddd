package deep_test

import (
	"fmt"

	"github.com/mrjoshuak/go-deepexr/deep"
)

func ExamplePixel_Composite() {
	p := deep.NewRGBA(2)
	p.AddSample(2, []float32{0, 0, 1, 1})
	p.AddSample(1, []float32{0.5, 0, 0, 0.5})

	result := make([]float32, p.NumChannels())
	if err := p.Composite(result); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(p.Min(), p.Max())
	fmt.Println(result)
	// Output:
	// 1 2
	// [0.5 0 0.5 1]
}
